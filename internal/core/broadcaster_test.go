// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_Publish(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	event := NewEvent(EventRoleChanged)
	event.Role = RoleHost
	b.Publish(event)

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, event.ID, got.ID)
			assert.Equal(t, RoleHost, got.Role)
		default:
			t.Fatal("event not delivered")
		}
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	b.Publish(NewEvent(EventConnectionOpened))
}

func TestBroadcaster_FullBufferDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()

	for range cap(ch) + 10 {
		b.Publish(NewEvent(EventConnectionOpened))
	}
	assert.Len(t, ch, cap(ch))
}

func TestBroadcaster_NilIsSafe(t *testing.T) {
	var b *Broadcaster
	require.NotPanics(t, func() { b.Publish(NewEvent(EventPlayerSpawned)) })
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventPlayerSpawned)
	assert.Equal(t, EventPlayerSpawned, event.Type)
	assert.False(t, event.Timestamp.IsZero())
	assert.NotZero(t, event.ID)
}
