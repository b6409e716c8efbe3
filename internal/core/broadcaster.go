// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package core

import (
	"log/slog"
	"sync"
)

// Broadcaster distributes lifecycle events to subscribers.
// A nil *Broadcaster discards everything published to it.
type Broadcaster struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe creates a channel for receiving events.
func (b *Broadcaster) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100)
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to every subscriber without blocking.
func (b *Broadcaster) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			slog.Warn("event dropped: subscriber buffer full",
				"event_id", event.ID.String(),
				"event_type", string(event.Type),
			)
		}
	}
}
