// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/core/coretest"
	"github.com/maroonlab/maroon/pkg/errutil"
)

func TestConnectionManager_AddGet(t *testing.T) {
	cm := core.NewConnectionManager()
	conn := core.NewConnection(coretest.NewLink("peer"))
	cm.Add(conn)

	got, err := cm.Get(conn.ID())
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.Equal(t, 1, cm.Count())
	assert.Len(t, cm.List(), 1)
}

func TestConnectionManager_GetUnknown(t *testing.T) {
	cm := core.NewConnectionManager()
	id := core.NewULID()

	_, err := cm.Get(id)
	errutil.AssertErrorCode(t, err, "CONN_NOT_FOUND")
	errutil.AssertErrorContext(t, err, "conn_id", id.String())
}

func TestConnectionManager_ForgetsClosedConnections(t *testing.T) {
	cm := core.NewConnectionManager()
	a := core.NewConnection(coretest.NewLink("a"))
	b := core.NewConnection(coretest.NewLink("b"))
	cm.Add(a)
	cm.Add(b)

	require.NoError(t, a.Close())

	assert.Equal(t, 1, cm.Count())
	_, err := cm.Get(a.ID())
	assert.Error(t, err)
}

func TestConnectionManager_CountAuthenticated(t *testing.T) {
	cm := core.NewConnectionManager()
	for i, outcome := range []core.AuthOutcome{core.AuthAccepted, core.AuthRejected, core.AuthPending, core.AuthAccepted} {
		conn := core.NewConnection(coretest.NewLink(string(rune('a' + i))))
		conn.Resolve(outcome)
		cm.Add(conn)
	}

	assert.Equal(t, 4, cm.Count())
	assert.Equal(t, 2, cm.CountAuthenticated())
}

func TestConnectionManager_CloseAll(t *testing.T) {
	cm := core.NewConnectionManager()
	links := []*coretest.Link{coretest.NewLink("a"), coretest.NewLink("b")}
	for _, l := range links {
		cm.Add(core.NewConnection(l))
	}

	cm.CloseAll()

	assert.Zero(t, cm.Count())
	for _, l := range links {
		assert.True(t, l.IsClosed())
	}
}
