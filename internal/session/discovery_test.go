// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maroonlab/maroon/internal/auth"
	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/discovery"
	"github.com/maroonlab/maroon/internal/session"
)

func newBeacon(t *testing.T, cfg discovery.Config) *discovery.Beacon {
	t.Helper()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Interval = 20 * time.Millisecond
	b, err := discovery.New(cfg)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestManager_StopHostWithdrawsLANAdvertisement(t *testing.T) {
	seeker := newBeacon(t, discovery.Config{})
	seeker.StartDiscovery()
	require.True(t, seeker.Discovering())

	beacon := newBeacon(t, discovery.Config{
		Name:          "physics-lab",
		BroadcastAddr: seeker.LocalAddr().String(),
	})

	store, err := auth.NewCredentialStore("demo", "demo123")
	require.NoError(t, err)
	mgr := session.NewManager(session.Config{
		Name:          "physics-lab",
		ListenAddr:    "127.0.0.1:0",
		AdvertiseHost: "127.0.0.1",
		Username:      "demo",
		Password:      "demo123",
		Verifier:      store,
		Headless:      true,
	}, session.WithDiscovery(beacon))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})

	ctx := context.Background()
	require.NoError(t, mgr.StartHost(ctx))
	assert.True(t, beacon.Advertising())
	require.Eventually(t, func() bool { return len(seeker.Hosts()) == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, mgr.StopHost(ctx))

	assert.Equal(t, core.RoleOffline, mgr.Role())
	assert.False(t, beacon.Advertising(), "an offline process must not announce a dead session")
	assert.True(t, beacon.Discovering())
}
