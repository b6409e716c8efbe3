// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/maroonlab/maroon/internal/core"
)

// Discovery advertises the local session and searches for others.
type Discovery interface {
	// AdvertiseServer starts announcing url to the network.
	AdvertiseServer(url string)
	// StartDiscovery searches for sessions and stops any advertisement.
	StartDiscovery()
	// StopDiscovery stops both searching and advertising.
	StopDiscovery()
}

// PortMapper forwards the session port on the gateway.
type PortMapper interface {
	// SetupPortForwarding starts mapping port; onMapped runs only on success.
	SetupPortForwarding(ctx context.Context, port int, onMapped func())
	DeletePortMapping(ctx context.Context) error
}

// ListServer publishes a hosted session beyond the LAN.
type ListServer interface {
	Connect(ctx context.Context) error
	Announce(ctx context.Context, name, url string) error
	PortMappingSuccessful(ctx context.Context) error
	Withdraw(ctx context.Context) error
}

// LocalPlayer is the local user's avatar in the simulation.
type LocalPlayer interface {
	// Pose is the last known pose, reported to the host on connect.
	Pose() core.Pose
	// UnregisterNetworkPlayer drops local bookkeeping of the networked player.
	UnregisterNetworkPlayer()
}

// StaticPlayer is a LocalPlayer standing still at a fixed pose.
type StaticPlayer struct {
	mu           sync.Mutex
	pose         core.Pose
	unregistered int
	logger       *slog.Logger
}

// NewStaticPlayer creates a player at pose.
func NewStaticPlayer(pose core.Pose, logger *slog.Logger) *StaticPlayer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StaticPlayer{pose: pose, logger: logger}
}

// Pose returns the fixed pose.
func (p *StaticPlayer) Pose() core.Pose {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pose
}

// UnregisterNetworkPlayer records that the networked player went away.
func (p *StaticPlayer) UnregisterNetworkPlayer() {
	p.mu.Lock()
	p.unregistered++
	p.mu.Unlock()
	p.logger.Info("network player unregistered")
}

// Unregistered returns how many times UnregisterNetworkPlayer ran.
func (p *StaticPlayer) Unregistered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unregistered
}

type nopDiscovery struct{}

func (nopDiscovery) AdvertiseServer(string) {}
func (nopDiscovery) StartDiscovery()        {}
func (nopDiscovery) StopDiscovery()         {}

type nopPortMapper struct{}

func (nopPortMapper) SetupPortForwarding(context.Context, int, func()) {}
func (nopPortMapper) DeletePortMapping(context.Context) error          { return nil }
