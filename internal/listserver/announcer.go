// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package listserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/pkg/errutil"
)

// Announcer keeps the local hosted session listed while it runs.
// It implements the session manager's ListServer collaborator.
type Announcer struct {
	reg    *Registry
	id     string
	logger *slog.Logger

	mu     sync.Mutex
	listed bool
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

// NewAnnouncer creates an announcer publishing to reg.
func NewAnnouncer(reg *Registry, logger *slog.Logger) *Announcer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Announcer{reg: reg, id: core.NewULID().String(), logger: logger}
}

// ID returns the id of the local entry.
func (a *Announcer) ID() string {
	return a.id
}

// Connect verifies the list server can be reached.
func (a *Announcer) Connect(ctx context.Context) error {
	if err := a.reg.Ping(ctx); err != nil {
		return err
	}
	a.logger.Info("connected to list server")
	return nil
}

// Announce lists the session and keeps refreshing it until Withdraw.
func (a *Announcer) Announce(ctx context.Context, name, url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.reg.Register(ctx, Entry{ID: a.id, Name: name, URL: url}); err != nil {
		return err
	}
	a.listed = true

	if a.stop == nil {
		keepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		a.stop = cancel
		a.wg.Add(1)
		go a.keepAlive(keepCtx)
	}

	a.logger.Info("session listed", "id", a.id, "name", name, "url", url)
	return nil
}

// PortMappingSuccessful marks the listed session as reachable from outside
// the LAN. It does nothing when the session is not listed.
func (a *Announcer) PortMappingSuccessful(ctx context.Context) error {
	a.mu.Lock()
	listed := a.listed
	a.mu.Unlock()
	if !listed {
		return nil
	}
	return a.reg.MarkReachable(ctx, a.id)
}

// Withdraw removes the listing.
func (a *Announcer) Withdraw(ctx context.Context) error {
	a.mu.Lock()
	stop := a.stop
	a.stop = nil
	listed := a.listed
	a.listed = false
	a.mu.Unlock()

	if stop != nil {
		stop()
		a.wg.Wait()
	}
	if !listed {
		return nil
	}
	if err := a.reg.Unregister(ctx, a.id); err != nil {
		return err
	}
	a.logger.Info("session unlisted", "id", a.id)
	return nil
}

func (a *Announcer) keepAlive(ctx context.Context) {
	defer a.wg.Done()

	interval := a.reg.TTL() / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.reg.Refresh(ctx, a.id); err != nil {
				errutil.LogWarn(a.logger, "list server refresh failed", err, "id", a.id)
			}
		}
	}
}
