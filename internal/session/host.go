// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maroonlab/maroon/internal/auth"
	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/spawn"
	"github.com/maroonlab/maroon/internal/transport"
	"github.com/maroonlab/maroon/internal/wire"
)

// hostConfig is what a Host needs to serve a session.
type hostConfig struct {
	listenAddr  string
	path        string
	verifier    auth.Verifier
	rejectDelay time.Duration
	template    string
	loop        *core.EventLoop
	events      *core.Broadcaster
	logger      *slog.Logger
}

// Host is the authoritative server side of a session.
type Host struct {
	listener *transport.Listener
	router   *core.Router
	conns    *core.ConnectionManager
	auth     *auth.Authenticator
	spawner  *spawn.Coordinator
	loop     *core.EventLoop
	events   *core.Broadcaster
	logger   *slog.Logger

	// local is the host's own player connection, if any.
	local *Client
}

// startHost registers the handshake and spawn handlers, then starts listening.
func startHost(cfg hostConfig) (*Host, error) {
	h := &Host{
		router: core.NewRouter(cfg.logger),
		conns:  core.NewConnectionManager(),
		loop:   cfg.loop,
		events: cfg.events,
		logger: cfg.logger,
	}
	h.auth = auth.NewAuthenticator(cfg.verifier, cfg.loop,
		auth.WithRejectDelay(cfg.rejectDelay),
		auth.WithEvents(cfg.events),
		auth.WithLogger(cfg.logger),
	)
	h.spawner = spawn.NewCoordinator(
		spawn.WithTemplate(cfg.template),
		spawn.WithEvents(cfg.events),
		spawn.WithLogger(cfg.logger),
	)
	h.auth.Register(h.router)
	h.spawner.Register(h.router)

	listener, err := transport.Listen(cfg.listenAddr, h.accept,
		transport.WithPath(cfg.path),
		transport.WithListenerLogger(cfg.logger),
	)
	if err != nil {
		h.unregister()
		return nil, err
	}
	h.listener = listener
	return h, nil
}

func (h *Host) accept(link *transport.Conn) {
	conn := core.NewConnection(link)
	h.conns.Add(conn)
	ConnectionsActive.Inc()

	h.logger.Info("peer connected", "conn_id", conn.ID().String(), "remote_addr", conn.RemoteAddr())
	opened := core.NewEvent(core.EventConnectionOpened)
	opened.ConnectionID = conn.ID()
	h.events.Publish(opened)

	conn.OnClose(func() {
		ConnectionsActive.Dec()
		h.logger.Info("peer disconnected", "conn_id", conn.ID().String())
		closed := core.NewEvent(core.EventConnectionClosed)
		closed.ConnectionID = conn.ID()
		h.events.Publish(closed)
	})

	link.Start(transport.Handlers{
		OnMessage: func(msg wire.Message) {
			h.post(func() { h.router.Dispatch(conn, msg) })
		},
		OnClose: func() {
			h.post(func() { _ = conn.Close() })
		},
	})
}

func (h *Host) post(fn func()) {
	if !h.loop.Post(fn) {
		fn()
	}
}

func (h *Host) unregister() {
	h.auth.Unregister(h.router)
	h.spawner.Unregister(h.router)
}

// Port returns the bound TCP port.
func (h *Host) Port() int {
	return h.listener.Port()
}

// URL returns the session URL reachable at host.
func (h *Host) URL(host string) string {
	return h.listener.URL(host)
}

// Players returns the spawned players.
func (h *Host) Players() []core.Player {
	return h.spawner.Roster().List()
}

// Connections returns the open peer connections.
func (h *Host) Connections() []*core.Connection {
	return h.conns.List()
}

// Close disconnects the local player and every peer, then stops listening.
// Handlers are unregistered first so nothing new is admitted while closing.
func (h *Host) Close(ctx context.Context) error {
	var errs []error
	if h.local != nil {
		errs = append(errs, h.local.Close(ctx))
		h.local = nil
	}
	h.unregister()
	errs = append(errs, h.listener.Close(ctx))
	h.conns.CloseAll()
	return errors.Join(errs...)
}
