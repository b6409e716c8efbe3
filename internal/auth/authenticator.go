// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package auth

import (
	"log/slog"
	"time"

	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/wire"
	"github.com/maroonlab/maroon/pkg/errutil"
)

// DefaultRejectDelay is how long a rejected connection stays open so the
// InvalidCredentials response can reach the peer.
const DefaultRejectDelay = time.Second

// Authenticator is the server side of the handshake.
//
// HandleRequest must run on the network event loop; the loop serializes
// requests so the first one on a connection decides its outcome.
type Authenticator struct {
	verifier    Verifier
	scheduler   core.Scheduler
	rejectDelay time.Duration
	events      *core.Broadcaster
	onAccept    func(conn *core.Connection)
	logger      *slog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithRejectDelay sets the grace period between a rejection and the disconnect.
func WithRejectDelay(d time.Duration) Option {
	return func(a *Authenticator) {
		if d >= 0 {
			a.rejectDelay = d
		}
	}
}

// WithEvents publishes accept/reject events to b.
func WithEvents(b *core.Broadcaster) Option {
	return func(a *Authenticator) { a.events = b }
}

// WithOnAccept runs fn after a connection is admitted.
func WithOnAccept(fn func(conn *core.Connection)) Option {
	return func(a *Authenticator) { a.onAccept = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuthenticator creates a server-side authenticator. Rejected connections
// are closed through scheduler.
func NewAuthenticator(verifier Verifier, scheduler core.Scheduler, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:    verifier,
		scheduler:   scheduler,
		rejectDelay: DefaultRejectDelay,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register installs the AuthRequest handler on r.
func (a *Authenticator) Register(r *core.Router) {
	core.Handle(r, false, a.HandleRequest)
}

// Unregister removes the AuthRequest handler from r.
func (a *Authenticator) Unregister(r *core.Router) {
	core.Unhandle[wire.AuthRequest](r)
}

// HandleRequest answers req and resolves conn. Requests on a connection that
// is already resolved are ignored.
func (a *Authenticator) HandleRequest(conn *core.Connection, req wire.AuthRequest) {
	if conn.Outcome() != core.AuthPending {
		IgnoredRequests.Inc()
		a.logger.Debug("ignoring repeated auth request",
			"conn_id", conn.ID().String(),
			"outcome", conn.Outcome().String(),
		)
		return
	}

	if a.verifier.Match(req.Username, req.Password) {
		a.accept(conn)
		return
	}
	a.reject(conn)
}

func (a *Authenticator) accept(conn *core.Connection) {
	if err := conn.Send(wire.Success()); err != nil {
		errutil.LogError(a.logger, "failed to send auth response", err)
	}
	conn.Resolve(core.AuthAccepted)
	recordHandshake(SideServer, core.AuthAccepted.String())

	a.logger.Info("connection authenticated",
		"conn_id", conn.ID().String(),
		"remote_addr", conn.RemoteAddr(),
	)
	event := core.NewEvent(core.EventConnectionAccepted)
	event.ConnectionID = conn.ID()
	a.events.Publish(event)

	if a.onAccept != nil {
		a.onAccept(conn)
	}
}

func (a *Authenticator) reject(conn *core.Connection) {
	if err := conn.Send(wire.InvalidCredentials()); err != nil {
		errutil.LogError(a.logger, "failed to send auth response", err)
	}
	conn.Resolve(core.AuthRejected)
	recordHandshake(SideServer, core.AuthRejected.String())

	a.logger.Warn("connection rejected",
		"conn_id", conn.ID().String(),
		"remote_addr", conn.RemoteAddr(),
		"delay", a.rejectDelay.String(),
	)
	event := core.NewEvent(core.EventConnectionRejected)
	event.ConnectionID = conn.ID()
	a.events.Publish(event)

	timer := a.scheduler.AfterFunc(a.rejectDelay, func() {
		if conn.Closed() {
			return
		}
		if err := conn.Close(); err != nil {
			errutil.LogError(a.logger, "failed to close rejected connection", err)
		}
	})
	conn.OnClose(func() { timer.Stop() })
}
