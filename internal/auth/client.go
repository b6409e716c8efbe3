// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package auth

import (
	"log/slog"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/wire"
	"github.com/maroonlab/maroon/pkg/errutil"
)

// ClientAuthenticator is the client side of the handshake for one connection.
type ClientAuthenticator struct {
	username string
	password string
	begun    atomic.Bool
	onAccept func(conn *core.Connection)
	logger   *slog.Logger
}

// ClientOption configures a ClientAuthenticator.
type ClientOption func(*ClientAuthenticator)

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *ClientAuthenticator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClientOnAccept runs fn once the server accepts the connection.
func WithClientOnAccept(fn func(conn *core.Connection)) ClientOption {
	return func(c *ClientAuthenticator) { c.onAccept = fn }
}

// NewClientAuthenticator creates a client authenticator presenting the given
// credentials.
func NewClientAuthenticator(username, password string, opts ...ClientOption) *ClientAuthenticator {
	c := &ClientAuthenticator{
		username: username,
		password: password,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register installs the AuthResponse handler on r.
func (c *ClientAuthenticator) Register(r *core.Router) {
	core.Handle(r, false, func(conn *core.Connection, resp wire.AuthResponse) {
		if err := c.HandleResponse(conn, resp); err != nil {
			c.logger.Debug("handshake ended", "conn_id", conn.ID().String(), "error", err)
		}
	})
}

// Unregister removes the AuthResponse handler from r.
func (c *ClientAuthenticator) Unregister(r *core.Router) {
	core.Unhandle[wire.AuthResponse](r)
}

// Begin sends the AuthRequest. Only the first call sends anything.
func (c *ClientAuthenticator) Begin(conn *core.Connection) error {
	if !c.begun.CompareAndSwap(false, true) {
		return nil
	}
	return conn.Send(wire.AuthRequest{Username: c.username, Password: c.password})
}

// HandleResponse resolves conn from the server's answer. Any code other than
// Success closes the connection and returns an AUTH_REJECTED error.
func (c *ClientAuthenticator) HandleResponse(conn *core.Connection, resp wire.AuthResponse) error {
	if conn.Outcome() != core.AuthPending {
		return nil
	}

	if resp.Code == wire.CodeSuccess {
		conn.Resolve(core.AuthAccepted)
		recordHandshake(SideClient, core.AuthAccepted.String())
		c.logger.Info("authenticated with host", "conn_id", conn.ID().String())
		if c.onAccept != nil {
			c.onAccept(conn)
		}
		return nil
	}

	conn.Resolve(core.AuthRejected)
	recordHandshake(SideClient, core.AuthRejected.String())
	c.logger.Error("authentication rejected",
		"conn_id", conn.ID().String(),
		"code", resp.Code.String(),
		"message", resp.Message,
	)
	if err := conn.Close(); err != nil {
		errutil.LogError(c.logger, "failed to close rejected connection", err)
	}
	return oops.Code("AUTH_REJECTED").
		With("code", int(resp.Code)).
		With("message", resp.Message).
		Errorf("host rejected credentials: %s", resp.Message)
}
