// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package core

import (
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/maroonlab/maroon/internal/wire"
)

// AuthOutcome is the authentication state of a connection.
type AuthOutcome uint8

// Authentication states. Pending moves to exactly one terminal state.
const (
	AuthPending AuthOutcome = iota
	AuthAccepted
	AuthRejected
)

func (o AuthOutcome) String() string {
	switch o {
	case AuthPending:
		return "pending"
	case AuthAccepted:
		return "accepted"
	case AuthRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Link is the transport underneath a connection.
type Link interface {
	Send(msg wire.Message) error
	Close() error
	RemoteAddr() string
}

// Connection is one peer link taking part (or trying to take part) in a session.
type Connection struct {
	id   ulid.ULID
	link Link

	mu            sync.Mutex
	outcome       AuthOutcome
	authenticated bool
	player        *Player
	closed        bool
	onClose       []func()
}

// NewConnection wraps a transport link with a fresh identity.
func NewConnection(link Link) *Connection {
	return &Connection{
		id:   NewULID(),
		link: link,
	}
}

// ID returns the connection's identity handle.
func (c *Connection) ID() ulid.ULID {
	return c.id
}

// RemoteAddr returns the peer address reported by the transport.
func (c *Connection) RemoteAddr() string {
	return c.link.RemoteAddr()
}

// Outcome returns the current authentication state.
func (c *Connection) Outcome() AuthOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// IsAuthenticated reports whether the connection was admitted to the session.
func (c *Connection) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Resolve moves a pending connection to a terminal state.
// It returns false, changing nothing, if the connection already left Pending
// or outcome is not terminal.
func (c *Connection) Resolve(outcome AuthOutcome) bool {
	if outcome != AuthAccepted && outcome != AuthRejected {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outcome != AuthPending {
		return false
	}
	c.outcome = outcome
	c.authenticated = outcome == AuthAccepted
	return true
}

// Player returns the player bound to this connection, if any.
func (c *Connection) Player() (Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return Player{}, false
	}
	return *c.player, true
}

// BindPlayer attaches p as the entity controlled by this connection.
// Only an accepted, open connection without a player can be bound.
func (c *Connection) BindPlayer(p Player) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.outcome != AuthAccepted || c.player != nil {
		return false
	}
	c.player = &p
	return true
}

// Send writes msg to the peer.
func (c *Connection) Send(msg wire.Message) error {
	if c.Closed() {
		return oops.Code("CONN_CLOSED").
			With("conn_id", c.id.String()).
			Errorf("connection is closed")
	}
	if err := c.link.Send(msg); err != nil {
		return oops.Code("CONN_SEND_FAILED").
			With("conn_id", c.id.String()).
			With("type", string(msg.Type())).
			Wrap(err)
	}
	return nil
}

// OnClose registers fn to run once when the connection closes.
// If the connection is already closed, fn runs immediately.
func (c *Connection) OnClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

// Closed reports whether Close has run.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears down the link and runs the close hooks. Safe to call repeatedly.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	hooks := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	err := c.link.Close()
	for _, fn := range hooks {
		fn()
	}
	if err != nil {
		return oops.Code("CONN_CLOSE_FAILED").With("conn_id", c.id.String()).Wrap(err)
	}
	return nil
}
