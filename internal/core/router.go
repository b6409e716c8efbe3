// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package core

import (
	"log/slog"
	"sync"

	"github.com/maroonlab/maroon/internal/wire"
)

// Handler reacts to one inbound message on a connection.
type Handler func(conn *Connection, msg wire.Message)

type route struct {
	handler     Handler
	requireAuth bool
}

// Router maps message types to handlers.
type Router struct {
	mu     sync.RWMutex
	routes map[wire.Type]route
	logger *slog.Logger
}

// NewRouter creates a router with no handlers.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		routes: make(map[wire.Type]route),
		logger: logger,
	}
}

// Register installs h for messages of type t, replacing any previous handler.
// With requireAuth set, messages from connections that are not yet accepted
// are dropped before reaching h.
func (r *Router) Register(t wire.Type, h Handler, requireAuth bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[t] = route{handler: h, requireAuth: requireAuth}
}

// Unregister removes the handler for t.
func (r *Router) Unregister(t wire.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, t)
}

// Registered reports whether a handler is installed for t.
func (r *Router) Registered(t wire.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.routes[t]
	return ok
}

// Dispatch delivers msg to its handler. It returns false when the message was
// dropped: no handler, or the handler requires an accepted connection.
func (r *Router) Dispatch(conn *Connection, msg wire.Message) bool {
	r.mu.RLock()
	rt, ok := r.routes[msg.Type()]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("no handler for message",
			"conn_id", conn.ID().String(),
			"type", string(msg.Type()),
		)
		return false
	}
	if rt.requireAuth && !conn.IsAuthenticated() {
		r.logger.Debug("dropping message from unauthenticated connection",
			"conn_id", conn.ID().String(),
			"type", string(msg.Type()),
		)
		return false
	}

	rt.handler(conn, msg)
	return true
}

// Handle registers a handler typed to one message variant.
func Handle[T wire.Message](r *Router, requireAuth bool, fn func(conn *Connection, msg T)) {
	var zero T
	r.Register(zero.Type(), func(conn *Connection, msg wire.Message) {
		if typed, ok := msg.(T); ok {
			fn(conn, typed)
		}
	}, requireAuth)
}

// Unhandle removes the handler registered for T.
func Unhandle[T wire.Message](r *Router) {
	var zero T
	r.Unregister(zero.Type())
}
