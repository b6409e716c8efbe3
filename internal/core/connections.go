// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package core

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ConnectionManager tracks the open connections of a host.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[ulid.ULID]*Connection
}

// NewConnectionManager creates an empty connection manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns: make(map[ulid.ULID]*Connection),
	}
}

// Add starts tracking a connection. The connection is forgotten once it closes.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.conns[conn.ID()] = conn
	cm.mu.Unlock()

	conn.OnClose(func() { cm.remove(conn.ID()) })
}

func (cm *ConnectionManager) remove(id ulid.ULID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.conns[id]; !exists {
		slog.Debug("remove called for unknown connection", "conn_id", id.String())
		return
	}
	delete(cm.conns, id)
}

// Get returns the connection with the given id.
func (cm *ConnectionManager) Get(id ulid.ULID) (*Connection, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	conn, exists := cm.conns[id]
	if !exists {
		return nil, oops.Code("CONN_NOT_FOUND").
			With("conn_id", id.String()).
			Errorf("connection %s not found", id.String())
	}
	return conn, nil
}

// List returns the tracked connections in no particular order.
func (cm *ConnectionManager) List() []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	result := make([]*Connection, 0, len(cm.conns))
	for _, conn := range cm.conns {
		result = append(result, conn)
	}
	return result
}

// Count returns how many connections are open.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// CountAuthenticated returns how many open connections were admitted.
func (cm *ConnectionManager) CountAuthenticated() int {
	n := 0
	for _, conn := range cm.List() {
		if conn.IsAuthenticated() {
			n++
		}
	}
	return n
}

// CloseAll closes every tracked connection.
func (cm *ConnectionManager) CloseAll() {
	for _, conn := range cm.List() {
		if err := conn.Close(); err != nil {
			slog.Debug("error closing connection",
				"conn_id", conn.ID().String(),
				"error", err,
			)
		}
	}
}
