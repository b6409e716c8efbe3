// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventRoleChanged          EventType = "role_changed"
	EventConnectionOpened     EventType = "connection_opened"
	EventConnectionAccepted   EventType = "connection_accepted"
	EventConnectionRejected   EventType = "connection_rejected"
	EventConnectionClosed     EventType = "connection_closed"
	EventPlayerSpawned        EventType = "player_spawned"
	EventPlayerDespawned      EventType = "player_despawned"
	EventPortMappingConfirmed EventType = "port_mapping_confirmed"
)

// Event is something that happened to the local session.
type Event struct {
	ID           ulid.ULID
	Type         EventType
	Timestamp    time.Time
	Role         Role      // new role for EventRoleChanged
	ConnectionID ulid.ULID // zero when not about a connection
	PlayerID     ulid.ULID // zero when not about a player
}

// NewEvent stamps a new event of type t.
func NewEvent(t EventType) Event {
	return Event{
		ID:        NewULID(),
		Type:      t,
		Timestamp: time.Now(),
	}
}
