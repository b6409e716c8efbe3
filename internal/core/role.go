// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package core contains the types shared by every stage of session establishment:
// roles, connections, players, the network event loop and message routing.
package core

// Role is the part the local process plays in a session.
type Role uint8

// Roles. Exactly one holds process-wide at any time.
const (
	RoleOffline Role = iota
	RoleHost
	RoleClientOnly
)

func (r Role) String() string {
	switch r {
	case RoleOffline:
		return "offline"
	case RoleHost:
		return "host"
	case RoleClientOnly:
		return "client_only"
	default:
		return "unknown"
	}
}

// CanTransition reports whether from -> to is an edge of the role graph:
// Offline->Host, Offline->ClientOnly, Host->Offline, ClientOnly->Offline.
func CanTransition(from, to Role) bool {
	switch from {
	case RoleOffline:
		return to == RoleHost || to == RoleClientOnly
	case RoleHost, RoleClientOnly:
		return to == RoleOffline
	default:
		return false
	}
}
