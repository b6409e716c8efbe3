// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package session

import "github.com/maroonlab/maroon/internal/core"

// Buttons is which session controls a front end should offer.
type Buttons struct {
	Join        bool
	Host        bool
	LeaveClient bool
	LeaveHost   bool
}

// ButtonsFor returns the controls valid in role: only commands that are
// legal transitions from it.
func ButtonsFor(role core.Role) Buttons {
	switch role {
	case core.RoleOffline:
		return Buttons{Join: true, Host: true}
	case core.RoleClientOnly:
		return Buttons{LeaveClient: true}
	case core.RoleHost:
		return Buttons{LeaveHost: true}
	default:
		return Buttons{}
	}
}
