// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package portmap

import (
	"context"

	"github.com/samber/oops"
)

// Modes accepted by NewGateway.
const (
	ModeNone   = "none"
	ModeStatic = "static"
)

// NoGateway refuses every mapping. Hosts using it are reachable on the LAN only.
type NoGateway struct{}

// AddPortMapping always fails with ErrNoGateway.
func (NoGateway) AddPortMapping(context.Context, string, int, int, string) error {
	return ErrNoGateway
}

// DeletePortMapping is never reached because nothing is ever mapped.
func (NoGateway) DeletePortMapping(context.Context, string, int) error {
	return nil
}

// StaticGateway confirms mappings an operator forwarded on the router by hand.
type StaticGateway struct{}

// AddPortMapping succeeds immediately.
func (StaticGateway) AddPortMapping(context.Context, string, int, int, string) error {
	return nil
}

// DeletePortMapping leaves the manual forward in place.
func (StaticGateway) DeletePortMapping(context.Context, string, int) error {
	return nil
}

// NewGateway returns the gateway for a configured mode.
func NewGateway(mode string) (Gateway, error) {
	switch mode {
	case "", ModeNone:
		return NoGateway{}, nil
	case ModeStatic:
		return StaticGateway{}, nil
	default:
		return nil, oops.Code("PORTMAP_UNKNOWN_MODE").With("mode", mode).Errorf("unknown port mapping mode %q", mode)
	}
}
