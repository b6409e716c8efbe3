// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maroonlab/maroon/internal/core"
)

// CurrentRole is 1 for the active role and 0 for the others.
var CurrentRole = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "maroon_session_role",
		Help: "Current session role (1 = active)",
	},
	[]string{"role"},
)

// RoleTransitions counts role changes by destination.
var RoleTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "maroon_session_role_transitions_total",
		Help: "Total number of session role transitions",
	},
	[]string{"to"},
)

// ConnectionsActive is the number of peer connections open on the host.
var ConnectionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "maroon_connections_active",
		Help: "Number of peer connections open on the host",
	},
)

// PortMapped is 1 once the gateway confirmed the port mapping.
var PortMapped = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "maroon_port_mapped",
		Help: "Whether the session port is mapped on the gateway (1 = mapped)",
	},
)

// RegisterMetrics registers session package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CurrentRole)
	reg.MustRegister(RoleTransitions)
	reg.MustRegister(ConnectionsActive)
	reg.MustRegister(PortMapped)
}

func recordRole(role core.Role) {
	for _, r := range []core.Role{core.RoleOffline, core.RoleHost, core.RoleClientOnly} {
		v := 0.0
		if r == role {
			v = 1
		}
		CurrentRole.WithLabelValues(r.String()).Set(v)
	}
	RoleTransitions.WithLabelValues(role.String()).Inc()
}
