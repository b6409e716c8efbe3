// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Handshake sides.
const (
	SideServer = "server"
	SideClient = "client"
)

// Handshakes counts resolved handshakes by side and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Handshakes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "maroon_handshakes_total",
		Help: "Total number of resolved authentication handshakes",
	},
	[]string{"side", "outcome"},
)

// IgnoredRequests counts auth requests dropped because the connection was
// already resolved.
var IgnoredRequests = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "maroon_handshake_requests_ignored_total",
		Help: "Total number of repeated auth requests ignored",
	},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Handshakes)
	reg.MustRegister(IgnoredRequests)
}

func recordHandshake(side, outcome string) {
	Handshakes.WithLabelValues(side, outcome).Inc()
}
