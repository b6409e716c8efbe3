// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package spawn

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reasons a spawn message is ignored.
const (
	ReasonNotAccepted    = "not_accepted"
	ReasonAlreadySpawned = "already_spawned"
	ReasonClosed         = "closed"
)

// PlayersActive is the number of players bound to open connections.
var PlayersActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "maroon_players_active",
		Help: "Number of players currently spawned",
	},
)

// Spawns counts players spawned since start.
var Spawns = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "maroon_spawns_total",
		Help: "Total number of players spawned",
	},
)

// IgnoredSpawns counts spawn messages that did not create a player.
var IgnoredSpawns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "maroon_spawns_ignored_total",
		Help: "Total number of spawn messages ignored",
	},
	[]string{"reason"},
)

// RegisterMetrics registers spawn package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(PlayersActive)
	reg.MustRegister(Spawns)
	reg.MustRegister(IgnoredSpawns)
}
