// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package spawn turns an authenticated connection into a player placed at the
// pose its client last reported.
package spawn

import (
	"log/slog"
	"time"

	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/wire"
)

// DefaultTemplate names the player template used when none is configured.
const DefaultTemplate = "player"

// Coordinator is the server side of the spawn exchange.
//
// HandleSpawn must run on the network event loop.
type Coordinator struct {
	template string
	roster   *Roster
	events   *core.Broadcaster
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTemplate sets the player template instantiated on spawn.
func WithTemplate(name string) Option {
	return func(c *Coordinator) {
		if name != "" {
			c.template = name
		}
	}
}

// WithEvents publishes spawn/despawn events to b.
func WithEvents(b *core.Broadcaster) Option {
	return func(c *Coordinator) { c.events = b }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a coordinator with an empty roster.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		template: DefaultTemplate,
		roster:   NewRoster(),
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Roster returns the live players.
func (c *Coordinator) Roster() *Roster {
	return c.roster
}

// Register installs the spawn handler on r. Spawn messages from connections
// that are not accepted never reach it.
func (c *Coordinator) Register(r *core.Router) {
	core.Handle(r, true, c.HandleSpawn)
}

// Unregister removes the spawn handler from r.
func (c *Coordinator) Unregister(r *core.Router) {
	core.Unhandle[wire.CharacterSpawn](r)
}

// HandleSpawn creates the connection's player at the pose in msg, exactly as
// sent. Messages before acceptance and after the first spawn are ignored.
func (c *Coordinator) HandleSpawn(conn *core.Connection, msg wire.CharacterSpawn) {
	if conn.Outcome() != core.AuthAccepted {
		c.ignore(conn, ReasonNotAccepted)
		return
	}
	if _, spawned := conn.Player(); spawned {
		c.ignore(conn, ReasonAlreadySpawned)
		return
	}

	player := core.Player{
		ID:           core.NewULID(),
		ConnectionID: conn.ID(),
		Template:     c.template,
		Pose:         core.PoseFromSpawn(msg),
		SpawnedAt:    c.now(),
	}
	if !conn.BindPlayer(player) {
		c.ignore(conn, ReasonClosed)
		return
	}

	c.roster.add(player)
	Spawns.Inc()
	PlayersActive.Inc()

	c.logger.Info("player spawned",
		"conn_id", conn.ID().String(),
		"player_id", player.ID.String(),
		"template", player.Template,
		"position", player.Pose.Position,
		"rotation", player.Pose.Rotation,
	)
	c.publish(core.EventPlayerSpawned, player)

	conn.OnClose(func() { c.despawn(player) })
}

func (c *Coordinator) despawn(player core.Player) {
	if !c.roster.remove(player.ID) {
		return
	}
	PlayersActive.Dec()
	c.logger.Info("player despawned",
		"conn_id", player.ConnectionID.String(),
		"player_id", player.ID.String(),
	)
	c.publish(core.EventPlayerDespawned, player)
}

func (c *Coordinator) ignore(conn *core.Connection, reason string) {
	IgnoredSpawns.WithLabelValues(reason).Inc()
	c.logger.Debug("ignoring spawn message",
		"conn_id", conn.ID().String(),
		"reason", reason,
	)
}

func (c *Coordinator) publish(t core.EventType, player core.Player) {
	event := core.NewEvent(t)
	event.ConnectionID = player.ConnectionID
	event.PlayerID = player.ID
	c.events.Publish(event)
}

// SendSpawn is the client side of the exchange: it reports the local pose to
// the host once the connection is accepted.
func SendSpawn(conn *core.Connection, pose core.Pose) error {
	return conn.Send(pose.SpawnMessage())
}
