// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package config loads maroon settings from a YAML file and command-line
// flags.
package config

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/logging"
	"github.com/maroonlab/maroon/internal/wire"
)

// Port mapping modes.
const (
	PortMappingNone   = "none"
	PortMappingStatic = "static"
)

// Config is the complete maroon configuration.
type Config struct {
	Session     SessionConfig     `koanf:"session" json:"session,omitempty" yaml:"session"`
	Credentials CredentialsConfig `koanf:"credentials" json:"credentials,omitempty" yaml:"credentials"`
	Auth        AuthConfig        `koanf:"auth" json:"auth,omitempty" yaml:"auth"`
	Spawn       SpawnConfig       `koanf:"spawn" json:"spawn,omitempty" yaml:"spawn"`
	Client      ClientConfig      `koanf:"client" json:"client,omitempty" yaml:"client"`
	Discovery   DiscoveryConfig   `koanf:"discovery" json:"discovery,omitempty" yaml:"discovery"`
	PortMapping PortMappingConfig `koanf:"port_mapping" json:"port_mapping,omitempty" yaml:"port_mapping"`
	ListServer  ListServerConfig  `koanf:"list_server" json:"list_server,omitempty" yaml:"list_server"`
	Metrics     MetricsConfig     `koanf:"metrics" json:"metrics,omitempty" yaml:"metrics"`
	Log         LogConfig         `koanf:"log" json:"log,omitempty" yaml:"log"`
}

// SessionConfig describes the hosted session endpoint.
type SessionConfig struct {
	Name          string `koanf:"name" json:"name,omitempty" yaml:"name"`
	ListenAddr    string `koanf:"listen_addr" json:"listen_addr,omitempty" yaml:"listen_addr"`
	Path          string `koanf:"path" json:"path,omitempty" yaml:"path" jsonschema:"pattern=^/"`
	AdvertiseHost string `koanf:"advertise_host" json:"advertise_host,omitempty" yaml:"advertise_host"`
	Headless      bool   `koanf:"headless" json:"headless,omitempty" yaml:"headless"`
}

// CredentialsConfig holds the shared session credentials.
type CredentialsConfig struct {
	Username string `koanf:"username" json:"username,omitempty" yaml:"username"`
	Password string `koanf:"password" json:"password,omitempty" yaml:"password"`
	// PasswordHash is an argon2id PHC string; hosts prefer it over Password.
	PasswordHash string `koanf:"password_hash" json:"password_hash,omitempty" yaml:"password_hash" jsonschema:"pattern=^\\$argon2id\\$"`
}

// AuthConfig tunes the host side of the handshake.
type AuthConfig struct {
	RejectDelay Duration `koanf:"reject_delay" json:"reject_delay,omitempty" yaml:"reject_delay"`
}

// SpawnConfig describes the player this process spawns.
type SpawnConfig struct {
	Template string    `koanf:"template" json:"template,omitempty" yaml:"template"`
	Position []float64 `koanf:"position" json:"position,omitempty" yaml:"position,flow" jsonschema:"minItems=3,maxItems=3"`
	Rotation []float64 `koanf:"rotation" json:"rotation,omitempty" yaml:"rotation,flow" jsonschema:"minItems=4,maxItems=4"`
}

// ClientConfig tunes joining a session.
type ClientConfig struct {
	DialRetries      int      `koanf:"dial_retries" json:"dial_retries,omitempty" yaml:"dial_retries" jsonschema:"minimum=0"`
	DialBackoff      Duration `koanf:"dial_backoff" json:"dial_backoff,omitempty" yaml:"dial_backoff"`
	HandshakeTimeout Duration `koanf:"handshake_timeout" json:"handshake_timeout,omitempty" yaml:"handshake_timeout"`
}

// DiscoveryConfig configures the LAN beacon.
type DiscoveryConfig struct {
	Enabled       bool     `koanf:"enabled" json:"enabled,omitempty" yaml:"enabled"`
	ListenAddr    string   `koanf:"listen_addr" json:"listen_addr,omitempty" yaml:"listen_addr"`
	BroadcastAddr string   `koanf:"broadcast_addr" json:"broadcast_addr,omitempty" yaml:"broadcast_addr"`
	Interval      Duration `koanf:"interval" json:"interval,omitempty" yaml:"interval"`
	Filter        string   `koanf:"filter" json:"filter,omitempty" yaml:"filter"`
}

// PortMappingConfig configures gateway port forwarding for hosts.
type PortMappingConfig struct {
	Mode         string   `koanf:"mode" json:"mode,omitempty" yaml:"mode" jsonschema:"enum=none,enum=static"`
	ExternalPort int      `koanf:"external_port" json:"external_port,omitempty" yaml:"external_port" jsonschema:"minimum=0,maximum=65535"`
	MaxRetries   int      `koanf:"max_retries" json:"max_retries,omitempty" yaml:"max_retries" jsonschema:"minimum=0"`
	Backoff      Duration `koanf:"backoff" json:"backoff,omitempty" yaml:"backoff"`
}

// ListServerConfig configures the Redis-backed session list.
type ListServerConfig struct {
	// RedisURL enables the list server when set.
	RedisURL string   `koanf:"redis_url" json:"redis_url,omitempty" yaml:"redis_url"`
	TTL      Duration `koanf:"ttl" json:"ttl,omitempty" yaml:"ttl"`
}

// MetricsConfig configures the observability server.
type MetricsConfig struct {
	// Addr enables /metrics and health probes when set.
	Addr string `koanf:"addr" json:"addr,omitempty" yaml:"addr"`
}

// LogConfig configures process logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Session: SessionConfig{
			Name:       "maroon",
			ListenAddr: ":7777",
			Path:       "/session",
		},
		Auth:  AuthConfig{RejectDelay: Duration(defaultRejectDelay)},
		Spawn: SpawnConfig{Template: "player"},
		Client: ClientConfig{
			DialRetries:      3,
			DialBackoff:      Duration(defaultDialBackoff),
			HandshakeTimeout: Duration(defaultHandshakeTimeout),
		},
		Discovery: DiscoveryConfig{
			Enabled:       true,
			ListenAddr:    ":47777",
			BroadcastAddr: "255.255.255.255:47777",
			Interval:      Duration(defaultDiscoveryInterval),
		},
		PortMapping: PortMappingConfig{
			Mode:       PortMappingNone,
			MaxRetries: 3,
			Backoff:    Duration(defaultPortMapBackoff),
		},
		ListServer: ListServerConfig{TTL: Duration(defaultListTTL)},
		Log:        LogConfig{Format: logging.FormatJSON, Level: "info"},
	}
}

func invalid(field string, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
}

// Validate checks the values a schema cannot express.
func (c Config) Validate() error {
	switch {
	case c.Session.ListenAddr == "":
		return invalid("session.listen_addr", "listen address is required")
	case c.Auth.RejectDelay < 0:
		return invalid("auth.reject_delay", "reject delay must not be negative")
	case c.Client.DialRetries < 0:
		return invalid("client.dial_retries", "dial retries must not be negative")
	case c.Client.DialBackoff < 0:
		return invalid("client.dial_backoff", "dial backoff must not be negative")
	case c.Discovery.Enabled && c.Discovery.Interval <= 0:
		return invalid("discovery.interval", "discovery interval must be positive")
	case c.PortMapping.MaxRetries < 0:
		return invalid("port_mapping.max_retries", "max retries must not be negative")
	case c.ListServer.RedisURL != "" && c.ListServer.TTL <= 0:
		return invalid("list_server.ttl", "list server ttl must be positive")
	case len(c.Spawn.Position) != 0 && len(c.Spawn.Position) != 3:
		return invalid("spawn.position", "position needs 3 components, got %d", len(c.Spawn.Position))
	case len(c.Spawn.Rotation) != 0 && len(c.Spawn.Rotation) != 4:
		return invalid("spawn.rotation", "rotation needs 4 components, got %d", len(c.Spawn.Rotation))
	}

	switch c.PortMapping.Mode {
	case "", PortMappingNone, PortMappingStatic:
	default:
		return invalid("port_mapping.mode", "unknown port mapping mode %q", c.PortMapping.Mode)
	}
	if c.Discovery.Filter != "" {
		if _, err := glob.Compile(c.Discovery.Filter); err != nil {
			return oops.Code("CONFIG_INVALID").With("field", "discovery.filter").Wrap(err)
		}
	}
	// The logging helpers carry their own codes; oops reports the innermost
	// one, so these are rebuilt rather than wrapped.
	if err := logging.ValidateFormat(c.Log.Format); err != nil {
		return invalid("log.format", "%v", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "%v", err)
	}
	return nil
}

// RequireCredentials checks that a session can be joined, or hosted when
// host is set. A host may use password_hash alone.
func (c Config) RequireCredentials(host bool) error {
	cred := c.Credentials
	if cred.Username == "" {
		return invalid("credentials.username", "username is required")
	}
	if cred.Password == "" && (!host || cred.PasswordHash == "") {
		return invalid("credentials.password", "password is required")
	}
	return nil
}

// Pose returns the configured spawn pose. Missing components default to
// the origin and the identity rotation.
func (c SpawnConfig) Pose() core.Pose {
	pose := core.Pose{Rotation: wire.Identity}
	if p := c.Position; len(p) == 3 {
		pose.Position = wire.Vector3{X: float32(p[0]), Y: float32(p[1]), Z: float32(p[2])}
	}
	if r := c.Rotation; len(r) == 4 {
		pose.Rotation = wire.Quaternion{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])}
	}
	return pose
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Credentials.Password != "" {
		c.Credentials.Password = "********"
	}
	return c
}
