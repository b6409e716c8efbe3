// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package listserver

import "time"

// Config holds Redis connection and entry lifetime settings.
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0).
	URL string

	PoolSize     int
	MinIdleConns int

	// TTL is how long an entry survives without a refresh.
	TTL time.Duration
}

// DefaultConfig returns sensible defaults for the list server.
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     4,
		MinIdleConns: 1,
		TTL:          30 * time.Second,
	}
}
