// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DialConfig controls how a client reaches a host.
type DialConfig struct {
	// Retries is how many times a failed dial is repeated.
	Retries uint64
	// Backoff is the first delay between attempts; it doubles each retry.
	Backoff time.Duration
	// HandshakeTimeout bounds a single websocket upgrade.
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// DefaultDialConfig returns the dial settings used by the CLI.
func DefaultDialConfig() DialConfig {
	return DialConfig{
		Retries:          3,
		Backoff:          250 * time.Millisecond,
		HandshakeTimeout: 5 * time.Second,
	}
}

// Dial opens a websocket to url, retrying with exponential backoff.
// The returned Conn has not been started.
func Dial(ctx context.Context, url string, cfg DialConfig) (*Conn, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultDialConfig().Backoff
	}

	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	var ws *websocket.Conn
	attempt := 0
	b := retry.WithMaxRetries(cfg.Retries, retry.NewExponential(backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			logger.Debug("dial attempt failed", "url", url, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		ws = conn
		return nil
	})
	if err != nil {
		return nil, oops.Code("SESSION_DIAL_FAILED").
			With("url", url).
			With("attempts", attempt).
			Wrap(err)
	}

	return newConn(ws, logger), nil
}
