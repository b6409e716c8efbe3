// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package portmap asks the network gateway to forward the session port so
// peers outside the LAN can join.
package portmap

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Protocol is the transport protocol mapped for sessions.
const Protocol = "TCP"

// ErrNoGateway is returned by gateways that cannot map ports at all.
// It is not retried.
var ErrNoGateway = errors.New("no port-mapping gateway available")

// Gateway performs mappings on the router.
type Gateway interface {
	AddPortMapping(ctx context.Context, protocol string, internalPort, externalPort int, description string) error
	DeletePortMapping(ctx context.Context, protocol string, externalPort int) error
}

// Config configures a Mapper.
type Config struct {
	// ExternalPort is requested on the gateway; zero uses the internal port.
	ExternalPort int
	// MaxRetries bounds additional attempts after the first failure.
	MaxRetries uint64
	// Backoff is the first delay between attempts.
	Backoff     time.Duration
	Description string
	Logger      *slog.Logger
}

// Mapper sets up one port mapping asynchronously and removes it on request.
// It implements the session manager's PortMapper collaborator.
type Mapper struct {
	gw     Gateway
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	mapped   bool
	external int
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewMapper creates a mapper using gw.
func NewMapper(gw Gateway, cfg Config) *Mapper {
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Description == "" {
		cfg.Description = "maroon session"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mapper{gw: gw, cfg: cfg, logger: logger}
}

// SetupPortForwarding starts mapping port in the background. onMapped is
// called only if the gateway confirms the mapping; on failure nothing is
// called. A setup already in flight is cancelled first.
func (m *Mapper) SetupPortForwarding(ctx context.Context, port int, onMapped func()) {
	external := m.cfg.ExternalPort
	if external == 0 {
		external = port
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer cancel()

		if err := m.add(ctx, port, external); err != nil {
			m.logger.Warn("port mapping failed",
				"internal_port", port,
				"external_port", external,
				"error", err,
			)
			return
		}

		m.mu.Lock()
		m.mapped = true
		m.external = external
		m.mu.Unlock()

		m.logger.Info("port mapped", "internal_port", port, "external_port", external)
		if onMapped != nil {
			onMapped()
		}
	}()
}

func (m *Mapper) add(ctx context.Context, internal, external int) error {
	attempt := 0
	b := retry.WithMaxRetries(m.cfg.MaxRetries, retry.NewExponential(m.cfg.Backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := m.gw.AddPortMapping(ctx, Protocol, internal, external, m.cfg.Description)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNoGateway) {
			return err
		}
		m.logger.Debug("port mapping attempt failed", "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return oops.Code("PORTMAP_FAILED").
			With("external_port", external).
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}

// Mapped reports whether the gateway confirmed a mapping.
func (m *Mapper) Mapped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapped
}

// DeletePortMapping removes the confirmed mapping. Without one it does nothing.
func (m *Mapper) DeletePortMapping(ctx context.Context) error {
	m.mu.Lock()
	mapped, external := m.mapped, m.external
	m.mapped = false
	m.mu.Unlock()

	if !mapped {
		return nil
	}
	if err := m.gw.DeletePortMapping(ctx, Protocol, external); err != nil {
		return oops.Code("PORTMAP_FAILED").
			With("external_port", external).
			With("operation", "delete").
			Wrap(err)
	}
	m.logger.Info("port mapping deleted", "external_port", external)
	return nil
}

// Wait blocks until a setup in flight has succeeded or given up.
func (m *Mapper) Wait() {
	m.wg.Wait()
}

// Close cancels a setup in flight and waits for it to finish.
func (m *Mapper) Close() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}
