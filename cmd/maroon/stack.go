// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/maroonlab/maroon/internal/auth"
	"github.com/maroonlab/maroon/internal/config"
	"github.com/maroonlab/maroon/internal/discovery"
	"github.com/maroonlab/maroon/internal/listserver"
	"github.com/maroonlab/maroon/internal/observability"
	"github.com/maroonlab/maroon/internal/portmap"
	"github.com/maroonlab/maroon/internal/session"
	"github.com/maroonlab/maroon/internal/spawn"
	"github.com/maroonlab/maroon/internal/transport"
	"github.com/maroonlab/maroon/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// stack is a session manager plus the collaborators it drives.
type stack struct {
	manager  *session.Manager
	beacon   Discovery
	mapper   *portmap.Mapper
	registry *listserver.Registry
	logger   *slog.Logger
}

// verifierFor builds the host-side credential check. With only a password
// hash configured the host cannot join its own session and runs headless.
func verifierFor(cfg config.Config, logger *slog.Logger) (auth.Verifier, bool, error) {
	cred := cfg.Credentials
	if cred.PasswordHash != "" {
		store, err := auth.NewHashedCredentialStore(cred.Username, cred.PasswordHash, auth.NewArgon2idHasher(),
			auth.WithStoreLogger(logger))
		if err != nil {
			return nil, false, err
		}
		return store, cred.Password == "", nil
	}
	store, err := auth.NewCredentialStore(cred.Username, cred.Password, auth.WithStoreLogger(logger))
	if err != nil {
		return nil, false, err
	}
	return store, false, nil
}

// buildStack wires a manager from cfg. Optional collaborators that fail to
// start are logged and left out.
func buildStack(ctx context.Context, cfg config.Config, deps *Deps, logger *slog.Logger, host bool) (*stack, error) {
	s := &stack{logger: logger}

	mcfg := session.Config{
		Name:          cfg.Session.Name,
		ListenAddr:    cfg.Session.ListenAddr,
		Path:          cfg.Session.Path,
		AdvertiseHost: cfg.Session.AdvertiseHost,
		Username:      cfg.Credentials.Username,
		Password:      cfg.Credentials.Password,
		RejectDelay:   cfg.Auth.RejectDelay.Std(),
		Template:      cfg.Spawn.Template,
		Headless:      cfg.Session.Headless,
		Dial: transport.DialConfig{
			Retries:          uint64(cfg.Client.DialRetries),
			Backoff:          cfg.Client.DialBackoff.Std(),
			HandshakeTimeout: cfg.Client.HandshakeTimeout.Std(),
		},
	}
	if mcfg.Template == "" {
		mcfg.Template = spawn.DefaultTemplate
	}
	if host {
		verifier, headless, err := verifierFor(cfg, logger)
		if err != nil {
			return nil, err
		}
		mcfg.Verifier = verifier
		mcfg.Headless = mcfg.Headless || headless
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithLocalPlayer(session.NewStaticPlayer(cfg.Spawn.Pose(), logger)),
	}

	if cfg.Discovery.Enabled {
		beacon, err := deps.DiscoveryFactory(discovery.Config{
			Name:          cfg.Session.Name,
			ListenAddr:    cfg.Discovery.ListenAddr,
			BroadcastAddr: cfg.Discovery.BroadcastAddr,
			Interval:      cfg.Discovery.Interval.Std(),
			Filter:        cfg.Discovery.Filter,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		s.beacon = beacon
		opts = append(opts, session.WithDiscovery(beacon))
	}

	if host && cfg.PortMapping.Mode != "" && cfg.PortMapping.Mode != config.PortMappingNone {
		gw, err := deps.GatewayFactory(cfg.PortMapping.Mode)
		if err != nil {
			s.close()
			return nil, err
		}
		s.mapper = portmap.NewMapper(gw, portmap.Config{
			ExternalPort: cfg.PortMapping.ExternalPort,
			MaxRetries:   uint64(cfg.PortMapping.MaxRetries),
			Backoff:      cfg.PortMapping.Backoff.Std(),
			Logger:       logger,
		})
		opts = append(opts, session.WithPortMapper(s.mapper))
	}

	if host && cfg.ListServer.RedisURL != "" {
		lcfg := listserver.DefaultConfig()
		lcfg.URL = cfg.ListServer.RedisURL
		lcfg.TTL = cfg.ListServer.TTL.Std()
		registry, err := deps.ListServerFactory(ctx, lcfg)
		if err != nil {
			errutil.LogWarn(logger, "list server unavailable, session will not be listed", err)
		} else {
			s.registry = registry
			opts = append(opts, session.WithListServer(listserver.NewAnnouncer(registry, logger)))
		}
	}

	s.manager = session.NewManager(mcfg, opts...)
	return s, nil
}

// shutdown stops the manager and releases every collaborator.
func (s *stack) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.manager.Shutdown(ctx)
	s.close()
	return err
}

func (s *stack) close() {
	if s.mapper != nil {
		s.mapper.Close()
	}
	if s.beacon != nil {
		s.beacon.Close()
	}
	if s.registry != nil {
		if err := s.registry.Close(); err != nil {
			s.logger.Debug("error closing list server client", "error", err)
		}
	}
}

// startObservability serves metrics when cfg asks for it. The returned
// stop function is never nil.
func startObservability(ctx context.Context, cancel context.CancelFunc, cfg config.Config, deps *Deps, logger *slog.Logger, ready observability.ReadinessChecker) (func(), error) {
	if cfg.Metrics.Addr == "" {
		return func() {}, nil
	}
	server := deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready,
		observability.WithVersion(version),
		observability.WithLogger(logger),
		observability.WithRegistrars(auth.RegisterMetrics, spawn.RegisterMetrics, session.RegisterMetrics),
	)
	errCh, err := server.Start()
	if err != nil {
		return func() {}, err
	}
	go monitorServerErrors(ctx, cancel, errCh, "observability", logger)

	return func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if err := server.Stop(stopCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}, nil
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

// addSessionFlags registers the flags shared by host and join. Defaults are
// shown for help only; unset flags never override the config file.
func addSessionFlags(fs *pflag.FlagSet, defaults config.Config) {
	fs.String("name", defaults.Session.Name, "session name shown to peers")
	fs.String("username", "", "session username")
	fs.String("password", "", "session password")
	fs.String("template", defaults.Spawn.Template, "player template to spawn")
	fs.Bool("discovery", defaults.Discovery.Enabled, "use LAN discovery")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
}
