// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maroonlab/maroon/internal/config"
	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/pkg/errutil"
)

// NewHostCmd creates the host subcommand.
func NewHostCmd(deps *Deps) *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a session and join it as the local player",
		Long: `Host a session: listen for peers, admit those presenting the session
credentials, and spawn a player for each. Unless --headless is set the
host also joins its own session as a local player.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHostWithDeps(cmd.Context(), cmd, deps)
		},
	}

	fs := cmd.Flags()
	addSessionFlags(fs, defaults)
	fs.String("listen", defaults.Session.ListenAddr, "session listen address")
	fs.String("path", defaults.Session.Path, "websocket path of the session endpoint")
	fs.String("advertise-host", "", "host part of the advertised URL (default: detected)")
	fs.Bool("headless", false, "serve peers without a local player")
	fs.Duration("reject-delay", defaults.Auth.RejectDelay.Std(), "how long a rejected peer stays connected")
	fs.String("port-mapping", defaults.PortMapping.Mode, "port mapping mode (none or static)")
	fs.Int("external-port", 0, "external port requested from the gateway (default: listen port)")
	fs.String("redis-url", "", "list server Redis URL (empty = not listed)")

	return cmd
}

// runHostWithDeps hosts until interrupted or ctx is cancelled.
// If deps is nil, default implementations are used.
func runHostWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd, deps.ConfigLoader)
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(true); err != nil {
		return err
	}
	logger, err := newLogger(cfg, deps.LogWriter)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := buildStack(ctx, cfg, deps, logger, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.shutdown(); err != nil {
			errutil.LogError(logger, "shutdown incomplete", err)
		}
	}()

	stopObs, err := startObservability(ctx, cancel, cfg, deps, logger, func() bool {
		return st.manager.Role() == core.RoleHost
	})
	if err != nil {
		return err
	}
	defer stopObs()

	st.manager.Start(ctx)
	if err := st.manager.StartHost(ctx); err != nil {
		return err
	}

	host := st.manager.Host()
	cmd.Printf("Hosting %q on port %d\n", cfg.Session.Name, host.Port())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	cmd.Println("Session closed")
	return nil
}
