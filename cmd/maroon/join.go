// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package main

import (
	"context"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/maroonlab/maroon/internal/config"
	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/pkg/errutil"
)

// NewJoinCmd creates the join subcommand.
func NewJoinCmd(deps *Deps) *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "join <address>",
		Short: "Join a hosted session",
		Long: `Join the session at address, which is either a full ws:// URL or a
host[:port] using the configured session path. The local player spawns at
the configured pose once the host accepts the credentials.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoinWithDeps(cmd.Context(), cmd, args[0], deps)
		},
	}

	fs := cmd.Flags()
	addSessionFlags(fs, defaults)
	fs.Int("dial-retries", defaults.Client.DialRetries, "dial attempts after the first failure")
	fs.Duration("dial-backoff", defaults.Client.DialBackoff.Std(), "first delay between dial attempts")

	return cmd
}

// sessionURL turns a join address into a websocket URL.
func sessionURL(address, path string) (string, error) {
	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err != nil || u.Host == "" {
			return "", oops.Code("SESSION_BAD_ADDRESS").With("address", address).Errorf("invalid session address %q", address)
		}
		return u.String(), nil
	}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		host, port = address, "7777"
	}
	if host == "" {
		return "", oops.Code("SESSION_BAD_ADDRESS").With("address", address).Errorf("invalid session address %q", address)
	}
	return (&url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: path}).String(), nil
}

// runJoinWithDeps stays in the session until interrupted, ctx is cancelled,
// or the host drops the connection.
// If deps is nil, default implementations are used.
func runJoinWithDeps(ctx context.Context, cmd *cobra.Command, address string, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd, deps.ConfigLoader)
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(false); err != nil {
		return err
	}
	target, err := sessionURL(address, cfg.Session.Path)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, deps.LogWriter)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := buildStack(ctx, cfg, deps, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.shutdown(); err != nil {
			errutil.LogError(logger, "shutdown incomplete", err)
		}
	}()

	stopObs, err := startObservability(ctx, cancel, cfg, deps, logger, func() bool {
		return st.manager.Role() == core.RoleClientOnly
	})
	if err != nil {
		return err
	}
	defer stopObs()

	events := st.manager.Events().Subscribe()
	defer st.manager.Events().Unsubscribe(events)

	st.manager.Start(ctx)
	if err := st.manager.StartClient(ctx, target); err != nil {
		return err
	}
	cmd.Printf("Joined %s\n", target)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", "signal", sig.String())
			cmd.Println("Left session")
			return nil
		case <-ctx.Done():
			cmd.Println("Left session")
			return nil
		case ev := <-events:
			if ev.Type == core.EventRoleChanged && ev.Role == core.RoleOffline {
				cmd.Println("Disconnected from host")
				return nil
			}
		}
	}
}
