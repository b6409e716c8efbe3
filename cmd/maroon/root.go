// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maroonlab/maroon/internal/config"
	"github.com/maroonlab/maroon/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the maroon CLI.
func NewRootCmd() *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "maroon",
		Short: "maroon - multiplayer session host and client",
		Long: `maroon establishes multiplayer sessions for shared simulations.
A host serves a session over websockets, admits peers that present the
shared credentials, and spawns a player for each of them at the pose the
peer reports.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/maroon/config.yaml)")
	cmd.PersistentFlags().String("log-format", defaults.Log.Format, "log format (json or text)")
	cmd.PersistentFlags().String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")

	cmd.AddCommand(NewHostCmd(nil))
	cmd.AddCommand(NewJoinCmd(nil))
	cmd.AddCommand(NewDiscoverCmd(nil))
	cmd.AddCommand(NewSessionsCmd(nil))
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig merges the config file with the flags set on cmd.
func loadConfig(cmd *cobra.Command, loader func(string, *pflag.FlagSet) (config.Config, error)) (config.Config, error) {
	if loader == nil {
		loader = config.Load
	}
	return loader(configFile, cmd.Flags())
}

// newLogger builds the process logger and installs it as the default.
func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Service: "maroon",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  w,
	})
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return logger, nil
}
