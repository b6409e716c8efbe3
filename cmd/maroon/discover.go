// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maroonlab/maroon/internal/discovery"
)

const defaultDiscoverWait = 3 * time.Second

// discoverConfig holds configuration for the discover command.
type discoverConfig struct {
	wait       time.Duration
	jsonOutput bool
}

// NewDiscoverCmd creates the discover subcommand.
func NewDiscoverCmd(deps *Deps) *cobra.Command {
	dc := &discoverConfig{}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List sessions announced on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscoverWithDeps(cmd.Context(), cmd, dc, deps)
		},
	}

	cmd.Flags().DurationVar(&dc.wait, "wait", defaultDiscoverWait, "how long to listen for announcements")
	cmd.Flags().BoolVar(&dc.jsonOutput, "json", false, "output sessions as JSON")
	cmd.Flags().String("filter", "", "glob matched against session names")

	return cmd
}

func runDiscoverWithDeps(ctx context.Context, cmd *cobra.Command, dc *discoverConfig, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd, deps.ConfigLoader)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, deps.LogWriter)
	if err != nil {
		return err
	}

	beacon, err := deps.DiscoveryFactory(discovery.Config{
		ListenAddr: cfg.Discovery.ListenAddr,
		Interval:   cfg.Discovery.Interval.Std(),
		Filter:     cfg.Discovery.Filter,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer beacon.Close()

	beacon.StartDiscovery()
	select {
	case <-time.After(dc.wait):
	case <-ctx.Done():
	}
	hosts := beacon.Hosts()

	if dc.jsonOutput {
		out, err := formatHostsJSON(hosts)
		if err != nil {
			return err
		}
		cmd.Print(out)
		return nil
	}
	cmd.Print(formatHostsTable(hosts))
	return nil
}

func formatHostsTable(hosts []discovery.Host) string {
	if len(hosts) == 0 {
		return "No sessions found\n"
	}
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURL\tFROM\tLAST SEEN")
	for _, h := range hosts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.Name, h.URL, h.From, h.LastSeen.Format(time.TimeOnly))
	}
	_ = w.Flush()
	return sb.String()
}

func formatHostsJSON(hosts []discovery.Host) (string, error) {
	if hosts == nil {
		hosts = []discovery.Host{}
	}
	data, err := json.MarshalIndent(hosts, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}
