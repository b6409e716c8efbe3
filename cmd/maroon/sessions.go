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

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/maroonlab/maroon/internal/listserver"
)

// NewSessionsCmd creates the sessions subcommand.
func NewSessionsCmd(deps *Deps) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions registered with the list server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsWithDeps(cmd.Context(), cmd, jsonOutput, deps)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output sessions as JSON")
	cmd.Flags().String("redis-url", "", "list server Redis URL")

	return cmd
}

func runSessionsWithDeps(ctx context.Context, cmd *cobra.Command, jsonOutput bool, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd, deps.ConfigLoader)
	if err != nil {
		return err
	}
	if cfg.ListServer.RedisURL == "" {
		return oops.Code("CONFIG_INVALID").With("field", "list_server.redis_url").
			Errorf("no list server configured")
	}

	lcfg := listserver.DefaultConfig()
	lcfg.URL = cfg.ListServer.RedisURL
	lcfg.TTL = cfg.ListServer.TTL.Std()
	registry, err := deps.ListServerFactory(ctx, lcfg)
	if err != nil {
		return err
	}
	defer func() { _ = registry.Close() }()

	entries, err := registry.List(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		if entries == nil {
			entries = []listserver.Entry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return oops.Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Print(formatEntriesTable(entries))
	return nil
}

func formatEntriesTable(entries []listserver.Entry) string {
	if len(entries) == 0 {
		return "No sessions listed\n"
	}
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURL\tREACHABLE\tANNOUNCED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", e.Name, e.URL, e.Reachable, e.AnnouncedAt.Format(time.DateTime))
	}
	_ = w.Flush()
	return sb.String()
}
