// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package main

import (
	"bufio"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/maroonlab/maroon/internal/auth"
	"github.com/maroonlab/maroon/internal/config"
)

// NewConfigCmd creates the config subcommand and its children.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newHashPasswordCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return oops.Code("CONFIG_INVALID").Wrap(err)
			}
			cmd.Print(string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file against the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := config.Load(path, nil); err != nil {
				cmd.PrintErrln("invalid configuration:", config.FormatSchemaError(err))
				return err
			}
			cmd.Println("configuration is valid")
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the config JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	}
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a session password for credentials.password_hash",
		Long: `Read a password from the first line of stdin and print its argon2id
hash, suitable for credentials.password_hash in a host's config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				if err != nil {
					return oops.Code("AUTH_EMPTY_CREDENTIALS").Wrapf(err, "no password on stdin")
				}
				return oops.Code("AUTH_EMPTY_CREDENTIALS").Errorf("no password on stdin")
			}

			hash, err := auth.NewArgon2idHasher().Hash(password)
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}
}
