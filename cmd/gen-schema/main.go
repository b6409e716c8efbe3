// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Command gen-schema writes the JSON Schema for maroon's config file.
// With --check it only reports whether the committed schema is stale.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/maroonlab/maroon/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gen-schema: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("gen-schema", pflag.ContinueOnError)
	outPath := flags.String("out", filepath.Join("schemas", "config.schema.json"), "schema file to write")
	check := flags.Bool("check", false, "fail if the schema file is out of date instead of writing it")
	if err := flags.Parse(args); err != nil {
		return err
	}

	schema, err := config.GenerateSchema()
	if err != nil {
		return err
	}

	if *check {
		current, err := os.ReadFile(*outPath)
		if err != nil {
			return oops.Code("SCHEMA_STALE").With("path", *outPath).Wrap(err)
		}
		if !bytes.Equal(current, schema) {
			return oops.Code("SCHEMA_STALE").With("path", *outPath).
				Errorf("%s is out of date, run gen-schema", *outPath)
		}
		fmt.Fprintf(out, "%s is up to date\n", *outPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o750); err != nil {
		return oops.With("path", *outPath).Wrap(err)
	}
	if err := os.WriteFile(*outPath, schema, 0o600); err != nil {
		return oops.With("path", *outPath).Wrap(err)
	}
	fmt.Fprintf(out, "Generated %s\n", *outPath)
	return nil
}
