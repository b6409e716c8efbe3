// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Command maroon hosts, joins and finds multiplayer sessions.
package main

import (
	"fmt"
	"os"

	"github.com/maroonlab/maroon/pkg/errutil"
)

// Set with -ldflags at release time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit statuses. Configuration problems are told apart so scripts can stop
// retrying a host that will never start.
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = versionString()
	os.Exit(exitCode(cmd.Execute()))
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch errutil.Code(err) {
	case "CONFIG_INVALID", "CONFIG_NOT_FOUND", "CONFIG_SCHEMA_FAILED",
		"LOG_INVALID_FORMAT", "LOG_INVALID_LEVEL", "SESSION_NO_CREDENTIALS":
		return exitConfig
	default:
		return exitFailure
	}
}
