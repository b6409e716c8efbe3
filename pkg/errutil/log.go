// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package errutil bridges oops errors to slog and to tests.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at Error level. Extra attrs are appended after the
// error fields; oops errors also contribute their code and context.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	Log(logger, slog.LevelError, msg, err, attrs...)
}

// LogWarn logs err at Warn level, for failures the session survives such as
// an unreachable list server.
func LogWarn(logger *slog.Logger, msg string, err error, attrs ...any) {
	Log(logger, slog.LevelWarn, msg, err, attrs...)
}

// Log logs err at the given level.
func Log(logger *slog.Logger, level slog.Level, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}

	fields := []any{"error", errString(err)}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := Code(err); code != "" {
			fields = append(fields, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			fields = append(fields, "context", ctx)
		}
	}
	logger.Log(context.Background(), level, msg, append(fields, attrs...)...)
}

// Code returns the oops code carried by err, or "" when it has none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
