// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package config

import (
	"time"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
)

// durationPattern matches strings accepted by time.ParseDuration.
const durationPattern = `^(0|([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+)$`

// Duration is a time.Duration written as "250ms" or "1m30s" in config files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("duration", string(text)).Wrap(err)
	}
	*d = Duration(parsed)
	return nil
}

// JSONSchema describes durations as strings.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     durationPattern,
		Description: "Go duration such as 250ms, 1s or 1m30s",
	}
}
