// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/maroonlab/maroon/internal/xdg"
)

const (
	defaultRejectDelay       = time.Second
	defaultDialBackoff       = 250 * time.Millisecond
	defaultHandshakeTimeout  = 5 * time.Second
	defaultDiscoveryInterval = time.Second
	defaultPortMapBackoff    = time.Second
	defaultListTTL           = 30 * time.Second
)

// FlagKeys maps command-line flag names to config keys. Only flags that the
// user actually set override the file.
var FlagKeys = map[string]string{
	"name":           "session.name",
	"listen":         "session.listen_addr",
	"path":           "session.path",
	"advertise-host": "session.advertise_host",
	"headless":       "session.headless",
	"username":       "credentials.username",
	"password":       "credentials.password",
	"reject-delay":   "auth.reject_delay",
	"template":       "spawn.template",
	"dial-retries":   "client.dial_retries",
	"dial-backoff":   "client.dial_backoff",
	"discovery":      "discovery.enabled",
	"filter":         "discovery.filter",
	"port-mapping":   "port_mapping.mode",
	"external-port":  "port_mapping.external_port",
	"redis-url":      "list_server.redis_url",
	"metrics-addr":   "metrics.addr",
	"log-format":     "log.format",
	"log-level":      "log.level",
}

// Load builds the configuration from defaults, the YAML file at path, and
// changed flags, in that order. An empty path means the XDG default, which
// may be absent. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		def, err := xdg.ConfigFile()
		if err == nil {
			path = def
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			path = ""
		case err != nil:
			return cfg, oops.Code("CONFIG_NOT_FOUND").With("path", path).Wrap(err)
		default:
			if err := ValidateSchema(data); err != nil {
				return cfg, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return cfg, oops.Code("CONFIG_INVALID").With("source", "flags").Wrap(err)
		}
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return cfg, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
