// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package main

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"github.com/maroonlab/maroon/internal/config"
	"github.com/maroonlab/maroon/internal/discovery"
	"github.com/maroonlab/maroon/internal/listserver"
	"github.com/maroonlab/maroon/internal/observability"
	"github.com/maroonlab/maroon/internal/portmap"
	"github.com/maroonlab/maroon/internal/session"
)

// Deps contains injectable dependencies for the session commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ConfigLoader merges the config file and flags.
	// Default: config.Load
	ConfigLoader func(path string, flags *pflag.FlagSet) (config.Config, error)

	// DiscoveryFactory creates the LAN beacon.
	// Default: discovery.New
	DiscoveryFactory func(cfg discovery.Config) (Discovery, error)

	// GatewayFactory creates the port-mapping gateway for a mode.
	// Default: portmap.NewGateway
	GatewayFactory func(mode string) (portmap.Gateway, error)

	// ListServerFactory connects to the list server.
	// Default: listserver.New
	ListServerFactory func(ctx context.Context, cfg listserver.Config) (*listserver.Registry, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, opts ...observability.Option) ObservabilityServer

	// LogWriter receives process logs.
	// Default: os.Stderr
	LogWriter io.Writer
}

// Discovery wraps the methods used from discovery.Beacon.
type Discovery interface {
	session.Discovery
	Hosts() []discovery.Host
	Close()
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// withDefaults fills every nil factory.
func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.ConfigLoader == nil {
		out.ConfigLoader = config.Load
	}
	if out.DiscoveryFactory == nil {
		out.DiscoveryFactory = func(cfg discovery.Config) (Discovery, error) {
			return discovery.New(cfg)
		}
	}
	if out.GatewayFactory == nil {
		out.GatewayFactory = portmap.NewGateway
	}
	if out.ListServerFactory == nil {
		out.ListServerFactory = listserver.New
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, opts ...observability.Option) ObservabilityServer {
			return observability.NewServer(addr, ready, opts...)
		}
	}
	return &out
}
