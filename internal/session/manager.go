// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package session owns the process-wide session role and drives the
// collaborators that depend on it.
//
// A Manager is Offline until StartHost or StartClient succeeds, and returns
// to Offline on StopHost, StopClient, or when a client's connection to its
// host goes away. Commands that are not legal from the current role do
// nothing.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/maroonlab/maroon/internal/auth"
	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/spawn"
	"github.com/maroonlab/maroon/internal/transport"
	"github.com/maroonlab/maroon/internal/wire"
	"github.com/maroonlab/maroon/pkg/errutil"
)

// lateMappingTimeout bounds the delete of a mapping confirmed during Shutdown.
const lateMappingTimeout = 5 * time.Second

// Config holds the settings of a Manager.
type Config struct {
	// Name is advertised and listed for hosted sessions.
	Name string
	// ListenAddr is the TCP address a host binds.
	ListenAddr string
	// Path is the websocket path of the session endpoint.
	Path string
	// AdvertiseHost is the host part of the advertised URL; detected when empty.
	AdvertiseHost string

	// Username and Password are presented when joining, including the
	// host's own local player.
	Username string
	Password string
	// Verifier checks credentials presented to a host.
	Verifier auth.Verifier
	// RejectDelay is how long a rejected peer stays connected.
	RejectDelay time.Duration

	// Template is the player template spawned for each peer.
	Template string
	// Headless hosts serve peers without joining their own session.
	Headless bool

	Dial transport.DialConfig
}

// Option configures a Manager.
type Option func(*Manager)

// WithDiscovery sets the discovery collaborator.
func WithDiscovery(d Discovery) Option {
	return func(m *Manager) {
		if d != nil {
			m.discovery = d
		}
	}
}

// WithPortMapper sets the port-mapping collaborator.
func WithPortMapper(p PortMapper) Option {
	return func(m *Manager) {
		if p != nil {
			m.portMapper = p
		}
	}
}

// WithListServer sets the list-server collaborator.
func WithListServer(ls ListServer) Option {
	return func(m *Manager) { m.listServer = ls }
}

// WithLocalPlayer sets the local player reported to hosts on join.
func WithLocalPlayer(p LocalPlayer) Option {
	return func(m *Manager) {
		if p != nil {
			m.local = p
		}
	}
}

// WithEvents publishes lifecycle events to b.
func WithEvents(b *core.Broadcaster) Option {
	return func(m *Manager) {
		if b != nil {
			m.events = b
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager is the session role state machine.
type Manager struct {
	cfg        Config
	discovery  Discovery
	portMapper PortMapper
	listServer ListServer
	local      LocalPlayer
	loop       *core.EventLoop
	events     *core.Broadcaster
	logger     *slog.Logger

	// mu serializes role transitions.
	mu      sync.Mutex
	role    core.Role
	started bool
	host    *Host
	client  *Client

	portMapped atomic.Bool
	closing    atomic.Bool
	wg         sync.WaitGroup
}

// NewManager creates an Offline manager.
func NewManager(cfg Config, opts ...Option) *Manager {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":7777"
	}
	if cfg.Path == "" {
		cfg.Path = transport.DefaultPath
	}
	if cfg.RejectDelay <= 0 {
		cfg.RejectDelay = auth.DefaultRejectDelay
	}
	if cfg.Template == "" {
		cfg.Template = spawn.DefaultTemplate
	}

	m := &Manager{
		cfg:        cfg,
		discovery:  nopDiscovery{},
		portMapper: nopPortMapper{},
		local:      NewStaticPlayer(core.Pose{Rotation: wire.Identity}, nil),
		events:     core.NewBroadcaster(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.loop = core.NewEventLoop(core.WithLoopLogger(m.logger))
	return m
}

// Start activates multi-user mode: it connects to the list server and starts
// discovery. Only the first call does anything.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked(ctx)
}

func (m *Manager) startLocked(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	m.loop.Start()

	if m.listServer != nil {
		if err := m.listServer.Connect(ctx); err != nil {
			errutil.LogWarn(m.logger, "list server unavailable", err)
		}
	}
	m.discovery.StartDiscovery()
	recordRole(core.RoleOffline)
	m.logger.Info("multi-user started")
}

// Role returns the current role.
func (m *Manager) Role() core.Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

// Buttons returns the controls valid in the current role.
func (m *Manager) Buttons() Buttons {
	return ButtonsFor(m.Role())
}

// PortMapped reports whether the gateway confirmed the port mapping.
func (m *Manager) PortMapped() bool {
	return m.portMapped.Load()
}

// Events returns the lifecycle event broadcaster.
func (m *Manager) Events() *core.Broadcaster {
	return m.events
}

// Host returns the running host, or nil when not hosting.
func (m *Manager) Host() *Host {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host
}

// Client returns the client connection, or nil when not a client. While
// hosting it is the host's own local player connection.
func (m *Manager) Client() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.host != nil {
		return m.host.local
	}
	return m.client
}

// StartHost serves a session and joins it as the local player. It does
// nothing unless the manager is Offline. Discovery advertisement, port
// mapping and listing happen only once the listener is bound.
func (m *Manager) StartHost(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !core.CanTransition(m.role, core.RoleHost) {
		m.logger.Debug("start host ignored", "role", m.role.String())
		return nil
	}
	if m.cfg.Verifier == nil {
		return oops.Code("SESSION_NO_CREDENTIALS").Errorf("hosting requires session credentials")
	}
	m.startLocked(ctx)

	host, err := startHost(hostConfig{
		listenAddr:  m.cfg.ListenAddr,
		path:        m.cfg.Path,
		verifier:    m.cfg.Verifier,
		rejectDelay: m.cfg.RejectDelay,
		template:    m.cfg.Template,
		loop:        m.loop,
		events:      m.events,
		logger:      m.logger,
	})
	if err != nil {
		return err
	}
	m.host = host
	m.setRole(core.RoleHost)

	url := host.URL(advertiseHost(m.cfg.AdvertiseHost, host.listener.Addr()))
	m.logger.Info("hosting session", "url", url, "name", m.cfg.Name)

	m.discovery.AdvertiseServer(url)
	m.portMapper.SetupPortForwarding(ctx, host.Port(), m.portsMapped)
	if m.listServer != nil {
		if err := m.listServer.Announce(ctx, m.cfg.Name, url); err != nil {
			errutil.LogError(m.logger, "failed to list session", err)
		}
	}

	if !m.cfg.Headless {
		local, err := dialClient(ctx, m.clientConfig(host.URL("127.0.0.1"), nil))
		if err != nil {
			errutil.LogError(m.logger, "local player could not join", err)
		} else {
			host.local = local
		}
	}
	return nil
}

// StopHost disconnects every peer and stops serving. It does nothing unless
// the manager is hosting. A confirmed port mapping is kept until Shutdown.
func (m *Manager) StopHost(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.role != core.RoleHost {
		m.logger.Debug("stop host ignored", "role", m.role.String())
		return nil
	}

	hadLocal := m.host.local != nil
	err := m.host.Close(ctx)
	m.host = nil

	if m.listServer != nil {
		if werr := m.listServer.Withdraw(ctx); werr != nil {
			errutil.LogError(m.logger, "failed to unlist session", werr)
		}
	}
	if hadLocal {
		m.local.UnregisterNetworkPlayer()
	}
	m.discovery.StartDiscovery()
	m.setRole(core.RoleOffline)
	m.logger.Info("stopped hosting")
	return err
}

// StartClient joins the session at url. It does nothing unless the manager
// is Offline. A dial failure leaves the manager Offline.
func (m *Manager) StartClient(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !core.CanTransition(m.role, core.RoleClientOnly) {
		m.logger.Debug("start client ignored", "role", m.role.String())
		return nil
	}
	m.startLocked(ctx)

	client, err := dialClient(ctx, m.clientConfig(url, func(c *Client) {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.clientClosed(c)
		}()
	}))
	if err != nil {
		return err
	}
	m.client = client
	m.setRole(core.RoleClientOnly)
	m.discovery.StopDiscovery()
	return nil
}

// StopClient leaves the joined session. It does nothing unless the manager
// is a client.
func (m *Manager) StopClient(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.role != core.RoleClientOnly {
		m.logger.Debug("stop client ignored", "role", m.role.String())
		return nil
	}
	client := m.client
	m.client = nil
	err := client.Close(ctx)
	m.leaveClientLocked()
	return err
}

// clientClosed handles a client connection ending on its own, for example
// after the host rejected it or went away.
func (m *Manager) clientClosed(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != c {
		return
	}
	m.client = nil
	m.logger.Warn("connection to host lost", "url", c.URL())
	m.leaveClientLocked()
}

func (m *Manager) leaveClientLocked() {
	m.local.UnregisterNetworkPlayer()
	m.discovery.StartDiscovery()
	m.setRole(core.RoleOffline)
	m.logger.Info("left session")
}

// Shutdown stops the active role and tears everything down. The port mapping
// is deleted only if the gateway confirmed it.
//
// A mapping the gateway confirms after Shutdown has begun is deleted by the
// confirmation callback itself.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closing.Store(true)

	var errs []error
	errs = append(errs, m.StopHost(ctx), m.StopClient(ctx))
	if err := m.releasePortMapping(ctx); err != nil {
		errs = append(errs, err)
	}

	m.mu.Lock()
	if m.started {
		m.discovery.StopDiscovery()
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.loop.Stop()
	return errors.Join(errs...)
}

// releasePortMapping deletes a confirmed mapping exactly once, whichever of
// Shutdown and a late confirmation gets there first.
func (m *Manager) releasePortMapping(ctx context.Context) error {
	if !m.portMapped.Swap(false) {
		return nil
	}
	PortMapped.Set(0)
	return m.portMapper.DeletePortMapping(ctx)
}

func (m *Manager) portsMapped() {
	m.portMapped.Store(true)
	if m.closing.Load() {
		m.logger.Info("port mapping confirmed during shutdown, deleting it")
		ctx, cancel := context.WithTimeout(context.Background(), lateMappingTimeout)
		defer cancel()
		if err := m.releasePortMapping(ctx); err != nil {
			errutil.LogError(m.logger, "failed to delete late port mapping", err)
		}
		return
	}
	PortMapped.Set(1)
	m.logger.Info("port mapping confirmed")
	m.events.Publish(core.NewEvent(core.EventPortMappingConfirmed))

	if m.listServer != nil {
		if err := m.listServer.PortMappingSuccessful(context.Background()); err != nil {
			errutil.LogError(m.logger, "failed to mark session reachable", err)
		}
	}
}

func (m *Manager) setRole(to core.Role) {
	if !core.CanTransition(m.role, to) {
		return
	}
	from := m.role
	m.role = to
	recordRole(to)

	m.logger.Info("session role changed", "from", from.String(), "role", to.String())
	event := core.NewEvent(core.EventRoleChanged)
	event.Role = to
	m.events.Publish(event)
}

func (m *Manager) clientConfig(url string, onClosed func(*Client)) clientConfig {
	return clientConfig{
		url:      url,
		username: m.cfg.Username,
		password: m.cfg.Password,
		dial:     m.cfg.Dial,
		player:   m.local,
		loop:     m.loop,
		events:   m.events,
		logger:   m.logger,
		onClosed: onClosed,
	}
}
