// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package discovery finds and advertises sessions on the local network with
// periodic UDP announcements.
package discovery

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/maroonlab/maroon/internal/core"
)

// Defaults for the LAN beacon.
const (
	DefaultPort          = "47777"
	DefaultListenAddr    = ":" + DefaultPort
	DefaultBroadcastAddr = "255.255.255.255:" + DefaultPort
	DefaultInterval      = time.Second

	maxDatagram = 1024
)

// Announcement is the datagram a host broadcasts.
type Announcement struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Host is a session seen on the network.
type Host struct {
	Announcement
	From     string
	LastSeen time.Time
}

// Config configures a Beacon.
type Config struct {
	// Name is advertised alongside the session URL.
	Name string
	// ListenAddr is the UDP address searched for announcements.
	ListenAddr string
	// BroadcastAddr is where announcements are sent.
	BroadcastAddr string
	// Interval is the time between announcements. Hosts not heard from for
	// three intervals are forgotten.
	Interval time.Duration
	// Filter is a glob matched against host names; empty matches all.
	Filter string
	Logger *slog.Logger
}

// Beacon advertises the local session and collects announcements from others.
// It implements the session manager's Discovery collaborator.
type Beacon struct {
	id       ulid.ULID
	cfg      Config
	filter   glob.Glob
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	mu            sync.Mutex
	hosts         map[string]Host
	advertCancel  context.CancelFunc
	advertURL     string
	listener      net.PacketConn
	listenStopped chan struct{}
	wg            sync.WaitGroup
}

// New creates a stopped beacon.
func New(cfg Config) (*Beacon, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.BroadcastAddr == "" {
		cfg.BroadcastAddr = DefaultBroadcastAddr
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	b := &Beacon{
		id:       core.NewULID(),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		interval: cfg.Interval,
		hosts:    make(map[string]Host),
	}
	if cfg.Filter != "" {
		g, err := glob.Compile(cfg.Filter)
		if err != nil {
			return nil, oops.Code("DISCOVERY_INVALID_FILTER").With("filter", cfg.Filter).Wrap(err)
		}
		b.filter = g
	}
	return b, nil
}

// AdvertiseServer starts announcing url. Advertising a different url replaces
// the previous announcement; repeating the same url is a no-op.
func (b *Beacon) AdvertiseServer(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.advertCancel != nil {
		if b.advertURL == url {
			return
		}
		b.advertCancel()
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		b.logger.Error("cannot open advertise socket", "error", err)
		return
	}
	dst, err := net.ResolveUDPAddr("udp4", b.cfg.BroadcastAddr)
	if err != nil {
		_ = conn.Close()
		b.logger.Error("invalid broadcast address", "addr", b.cfg.BroadcastAddr, "error", err)
		return
	}
	enableBroadcast(conn)

	payload, err := json.Marshal(Announcement{ID: b.id.String(), Name: b.cfg.Name, URL: url})
	if err != nil {
		_ = conn.Close()
		b.logger.Error("cannot encode announcement", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.advertCancel = cancel
	b.advertURL = url
	b.wg.Add(1)
	go b.advertise(ctx, conn, dst, payload)

	b.logger.Info("advertising session", "url", url, "broadcast_addr", b.cfg.BroadcastAddr)
}

// StopAdvertising stops announcing the local session.
func (b *Beacon) StopAdvertising() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopAdvertisingLocked()
}

func (b *Beacon) stopAdvertisingLocked() {
	if b.advertCancel == nil {
		return
	}
	b.advertCancel()
	b.advertCancel = nil
	b.advertURL = ""
	b.logger.Info("stopped advertising session")
}

// Advertising reports whether an announcement is being broadcast.
func (b *Beacon) Advertising() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.advertCancel != nil
}

// StartDiscovery stops any advertisement and starts listening for
// announcements. The listener is kept if it is already open.
func (b *Beacon) StartDiscovery() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopAdvertisingLocked()
	if b.listener != nil {
		return
	}
	conn, err := net.ListenPacket("udp4", b.cfg.ListenAddr)
	if err != nil {
		b.logger.Error("cannot listen for sessions", "addr", b.cfg.ListenAddr, "error", err)
		return
	}
	b.listener = conn
	b.listenStopped = make(chan struct{})
	b.wg.Add(1)
	go b.listen(conn, b.listenStopped)

	b.logger.Info("discovering sessions", "addr", conn.LocalAddr().String())
}

// StopDiscovery stops both searching and advertising, and forgets every
// host seen so far.
func (b *Beacon) StopDiscovery() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopAdvertisingLocked()
	if b.listener == nil {
		return
	}
	close(b.listenStopped)
	_ = b.listener.Close()
	b.listener = nil
	b.hosts = make(map[string]Host)
	b.logger.Info("stopped discovering sessions")
}

// Discovering reports whether the beacon is listening.
func (b *Beacon) Discovering() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listener != nil
}

// LocalAddr returns the address being listened on, or nil.
func (b *Beacon) LocalAddr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.LocalAddr()
}

// Hosts returns the sessions heard from recently, sorted by name.
// The local session is never included.
func (b *Beacon) Hosts() []Host {
	cutoff := b.now().Add(-3 * b.interval)

	b.mu.Lock()
	out := make([]Host, 0, len(b.hosts))
	for id, h := range b.hosts {
		if h.LastSeen.Before(cutoff) {
			delete(b.hosts, id)
			continue
		}
		out = append(out, h)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// Close stops everything and waits for background goroutines.
func (b *Beacon) Close() {
	b.StopDiscovery()
	b.wg.Wait()
}

func (b *Beacon) advertise(ctx context.Context, conn net.PacketConn, dst net.Addr, payload []byte) {
	defer b.wg.Done()
	defer conn.Close()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if _, err := conn.WriteTo(payload, dst); err != nil {
			b.logger.Debug("announcement failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *Beacon) listen(conn net.PacketConn, stopped <-chan struct{}) {
	defer b.wg.Done()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-stopped:
			default:
				b.logger.Warn("session discovery stopped", "error", err)
			}
			return
		}
		b.record(buf[:n], from)
	}
}

func (b *Beacon) record(data []byte, from net.Addr) {
	var a Announcement
	if err := json.Unmarshal(data, &a); err != nil || a.ID == "" || a.URL == "" {
		b.logger.Debug("ignoring malformed announcement", "from", from.String())
		return
	}
	if a.ID == b.id.String() {
		return
	}
	if b.filter != nil && !b.filter.Match(a.Name) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, known := b.hosts[a.ID]; !known {
		b.logger.Info("discovered session", "name", a.Name, "url", a.URL, "from", from.String())
	}
	b.hosts[a.ID] = Host{Announcement: a, From: from.String(), LastSeen: b.now()}
}
