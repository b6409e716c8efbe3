// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package coretest provides test helpers for connection handling.
package coretest

import (
	"errors"
	"sync"
	"time"

	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/wire"
)

// ErrLinkClosed is returned by Send after the link is closed.
var ErrLinkClosed = errors.New("link closed")

// Link is an in-memory core.Link that records traffic.
type Link struct {
	Addr string

	mu       sync.Mutex
	sent     []wire.Message
	sentAt   []time.Time
	closed   bool
	closedAt time.Time
	closedCh chan struct{}
}

// NewLink creates an open link reporting addr as its peer.
func NewLink(addr string) *Link {
	return &Link{Addr: addr, closedCh: make(chan struct{})}
}

// Send records msg.
func (l *Link) Send(msg wire.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLinkClosed
	}
	l.sent = append(l.sent, msg)
	l.sentAt = append(l.sentAt, time.Now())
	return nil
}

// Close marks the link closed.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		l.closedAt = time.Now()
		close(l.closedCh)
	}
	return nil
}

// RemoteAddr returns Addr.
func (l *Link) RemoteAddr() string {
	return l.Addr
}

// Sent returns a copy of every message sent so far.
func (l *Link) Sent() []wire.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]wire.Message, len(l.sent))
	copy(out, l.sent)
	return out
}

// SentAt returns when the i-th message was sent.
func (l *Link) SentAt(i int) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sentAt[i]
}

// Responses returns the AuthResponses sent so far.
func (l *Link) Responses() []wire.AuthResponse {
	var out []wire.AuthResponse
	for _, msg := range l.Sent() {
		if resp, ok := msg.(wire.AuthResponse); ok {
			out = append(out, resp)
		}
	}
	return out
}

// IsClosed reports whether Close was called.
func (l *Link) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// ClosedAt returns when the link was closed; zero if still open.
func (l *Link) ClosedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closedAt
}

// Done is closed once the link closes.
func (l *Link) Done() <-chan struct{} {
	return l.closedCh
}

// ImmediateScheduler runs deferred work synchronously, recording the delays.
type ImmediateScheduler struct {
	mu     sync.Mutex
	Delays []time.Duration
	Hold   bool // when set, tasks are kept until Fire is called
	held   []func()
	stops  int
}

// AfterFunc implements core.Scheduler.
func (s *ImmediateScheduler) AfterFunc(d time.Duration, fn func()) core.Timer {
	s.mu.Lock()
	s.Delays = append(s.Delays, d)
	if s.Hold {
		t := &heldTimer{sched: s}
		s.held = append(s.held, func() {
			s.mu.Lock()
			run := !t.stopped
			t.fired = true
			s.mu.Unlock()
			if run {
				fn()
			}
		})
		s.mu.Unlock()
		return t
	}
	s.mu.Unlock()
	fn()
	return &heldTimer{sched: s, fired: true}
}

// Stopped returns how many pending tasks were cancelled.
func (s *ImmediateScheduler) Stopped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Fire runs every held task.
func (s *ImmediateScheduler) Fire() {
	s.mu.Lock()
	held := s.held
	s.held = nil
	s.mu.Unlock()
	for _, fn := range held {
		fn()
	}
}

type heldTimer struct {
	sched   *ImmediateScheduler
	stopped bool
	fired   bool
}

func (t *heldTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	t.sched.stops++
	return true
}

var (
	_ core.Link      = (*Link)(nil)
	_ core.Scheduler = (*ImmediateScheduler)(nil)
)
