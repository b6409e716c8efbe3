// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package core

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultQueueSize = 256

// Timer is a scheduled one-shot task that can still be cancelled.
type Timer interface {
	// Stop cancels the task. It returns false if the task already fired.
	Stop() bool
}

// Scheduler runs deferred work on the network event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// EventLoop runs network reactions one at a time in arrival order.
//
// Reader goroutines Post inbound-message handlers; timers Post their
// callbacks. Tasks must not Post and wait on their own result.
type EventLoop struct {
	tasks     chan func()
	quit      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	logger    *slog.Logger
}

// LoopOption configures an EventLoop.
type LoopOption func(*EventLoop)

// WithLoopLogger sets the logger used to report panicking tasks.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *EventLoop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithQueueSize sets how many tasks may wait before Post blocks.
func WithQueueSize(n int) LoopOption {
	return func(l *EventLoop) {
		if n > 0 {
			l.tasks = make(chan func(), n)
		}
	}
}

// NewEventLoop creates a stopped event loop.
func NewEventLoop(opts ...LoopOption) *EventLoop {
	l := &EventLoop{
		tasks:  make(chan func(), defaultQueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins processing tasks. Calling Start more than once has no effect.
func (l *EventLoop) Start() {
	l.startOnce.Do(func() {
		l.started.Store(true)
		go l.run()
	})
}

// Stop stops the loop and waits for the running task to finish.
// Queued tasks that have not started are dropped.
func (l *EventLoop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
	if l.started.Load() {
		<-l.done
	}
}

// Post queues fn. It returns false if the loop is stopped.
func (l *EventLoop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// AfterFunc posts fn to the loop once d has elapsed.
func (l *EventLoop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() {
		l.Post(fn)
	})
}

func (l *EventLoop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case fn := <-l.tasks:
			l.execute(fn)
		}
	}
}

func (l *EventLoop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	fn()
}
