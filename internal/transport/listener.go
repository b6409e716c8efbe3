// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/samber/oops"
)

// DefaultPath is the HTTP path session websockets are served on.
const DefaultPath = "/session"

// AcceptFunc takes ownership of a freshly upgraded connection. It must call
// Start on the connection.
type AcceptFunc func(conn *Conn)

// Listener serves session websockets and a health endpoint over HTTP.
type Listener struct {
	ln       net.Listener
	srv      *http.Server
	path     string
	accept   AcceptFunc
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu     sync.Mutex
	conns  map[*Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithPath sets the websocket path.
func WithPath(path string) ListenerOption {
	return func(l *Listener) {
		if path != "" {
			l.path = path
		}
	}
}

// WithListenerLogger sets the logger.
func WithListenerLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Listen binds addr and starts serving. accept is called for every upgraded
// connection.
func Listen(addr string, accept AcceptFunc, opts ...ListenerOption) (*Listener, error) {
	l := &Listener{
		path:   DefaultPath,
		accept: accept,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			WriteBufferPool: &sync.Pool{},
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: slog.New(slog.DiscardHandler),
		conns:  make(map[*Conn]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.Code("SESSION_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	l.ln = ln

	router := mux.NewRouter()
	router.HandleFunc(l.path, l.handleUpgrade).Methods(http.MethodGet)
	router.HandleFunc("/healthz", l.handleHealth).Methods(http.MethodGet)

	l.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("session listener failed", "error", err)
		}
	}()

	l.logger.Info("session listener started", "addr", ln.Addr().String(), "path", l.path)
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Port returns the bound TCP port.
func (l *Listener) Port() int {
	if tcp, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// URL returns the websocket URL for host, for example "192.168.1.4".
func (l *Listener) URL(host string) string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, fmt.Sprint(l.Port())), l.path)
}

// Count returns how many connections are open.
func (l *Listener) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// Close stops accepting, closes every connection and waits for their pumps.
func (l *Listener) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	conns := make([]*Conn, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	err := l.srv.Shutdown(ctx)
	for _, c := range conns {
		_ = c.Close()
	}
	for _, c := range conns {
		select {
		case <-c.Done():
		case <-ctx.Done():
			return oops.Code("SESSION_CLOSE_TIMEOUT").Wrap(ctx.Err())
		}
	}
	l.wg.Wait()

	if err != nil {
		return oops.Code("SESSION_CLOSE_FAILED").Wrap(err)
	}
	l.logger.Info("session listener stopped")
	return nil
}

func (l *Listener) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, "ok")
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Debug("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(ws, l.logger)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		_ = conn.Close()
		return
	}
	l.conns[conn] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-conn.Done()
		l.mu.Lock()
		delete(l.conns, conn)
		l.mu.Unlock()
	}()

	l.accept(conn)
}
