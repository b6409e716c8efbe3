// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

// Package transport carries session messages over websockets.
package transport

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/wire"
	"github.com/maroonlab/maroon/pkg/errutil"
)

const (
	maxMessageSize = 10 * 1024
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	writeWait      = 10 * time.Second
	sendQueueSize  = 64
)

// Handlers receive the events of a Conn. Both run on the reader goroutine.
type Handlers struct {
	// OnMessage is called for every decoded inbound message.
	OnMessage func(msg wire.Message)
	// OnClose is called once after the link has closed for any reason.
	OnClose func()
}

// Conn is a websocket link implementing core.Link.
//
// A reader pump decodes inbound frames and a writer pump serializes outbound
// ones; Close flushes queued messages before the close frame is written.
type Conn struct {
	ws     *websocket.Conn
	remote string
	send   chan []byte
	done   chan struct{}
	closed chan struct{}
	logger *slog.Logger

	started   atomic.Bool
	closeOnce sync.Once
	startOnce sync.Once
	wg        sync.WaitGroup
}

func newConn(ws *websocket.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Conn{
		ws:     ws,
		remote: ws.RemoteAddr().String(),
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		logger: logger.With("remote_addr", ws.RemoteAddr().String()),
	}
}

// Start runs the pumps. Messages that arrive before Start wait in the socket.
func (c *Conn) Start(h Handlers) {
	c.startOnce.Do(func() {
		c.started.Store(true)
		c.wg.Add(2)
		go c.writer()
		go c.reader(h)
		go func() {
			c.wg.Wait()
			close(c.closed)
			if h.OnClose != nil {
				h.OnClose()
			}
		}()
	})
}

// Send queues msg for the writer pump.
func (c *Conn) Send(msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return oops.Code("CONN_CLOSED").With("remote_addr", c.remote).Errorf("link is closed")
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return oops.Code("CONN_CLOSED").With("remote_addr", c.remote).Errorf("link is closed")
	}
}

// Close stops both pumps. Safe to call repeatedly and from any goroutine.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if !c.started.Load() {
			err = c.ws.Close()
		}
	})
	return err
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// Done is closed once both pumps have exited and the socket is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

func (c *Conn) reader(h Handlers) {
	defer func() {
		c.wg.Done()
		_ = c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			errutil.LogError(c.logger, "dropping undecodable message", err)
			continue
		}
		if h.OnMessage != nil {
			h.OnMessage(msg)
		}
	}
}

func (c *Conn) writer() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		c.wg.Done()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Conn) flush() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

var _ core.Link = (*Conn)(nil)
