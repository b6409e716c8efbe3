// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package session

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/maroonlab/maroon/internal/auth"
	"github.com/maroonlab/maroon/internal/core"
	"github.com/maroonlab/maroon/internal/spawn"
	"github.com/maroonlab/maroon/internal/transport"
	"github.com/maroonlab/maroon/internal/wire"
	"github.com/maroonlab/maroon/pkg/errutil"
)

// clientConfig is what a Client needs to join a host.
type clientConfig struct {
	url      string
	username string
	password string
	dial     transport.DialConfig
	player   LocalPlayer
	loop     *core.EventLoop
	events   *core.Broadcaster
	logger   *slog.Logger
	// onClosed runs once the connection to the host is gone.
	onClosed func(c *Client)
}

// Client is one outbound connection to a host: it authenticates, then
// reports the local player's pose so the host can spawn it.
type Client struct {
	conn   *core.Connection
	link   *transport.Conn
	router *core.Router
	auth   *auth.ClientAuthenticator
	loop   *core.EventLoop
	logger *slog.Logger
	url    string
}

func dialClient(ctx context.Context, cfg clientConfig) (*Client, error) {
	dialCfg := cfg.dial
	dialCfg.Logger = cfg.logger
	link, err := transport.Dial(ctx, cfg.url, dialCfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger.With("url", cfg.url)
	c := &Client{
		conn:   core.NewConnection(link),
		link:   link,
		router: core.NewRouter(logger),
		loop:   cfg.loop,
		logger: logger,
		url:    cfg.url,
	}
	c.auth = auth.NewClientAuthenticator(cfg.username, cfg.password,
		auth.WithClientLogger(logger),
		auth.WithClientOnAccept(func(conn *core.Connection) {
			if err := spawn.SendSpawn(conn, cfg.player.Pose()); err != nil {
				errutil.LogError(logger, "failed to send spawn message", err)
			}
		}),
	)
	c.auth.Register(c.router)

	c.conn.OnClose(func() {
		c.auth.Unregister(c.router)
		event := core.NewEvent(core.EventConnectionClosed)
		event.ConnectionID = c.conn.ID()
		cfg.events.Publish(event)
		if cfg.onClosed != nil {
			cfg.onClosed(c)
		}
	})

	link.Start(transport.Handlers{
		OnMessage: func(msg wire.Message) {
			c.post(func() { c.router.Dispatch(c.conn, msg) })
		},
		OnClose: func() {
			c.post(func() { _ = c.conn.Close() })
		},
	})

	event := core.NewEvent(core.EventConnectionOpened)
	event.ConnectionID = c.conn.ID()
	cfg.events.Publish(event)

	if err := c.auth.Begin(c.conn); err != nil {
		_ = c.conn.Close()
		return nil, oops.Code("SESSION_DIAL_FAILED").With("url", cfg.url).Wrap(err)
	}
	logger.Info("connected to host", "conn_id", c.conn.ID().String())
	return c, nil
}

// post runs fn on the event loop, or inline once the loop has stopped.
func (c *Client) post(fn func()) {
	if !c.loop.Post(fn) {
		fn()
	}
}

// Connection returns the client's connection to the host.
func (c *Client) Connection() *core.Connection {
	return c.conn
}

// URL returns the host URL.
func (c *Client) URL() string {
	return c.url
}

// Close disconnects and waits for the link to wind down.
func (c *Client) Close(ctx context.Context) error {
	if err := c.conn.Close(); err != nil {
		return err
	}
	select {
	case <-c.link.Done():
		return nil
	case <-ctx.Done():
		return oops.Code("SESSION_CLOSE_TIMEOUT").With("url", c.url).Wrap(ctx.Err())
	}
}
