// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package transport_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/maroonlab/maroon/internal/transport"
	"github.com/maroonlab/maroon/internal/wire"
	"github.com/maroonlab/maroon/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type serverSide struct {
	conns    chan *transport.Conn
	messages chan wire.Message
	closed   chan struct{}
}

func listen(t *testing.T) (*transport.Listener, *serverSide) {
	t.Helper()
	side := &serverSide{
		conns:    make(chan *transport.Conn, 4),
		messages: make(chan wire.Message, 16),
		closed:   make(chan struct{}, 4),
	}
	l, err := transport.Listen("127.0.0.1:0", func(conn *transport.Conn) {
		conn.Start(transport.Handlers{
			OnMessage: func(msg wire.Message) { side.messages <- msg },
			OnClose:   func() { side.closed <- struct{}{} },
		})
		side.conns <- conn
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Close(ctx)
	})
	return l, side
}

func fastDial() transport.DialConfig {
	cfg := transport.DefaultDialConfig()
	cfg.Retries = 1
	cfg.Backoff = time.Millisecond
	return cfg
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
		var zero T
		return zero
	}
}

func TestConn_RoundTrip(t *testing.T) {
	l, side := listen(t)
	client, err := transport.Dial(context.Background(), l.URL("127.0.0.1"), fastDial())
	require.NoError(t, err)

	fromServer := make(chan wire.Message, 4)
	client.Start(transport.Handlers{OnMessage: func(msg wire.Message) { fromServer <- msg }})

	req := wire.AuthRequest{Username: "demo", Password: "demo123"}
	require.NoError(t, client.Send(req))
	assert.Equal(t, req, receive(t, side.messages))

	server := receive(t, side.conns)
	require.NoError(t, server.Send(wire.Success()))
	assert.Equal(t, wire.Success(), receive(t, fromServer))

	spawnMsg := wire.CharacterSpawn{
		Position: wire.Vector3{X: 1.0, Y: 2.0, Z: 0.5},
		Rotation: wire.Quaternion{W: 1},
	}
	require.NoError(t, client.Send(spawnMsg))
	assert.Equal(t, spawnMsg, receive(t, side.messages))

	require.NoError(t, client.Close())
	receive(t, client.Done())
	receive(t, side.closed)
}

func TestConn_CloseFlushesQueuedMessages(t *testing.T) {
	l, side := listen(t)
	client, err := transport.Dial(context.Background(), l.URL("127.0.0.1"), fastDial())
	require.NoError(t, err)

	fromServer := make(chan wire.Message, 4)
	clientClosed := make(chan struct{})
	client.Start(transport.Handlers{
		OnMessage: func(msg wire.Message) { fromServer <- msg },
		OnClose:   func() { close(clientClosed) },
	})

	server := receive(t, side.conns)
	require.NoError(t, server.Send(wire.InvalidCredentials()))
	require.NoError(t, server.Close())

	assert.Equal(t, wire.InvalidCredentials(), receive(t, fromServer))
	receive(t, clientClosed)
}

func TestConn_SendAfterClose(t *testing.T) {
	l, _ := listen(t)
	client, err := transport.Dial(context.Background(), l.URL("127.0.0.1"), fastDial())
	require.NoError(t, err)
	client.Start(transport.Handlers{})

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	receive(t, client.Done())

	err = client.Send(wire.Success())
	errutil.AssertErrorCode(t, err, "CONN_CLOSED")
}

func TestConn_DropsUndecodableFrames(t *testing.T) {
	l, side := listen(t)
	raw, _, err := websocket.DefaultDialer.Dial(l.URL("127.0.0.1"), nil)
	require.NoError(t, err)
	defer raw.Close()

	require.NoError(t, raw.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport","payload":{}}`)))
	require.NoError(t, raw.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, raw.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"auth_request","payload":{"authUsername":"demo","authPassword":"demo123"}}`)))

	assert.Equal(t, wire.AuthRequest{Username: "demo", Password: "demo123"}, receive(t, side.messages))
}

func TestListener_ClosesConnections(t *testing.T) {
	side := make(chan *transport.Conn, 1)
	l, err := transport.Listen("127.0.0.1:0", func(conn *transport.Conn) {
		conn.Start(transport.Handlers{})
		side <- conn
	})
	require.NoError(t, err)

	client, err := transport.Dial(context.Background(), l.URL("127.0.0.1"), fastDial())
	require.NoError(t, err)
	clientClosed := make(chan struct{})
	client.Start(transport.Handlers{OnClose: func() { close(clientClosed) }})
	receive(t, side)
	assert.Equal(t, 1, l.Count())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Close(ctx))
	receive(t, clientClosed)
}

func TestListener_Health(t *testing.T) {
	l, _ := listen(t)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + l.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", strings.TrimSpace(string(body)))
}

func TestListener_URL(t *testing.T) {
	l, err := transport.Listen("127.0.0.1:0", func(c *transport.Conn) { c.Start(transport.Handlers{}) },
		transport.WithPath("/lobby"))
	require.NoError(t, err)
	defer l.Close(context.Background())

	assert.NotZero(t, l.Port())
	assert.True(t, strings.HasPrefix(l.URL("10.0.0.1"), "ws://10.0.0.1:"))
	assert.True(t, strings.HasSuffix(l.URL("10.0.0.1"), "/lobby"))
}

func TestListen_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = transport.Listen(ln.Addr().String(), func(*transport.Conn) {})
	errutil.AssertErrorCode(t, err, "SESSION_LISTEN_FAILED")
}

func TestDial_RetriesThenFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := fastDial()
	cfg.Retries = 2
	_, err = transport.Dial(context.Background(), "ws://"+addr+"/session", cfg)
	errutil.AssertErrorCode(t, err, "SESSION_DIAL_FAILED")
	errutil.AssertErrorContext(t, err, "attempts", 3)
}
