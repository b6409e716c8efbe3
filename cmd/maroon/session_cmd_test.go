// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maroonlab/maroon/internal/discovery"
	"github.com/maroonlab/maroon/pkg/errutil"
)

// syncBuffer lets a test read command output while the command runs.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// runAsync executes cmd with args and returns a wait function.
func runAsync(ctx context.Context, cmd *cobra.Command, out io.Writer, args ...string) func() error {
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()
	return func() error { return <-done }
}

func quietDeps() *Deps {
	return &Deps{LogWriter: io.Discard}
}

func TestHostAndJoin(t *testing.T) {
	isolate(t)
	port := freePort(t)
	addr := "127.0.0.1:" + strconv.Itoa(port)

	hostCtx, stopHost := context.WithCancel(context.Background())
	defer stopHost()
	hostOut := &syncBuffer{}
	waitHost := runAsync(hostCtx, NewHostCmd(quietDeps()), hostOut,
		"--listen", addr, "--advertise-host", "127.0.0.1", "--headless",
		"--discovery=false", "--username", "demo", "--password", "demo123")

	require.Eventually(t, func() bool { return strings.Contains(hostOut.String(), "Hosting") },
		3*time.Second, 10*time.Millisecond)

	joinCtx, leave := context.WithCancel(context.Background())
	joinOut := &syncBuffer{}
	waitJoin := runAsync(joinCtx, NewJoinCmd(quietDeps()), joinOut,
		addr, "--discovery=false", "--username", "demo", "--password", "demo123")

	require.Eventually(t, func() bool { return strings.Contains(joinOut.String(), "Joined ws://"+addr+"/session") },
		3*time.Second, 10*time.Millisecond)

	leave()
	require.NoError(t, waitJoin())
	assert.Contains(t, joinOut.String(), "Left session")

	stopHost()
	require.NoError(t, waitHost())
	assert.Contains(t, hostOut.String(), "Session closed")
}

func TestJoin_RejectedCredentialsDisconnect(t *testing.T) {
	isolate(t)
	addr := "127.0.0.1:" + strconv.Itoa(freePort(t))

	hostCtx, stopHost := context.WithCancel(context.Background())
	defer stopHost()
	hostOut := &syncBuffer{}
	waitHost := runAsync(hostCtx, NewHostCmd(quietDeps()), hostOut,
		"--listen", addr, "--headless", "--discovery=false",
		"--username", "demo", "--password", "demo123", "--reject-delay", "50ms")
	require.Eventually(t, func() bool { return strings.Contains(hostOut.String(), "Hosting") },
		3*time.Second, 10*time.Millisecond)

	joinOut := &syncBuffer{}
	waitJoin := runAsync(context.Background(), NewJoinCmd(quietDeps()), joinOut,
		addr, "--discovery=false", "--username", "demo", "--password", "wrong")

	require.NoError(t, waitJoin())
	assert.Contains(t, joinOut.String(), "Disconnected from host")

	stopHost()
	require.NoError(t, waitHost())
}

func TestHost_RequiresCredentials(t *testing.T) {
	isolate(t)
	cmd := NewHostCmd(quietDeps())
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--discovery=false"})

	err := cmd.Execute()
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestJoin_DialFailure(t *testing.T) {
	isolate(t)
	cmd := NewJoinCmd(quietDeps())
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"127.0.0.1:1", "--discovery=false", "--dial-retries", "0",
		"--username", "demo", "--password", "demo123"})

	err := cmd.Execute()
	errutil.AssertErrorCode(t, err, "SESSION_DIAL_FAILED")
}

func TestSessionURL(t *testing.T) {
	tests := []struct {
		address string
		want    string
		wantErr bool
	}{
		{"ws://10.0.0.5:7777/session", "ws://10.0.0.5:7777/session", false},
		{"10.0.0.5:9000", "ws://10.0.0.5:9000/session", false},
		{"lab-pc", "ws://lab-pc:7777/session", false},
		{"ws://", "", true},
		{":9000", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := sessionURL(tt.address, "/session")
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "SESSION_BAD_ADDRESS")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeBeacon struct {
	started bool
	closed  bool
	hosts   []discovery.Host
}

func (b *fakeBeacon) AdvertiseServer(string) {}
func (b *fakeBeacon) StartDiscovery()        { b.started = true }
func (b *fakeBeacon) StopDiscovery()         {}
func (b *fakeBeacon) Hosts() []discovery.Host {
	return b.hosts
}
func (b *fakeBeacon) Close() { b.closed = true }

func TestDiscover(t *testing.T) {
	isolate(t)
	beacon := &fakeBeacon{hosts: []discovery.Host{{
		Announcement: discovery.Announcement{ID: "01J", Name: "physics-lab", URL: "ws://10.0.0.5:7777/session"},
		From:         "10.0.0.5:47777",
		LastSeen:     time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
	}}}
	var gotFilter string
	deps := quietDeps()
	deps.DiscoveryFactory = func(cfg discovery.Config) (Discovery, error) {
		gotFilter = cfg.Filter
		return beacon, nil
	}

	out := new(bytes.Buffer)
	cmd := NewDiscoverCmd(deps)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--wait", "1ms", "--filter", "physics-*"})
	require.NoError(t, cmd.Execute())

	assert.True(t, beacon.started)
	assert.True(t, beacon.closed)
	assert.Equal(t, "physics-*", gotFilter)
	assert.Contains(t, out.String(), "physics-lab")
	assert.Contains(t, out.String(), "ws://10.0.0.5:7777/session")
}

func TestDiscover_JSONAndEmpty(t *testing.T) {
	isolate(t)
	deps := quietDeps()
	deps.DiscoveryFactory = func(discovery.Config) (Discovery, error) {
		return &fakeBeacon{}, nil
	}

	out := new(bytes.Buffer)
	cmd := NewDiscoverCmd(deps)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--wait", "1ms", "--json"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "[]\n", out.String())

	assert.Equal(t, "No sessions found\n", formatHostsTable(nil))
}
