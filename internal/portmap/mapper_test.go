// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maroon Contributors

package portmap_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/maroonlab/maroon/internal/portmap"
	"github.com/maroonlab/maroon/pkg/errutil"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) AddPortMapping(ctx context.Context, protocol string, internalPort, externalPort int, description string) error {
	args := m.Called(ctx, protocol, internalPort, externalPort, description)
	return args.Error(0)
}

func (m *mockGateway) DeletePortMapping(ctx context.Context, protocol string, externalPort int) error {
	args := m.Called(ctx, protocol, externalPort)
	return args.Error(0)
}

type callback struct {
	mu    sync.Mutex
	calls int
}

func (c *callback) fn() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *callback) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestMapper_SuccessCallsBack(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &mockGateway{}
	gw.On("AddPortMapping", mock.Anything, "TCP", 7777, 7777, "maroon session").Return(nil).Once()
	gw.On("DeletePortMapping", mock.Anything, "TCP", 7777).Return(nil).Once()

	m := portmap.NewMapper(gw, portmap.Config{})
	var cb callback
	m.SetupPortForwarding(context.Background(), 7777, cb.fn)
	m.Wait()

	assert.Equal(t, 1, cb.count())
	assert.True(t, m.Mapped())

	require.NoError(t, m.DeletePortMapping(context.Background()))
	assert.False(t, m.Mapped())
	require.NoError(t, m.DeletePortMapping(context.Background()))
	gw.AssertExpectations(t)
}

func TestMapper_RetriesTransientFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &mockGateway{}
	gw.On("AddPortMapping", mock.Anything, "TCP", 7777, 17777, mock.Anything).Return(errors.New("timeout")).Twice()
	gw.On("AddPortMapping", mock.Anything, "TCP", 7777, 17777, mock.Anything).Return(nil).Once()

	m := portmap.NewMapper(gw, portmap.Config{ExternalPort: 17777, MaxRetries: 3, Backoff: time.Millisecond})
	var cb callback
	m.SetupPortForwarding(context.Background(), 7777, cb.fn)
	m.Wait()

	assert.Equal(t, 1, cb.count())
	gw.AssertNumberOfCalls(t, "AddPortMapping", 3)
}

func TestMapper_FailureNeverCallsBack(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &mockGateway{}
	gw.On("AddPortMapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("refused"))

	m := portmap.NewMapper(gw, portmap.Config{MaxRetries: 2, Backoff: time.Millisecond})
	var cb callback
	m.SetupPortForwarding(context.Background(), 7777, cb.fn)
	m.Wait()

	assert.Zero(t, cb.count())
	assert.False(t, m.Mapped())
	gw.AssertNumberOfCalls(t, "AddPortMapping", 3)

	require.NoError(t, m.DeletePortMapping(context.Background()))
	gw.AssertNotCalled(t, "DeletePortMapping", mock.Anything, mock.Anything, mock.Anything)
}

func TestMapper_NoGatewayIsNotRetried(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := portmap.NewMapper(portmap.NoGateway{}, portmap.Config{MaxRetries: 5, Backoff: time.Hour})
	var cb callback
	m.SetupPortForwarding(context.Background(), 7777, cb.fn)
	m.Wait()

	assert.Zero(t, cb.count())
	assert.False(t, m.Mapped())
}

func TestMapper_CloseCancelsBackoff(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := &mockGateway{}
	gw.On("AddPortMapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("busy"))

	m := portmap.NewMapper(gw, portmap.Config{MaxRetries: 10, Backoff: time.Hour})
	var cb callback
	m.SetupPortForwarding(context.Background(), 7777, cb.fn)

	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the retry backoff")
	}
	assert.Zero(t, cb.count())
}

func TestMapper_DeleteFailure(t *testing.T) {
	gw := &mockGateway{}
	gw.On("AddPortMapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gw.On("DeletePortMapping", mock.Anything, "TCP", 7777).Return(errors.New("gone"))

	m := portmap.NewMapper(gw, portmap.Config{})
	m.SetupPortForwarding(context.Background(), 7777, nil)
	m.Wait()

	err := m.DeletePortMapping(context.Background())
	errutil.AssertErrorCode(t, err, "PORTMAP_FAILED")
	errutil.AssertErrorContext(t, err, "operation", "delete")
}

func TestNewGateway(t *testing.T) {
	gw, err := portmap.NewGateway("")
	require.NoError(t, err)
	assert.IsType(t, portmap.NoGateway{}, gw)

	gw, err = portmap.NewGateway(portmap.ModeStatic)
	require.NoError(t, err)
	assert.IsType(t, portmap.StaticGateway{}, gw)

	_, err = portmap.NewGateway("upnp")
	errutil.AssertErrorCode(t, err, "PORTMAP_UNKNOWN_MODE")
}
