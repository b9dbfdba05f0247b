package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maloquacious/embedsvc/internal/logger"
	"github.com/maloquacious/embedsvc/internal/shutdown"
)

// blockingUsers holds every lookup until release is closed.
type blockingUsers struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingUsers) UserName(ctx context.Context, id int64) (string, bool, error) {
	b.entered <- struct{}{}
	<-b.release
	return "Test User", true, nil
}

func startRunner(t *testing.T, r *Runner, tr *shutdown.Trigger) (string, <-chan error) {
	t.Helper()
	require.NoError(t, r.Listen())

	errCh := make(chan error, 1)
	go func() { errCh <- r.Serve(tr.Done()) }()

	base := fmt.Sprintf("http://%s", r.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	return base, errCh
}

func TestRunnerDefaults(t *testing.T) {
	r := New(Config{}, nil, logger.Discard())
	assert.Equal(t, "127.0.0.1", r.cfg.BindAddress)
	assert.Equal(t, 3030, r.cfg.BindPort)
	assert.Nil(t, r.Addr())
	assert.NotNil(t, r.Handler())
}

func TestRunnerServesAndStops(t *testing.T) {
	r := New(Config{BindPort: EphemeralPort}, nil, logger.Discard())
	tr := shutdown.New()

	base, errCh := startRunner(t, r, tr)

	resp, err := http.Get(base + "/hello?name=World")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Hello, World! You've been greeted from Rust!", body["message"])

	tr.Fire()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}

	_, err = net.DialTimeout("tcp", r.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err, "listener should be closed after shutdown")
}

func TestRunnerDrainsInFlightRequest(t *testing.T) {
	users := &blockingUsers{entered: make(chan struct{}, 1), release: make(chan struct{})}
	r := New(Config{BindPort: EphemeralPort, UseStore: true}, users, logger.Discard())
	tr := shutdown.New()

	base, errCh := startRunner(t, r, tr)

	type result struct {
		status int
		body   string
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := http.Get(base + "/hello?name=Drain")
		if err != nil {
			resCh <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		resCh <- result{status: resp.StatusCode, body: string(b), err: err}
	}()

	<-users.entered
	tr.Fire()

	// Serve must not return while the request is still in flight.
	select {
	case err := <-errCh:
		t.Fatalf("runner stopped before drain: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(users.release)

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "User from DB: Test User")

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after drain")
	}
}

func TestRunnerBindFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	port := busy.Addr().(*net.TCPAddr).Port
	r := New(Config{BindPort: port}, nil, logger.Discard())

	err = r.Run(shutdown.New().Done())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBind)
	assert.Contains(t, err.Error(), strconv.Itoa(port))
}

func TestRunnerListenTwice(t *testing.T) {
	r := New(Config{BindPort: EphemeralPort}, nil, logger.Discard())
	require.NoError(t, r.Listen())
	t.Cleanup(func() {
		tr := shutdown.New()
		tr.Fire()
		_ = r.Serve(tr.Done())
	})

	assert.ErrorIs(t, r.Listen(), ErrBind)
}

func TestServeBeforeListen(t *testing.T) {
	r := New(Config{BindPort: EphemeralPort}, nil, logger.Discard())
	assert.Error(t, r.Serve(make(chan struct{})))
}

func TestRunnerShutdownTimeout(t *testing.T) {
	users := &blockingUsers{entered: make(chan struct{}, 1), release: make(chan struct{})}
	defer close(users.release)

	r := New(Config{BindPort: EphemeralPort, UseStore: true, ShutdownTimeout: 50 * time.Millisecond}, users, logger.Discard())
	tr := shutdown.New()
	base, errCh := startRunner(t, r, tr)

	go func() {
		resp, err := http.Get(base + "/hello?name=Slow")
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-users.entered
	tr.Fire()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown timeout not honored")
	}
}
