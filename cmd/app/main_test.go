package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maloquacious/embedsvc/internal/config"
	"github.com/maloquacious/embedsvc/internal/host"
	"github.com/maloquacious/embedsvc/internal/logger"
	"github.com/maloquacious/embedsvc/internal/service"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath = ""
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGreetCommand(t *testing.T) {
	out, err := runCmd(t, "greet", "World")
	require.NoError(t, err)
	assert.Equal(t, "Hello, World! You've been greeted from Rust!", strings.TrimSpace(out))
}

func TestDBCreateThenVerify(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("EMBEDSVC_DATA_DIR", dir)
	t.Setenv("EMBEDSVC_LOGGING_LEVEL", "ERROR")

	out, err := runCmd(t, "db", "verify")
	require.Error(t, err)
	assert.Contains(t, out, `"state": "missing"`)

	_, err = runCmd(t, "db", "create")
	require.NoError(t, err)

	out, err = runCmd(t, "db", "verify")
	require.NoError(t, err)

	var report verifyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Exists)
	assert.Equal(t, "ready", report.State)
	assert.Equal(t, 1, report.Users)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String(), strings.TrimSpace(out))
}

func TestServeUntilInterruptedBeforeStart(t *testing.T) {
	cfg := *config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	h := host.New(cfg, logger.Discard()).WithServiceConfig(service.Config{BindPort: service.EphemeralPort})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- serveUntil(ctx, h, logger.Discard()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after an early interrupt")
	}

	require.NotNil(t, h.Addr())
	_, err := net.DialTimeout("tcp", h.Addr().String(), 200*time.Millisecond)
	assert.Error(t, err, "listener should be closed")

	_, err = h.Store().CountUsers(context.Background())
	assert.Error(t, err, "store should be closed")
}
