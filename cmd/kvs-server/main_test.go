package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikhailWahib/caskdb/internal/config"
	"github.com/MikhailWahib/caskdb/internal/server"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{config.EnvAddr, config.EnvZMQAddr, config.EnvEngine, config.EnvDataDir, config.EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func TestBuildContainer(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	container, err := buildContainer([]string{"-dir", dir, "-log-level", "error"})
	require.NoError(t, err)

	err = container.Invoke(func(h *server.Handler, tr transports) error {
		defer h.Close()
		assert.NotNil(t, tr.HTTP)
		assert.Nil(t, tr.ZMQ, "zmq is off without an address")
		return nil
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ".data"))
}

func TestBuildContainer_WithZMQ(t *testing.T) {
	clearEnv(t)

	container, err := buildContainer([]string{"-dir", t.TempDir(), "-zmq-addr", "tcp://127.0.0.1:0", "-log-level", "error"})
	require.NoError(t, err)

	err = container.Invoke(func(h *server.Handler, tr transports) error {
		defer h.Close()
		assert.NotNil(t, tr.ZMQ)
		return nil
	})
	require.NoError(t, err)
}

func TestRun_StopsWhenCancelled(t *testing.T) {
	clearEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := run(ctx, []string{"-dir", t.TempDir(), "-addr", "127.0.0.1:0", "-log-level", "error"})
	require.NoError(t, err)
}

func TestRun_BadEngine(t *testing.T) {
	clearEnv(t)

	err := run(context.Background(), []string{"-dir", t.TempDir(), "-engine", "sled", "-log-level", "error"})
	require.Error(t, err)
}
