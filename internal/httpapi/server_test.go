package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
)

func echoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestServerConfig_ApplyDefaults(t *testing.T) {
	cfg := ServerConfig{}
	cfg.applyDefaults()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, DefaultIdleTimeout, cfg.IdleTimeout)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestServerConfig_ApplyDefaults_PreservesCustomValues(t *testing.T) {
	cfg := ServerConfig{Addr: ":9999", ReadTimeout: 5 * time.Second}
	cfg.applyDefaults()

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
}

func TestServer_StartWithEphemeralPortAndShutdown(t *testing.T) {
	s := NewServer(ServerConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, echoHandler(), logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.IsRunning() }, time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, s.Addr())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
	assert.False(t, s.IsRunning())
}

func TestServer_DoubleStart_SecondCallErrors(t *testing.T) {
	s := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, echoHandler(), logging.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	require.Eventually(t, func() bool { return s.IsRunning() }, time.Second, 5*time.Millisecond)

	err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestServer_ShutdownBeforeStart_NoError(t *testing.T) {
	s := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, echoHandler(), logging.NewNopLogger())
	assert.NoError(t, s.Shutdown(context.Background()))
}
