package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/officebot/internal/instrumentation"
)

func newProvider(t *testing.T, enabled bool, metricsExporter string) *instrumentation.Provider {
	t.Helper()
	ctx := context.Background()
	cfg := instrumentation.DefaultConfig()
	cfg.Enabled = enabled
	cfg.MetricsExporter = metricsExporter
	cfg.TracingExporter = "none"
	cfg.Output = io.Discard

	p, err := instrumentation.NewProvider(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })
	return p
}

func TestNewMetricsServer(t *testing.T) {
	tests := []struct {
		name     string
		provider *instrumentation.Provider
		addr     string
		wantAddr string
		wantErr  string
	}{
		{name: "prometheus", provider: newProvider(t, true, "prometheus"), addr: ":9091", wantAddr: ":9091"},
		{name: "default addr", provider: newProvider(t, true, "prometheus"), wantAddr: DefaultMetricsAddr},
		{name: "nil provider", wantErr: "instrumentation provider is required"},
		{name: "disabled", provider: newProvider(t, false, "prometheus"), wantErr: "not enabled"},
		{name: "stdout exporter", provider: newProvider(t, true, "stdout"), wantErr: "does not export to prometheus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewMetricsServer(MetricsServerConfig{Addr: tt.addr, InstrumentationProvider: tt.provider})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, srv.Addr())
		})
	}
}

func TestMetricsServer_Serves(t *testing.T) {
	provider := newProvider(t, true, "prometheus")
	provider.Metrics().RecordCommand(context.Background(), "login", "general", instrumentation.StatusSuccess, time.Millisecond)

	srv, err := NewMetricsServer(MetricsServerConfig{Addr: "127.0.0.1:0", InstrumentationProvider: provider})
	require.NoError(t, err)
	require.NoError(t, srv.Listen())
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr(), "the bound port is reported")

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	body := func(path string) string {
		resp, err := http.Get("http://" + srv.Addr() + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(b)
	}
	assert.Equal(t, "ok", body("/healthz"))
	assert.Contains(t, body("/metrics"), "chat_command_invocations_total")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, http.ErrServerClosed), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestMetricsServer_ShutdownBeforeListen(t *testing.T) {
	srv, err := NewMetricsServer(MetricsServerConfig{InstrumentationProvider: newProvider(t, true, "prometheus")})
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
