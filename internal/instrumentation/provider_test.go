package instrumentation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(metricsExporter, tracingExporter string) Config {
	return Config{
		ServiceName:     "officebot-test",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: metricsExporter,
		TracingExporter: tracingExporter,
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "officebot-test"})
	require.NoError(t, err)

	assert.False(t, provider.Enabled())
	assert.False(t, provider.ServesPrometheus())
	require.NotNil(t, provider.Metrics(), "a disabled provider still hands out a no-op recorder")
	assert.NotNil(t, provider.AuditLogger())
	assert.NotNil(t, provider.Tracer("test"))

	// Recording on the zero Metrics must not panic.
	provider.Metrics().RecordCommand(context.Background(), "login", "c1", StatusSuccess, time.Millisecond)

	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name            string
		config          Config
		wantPrometheus  bool
		wantErrContains string
	}{
		{
			name:           "prometheus metrics without tracing",
			config:         newTestConfig(ExporterPrometheus, ExporterNone),
			wantPrometheus: true,
		},
		{
			name:   "stdout metrics and traces",
			config: newTestConfig(ExporterStdout, ExporterStdout),
		},
		{
			name:            "invalid metrics exporter",
			config:          newTestConfig("statsd", ExporterNone),
			wantErrContains: "invalid metrics exporter",
		},
		{
			name:            "invalid tracing exporter",
			config:          newTestConfig(ExporterPrometheus, "jaeger"),
			wantErrContains: "invalid tracing exporter",
		},
		{
			name:            "otlp tracing without endpoint",
			config:          newTestConfig(ExporterPrometheus, ExporterOTLP),
			wantErrContains: "OTLP endpoint is required",
		},
		{
			name:            "otlp metrics without endpoint",
			config:          newTestConfig(ExporterOTLP, ExporterNone),
			wantErrContains: "OTLP endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Output = &bytes.Buffer{}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			provider, err := NewProvider(ctx, tt.config)
			if tt.wantErrContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrContains)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

			assert.True(t, provider.Enabled())
			assert.Equal(t, tt.wantPrometheus, provider.ServesPrometheus())
			assert.NotNil(t, provider.Metrics())
		})
	}
}

func TestNewProvider_StdoutExportersUseOutput(t *testing.T) {
	var out bytes.Buffer
	cfg := newTestConfig(ExporterStdout, ExporterStdout)
	cfg.Output = &out
	cfg.TraceSamplingRate = 1
	cfg.MetricInterval = time.Hour

	ctx := context.Background()
	provider, err := NewProvider(ctx, cfg)
	require.NoError(t, err)

	provider.Metrics().RecordLedgerOperation(ctx, "login", StatusSuccess, time.Millisecond)
	_, span := provider.Tracer("test").Start(ctx, "attendance.login")
	span.End()

	// Shutdown flushes both exporters.
	require.NoError(t, provider.Shutdown(ctx))
	assert.Contains(t, out.String(), "attendance_ledger_operations_total")
	assert.Contains(t, out.String(), "attendance.login")
}

func TestProvider_AuditLoggerFollowsConfig(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	provider, err := NewProvider(context.Background(), Config{
		AuditLogging: AuditLoggingConfig{Enabled: true, IncludePII: true},
	})
	require.NoError(t, err)

	provider.AuditLogger().LogCommand(NewCommandInvocation("logout").WithUser("user-7", "c1").Complete(nil))
	assert.Contains(t, buf.String(), "command_executed")
	assert.Contains(t, buf.String(), `"user":"user-7"`)
}

func TestProvider_Shutdown(t *testing.T) {
	cfg := newTestConfig(ExporterStdout, ExporterNone)
	cfg.Output = &bytes.Buffer{}

	provider, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, provider.Shutdown(ctx))
}
