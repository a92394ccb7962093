package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrProvider  = "provider"
	attrResult    = "result"
	attrCommand   = "command"
	attrChannel   = "channel"
	attrAction    = "action"
	attrOutcome   = "outcome"
	attrState     = "state"
	attrTool      = "tool"
)

// Metrics provides methods for recording observability metrics.
// A zero Metrics is valid and records nothing.
type Metrics struct {
	// Callback HTTP server
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Upstream providers (Zoom, Google, OpenAI)
	providerOperationsTotal   metric.Int64Counter
	providerOperationDuration metric.Float64Histogram

	// OAuth
	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// Chat commands
	commandInvocationsTotal metric.Int64Counter
	commandDuration         metric.Float64Histogram
	commandRateLimitedTotal metric.Int64Counter

	// Meeting intake flows
	activeIntakeFlows  metric.Int64UpDownCounter
	intakeOutcomeTotal metric.Int64Counter

	// Attendance ledger
	ledgerOperationsTotal   metric.Int64Counter
	ledgerOperationDuration metric.Float64Histogram

	// MCP transport tools
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels adds the chat channel to command metrics.
	detailedLabels bool
}

var (
	fastBuckets = metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0)
	slowBuckets = metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)
)

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error
	counter := func(dst *metric.Int64Counter, name, desc, unit string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			err = fmt.Errorf("failed to create %s counter: %w", name, err)
		}
	}
	histogram := func(dst *metric.Float64Histogram, name, desc string, buckets metric.HistogramOption) {
		if err != nil {
			return
		}
		*dst, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"), buckets)
		if err != nil {
			err = fmt.Errorf("failed to create %s histogram: %w", name, err)
		}
	}

	counter(&m.httpRequestsTotal, "http_requests_total", "Total number of HTTP requests", "{request}")
	histogram(&m.httpRequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds", fastBuckets)

	counter(&m.providerOperationsTotal, "provider_api_operations_total", "Total number of upstream provider API operations", "{operation}")
	histogram(&m.providerOperationDuration, "provider_api_operation_duration_seconds", "Upstream provider API operation duration in seconds", slowBuckets)

	counter(&m.oauthAuthTotal, "oauth_auth_total", "Total number of OAuth authorization code exchanges", "{attempt}")
	counter(&m.oauthTokenRefreshTotal, "oauth_token_refresh_total", "Total number of OAuth token refresh attempts", "{attempt}")

	counter(&m.commandInvocationsTotal, "chat_command_invocations_total", "Total number of chat command invocations", "{invocation}")
	histogram(&m.commandDuration, "chat_command_duration_seconds", "Chat command execution duration in seconds", slowBuckets)
	counter(&m.commandRateLimitedTotal, "chat_command_rate_limited_total", "Total number of chat commands rejected by the rate limiter", "{invocation}")

	counter(&m.intakeOutcomeTotal, "meeting_intake_outcomes_total", "Total number of finished meeting intake flows by outcome", "{flow}")
	if err == nil {
		m.activeIntakeFlows, err = meter.Int64UpDownCounter("meeting_intake_active_flows",
			metric.WithDescription("Number of meeting intake flows in progress"),
			metric.WithUnit("{flow}"))
		if err != nil {
			err = fmt.Errorf("failed to create meeting_intake_active_flows gauge: %w", err)
		}
	}

	counter(&m.ledgerOperationsTotal, "attendance_ledger_operations_total", "Total number of attendance ledger operations", "{operation}")
	histogram(&m.ledgerOperationDuration, "attendance_ledger_operation_duration_seconds", "Attendance ledger operation duration in seconds", fastBuckets)

	counter(&m.toolInvocationsTotal, "mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}")
	histogram(&m.toolDuration, "mcp_tool_duration_seconds", "MCP tool execution duration in seconds", slowBuckets)

	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordProviderOperation records a call to an upstream provider.
//
// Parameters:
//   - provider: ProviderZoom, ProviderGoogle or ProviderOpenAI
//   - operation: e.g. "create_meeting", "token", "chat_completion"
//   - status: StatusSuccess or StatusError
func (m *Metrics) RecordProviderOperation(ctx context.Context, provider, operation, status string, duration time.Duration) {
	if m == nil || m.providerOperationsTotal == nil || m.providerOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.providerOperationsTotal.Add(ctx, 1, attrs)
	m.providerOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records an authorization code exchange with its result.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records a token refresh with its result.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordCommand records a chat command invocation. The channel label is only
// attached when detailed labels are enabled.
func (m *Metrics) RecordCommand(ctx context.Context, command, channel, status string, duration time.Duration) {
	if m == nil || m.commandInvocationsTotal == nil || m.commandDuration == nil {
		return
	}

	kv := []attribute.KeyValue{
		attribute.String(attrCommand, command),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && channel != "" {
		kv = append(kv, attribute.String(attrChannel, channel))
	}

	attrs := metric.WithAttributes(kv...)
	m.commandInvocationsTotal.Add(ctx, 1, attrs)
	m.commandDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCommandRateLimited records a command rejected by the rate limiter.
func (m *Metrics) RecordCommandRateLimited(ctx context.Context, command string) {
	if m == nil || m.commandRateLimitedTotal == nil {
		return
	}
	m.commandRateLimitedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrCommand, command)))
}

// IncrementActiveIntakeFlows increments the in-progress intake flow gauge.
func (m *Metrics) IncrementActiveIntakeFlows(ctx context.Context) {
	if m == nil || m.activeIntakeFlows == nil {
		return
	}
	m.activeIntakeFlows.Add(ctx, 1)
}

// DecrementActiveIntakeFlows decrements the in-progress intake flow gauge.
func (m *Metrics) DecrementActiveIntakeFlows(ctx context.Context) {
	if m == nil || m.activeIntakeFlows == nil {
		return
	}
	m.activeIntakeFlows.Add(ctx, -1)
}

// RecordIntakeOutcome records a finished intake flow. state is the state the
// flow was in when it finished or failed.
func (m *Metrics) RecordIntakeOutcome(ctx context.Context, outcome, state string) {
	if m == nil || m.intakeOutcomeTotal == nil {
		return
	}
	m.intakeOutcomeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOutcome, outcome),
		attribute.String(attrState, state),
	))
}

// RecordLedgerOperation records an attendance ledger transition.
func (m *Metrics) RecordLedgerOperation(ctx context.Context, action, status string, duration time.Duration) {
	if m == nil || m.ledgerOperationsTotal == nil || m.ledgerOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrAction, action),
		attribute.String(attrStatus, status),
	)
	m.ledgerOperationsTotal.Add(ctx, 1, attrs)
	m.ledgerOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordToolInvocation records an MCP tool call.
func (m *Metrics) RecordToolInvocation(ctx context.Context, tool, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTool, tool),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}
