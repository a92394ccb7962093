// Package instrumentation provides OpenTelemetry instrumentation for officebot.
//
// # Metrics
//
// Callback HTTP server:
//   - http_requests_total, http_request_duration_seconds
//
// Chat commands:
//   - chat_command_invocations_total, chat_command_duration_seconds
//   - chat_command_rate_limited_total
//
// Upstream providers (Zoom, Google, OpenAI):
//   - provider_api_operations_total, provider_api_operation_duration_seconds
//
// OAuth:
//   - oauth_auth_total, oauth_token_refresh_total
//
// Meeting intake and attendance:
//   - meeting_intake_active_flows, meeting_intake_outcomes_total
//   - attendance_ledger_operations_total, attendance_ledger_operation_duration_seconds
//
// # Tracing
//
// Spans are created per chat command (command.<name>), per provider call
// (<provider>.<operation>) and per ledger transition (attendance.<action>).
//
// # Configuration
//
// See DefaultConfig for the environment variables:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_TRACES_SAMPLER_ARG, OTEL_SERVICE_NAME
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordCommand(ctx, "login", channelID, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
