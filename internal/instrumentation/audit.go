package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/officebot/internal/logging"
)

// CommandInvocation captures one chat command for audit logging.
//
// # Privacy Considerations
//
// UserIdentity is the raw chat platform user id. Unless the audit logger is
// configured with IncludePII only its hash is written.
type CommandInvocation struct {
	Command      string
	UserIdentity string
	Channel      string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewCommandInvocation creates a CommandInvocation with timing started.
// Call Complete when the command finishes.
func NewCommandInvocation(command string) *CommandInvocation {
	return &CommandInvocation{
		Command:   command,
		StartTime: time.Now(),
	}
}

// WithUser sets the chat user identity and channel.
func (ci *CommandInvocation) WithUser(userIdentity, channel string) *CommandInvocation {
	ci.UserIdentity = userIdentity
	ci.Channel = channel
	return ci
}

// WithSpanContext extracts trace context from the current span.
func (ci *CommandInvocation) WithSpanContext(ctx context.Context) *CommandInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ci.TraceID = span.SpanContext().TraceID().String()
		ci.SpanID = span.SpanContext().SpanID().String()
	}
	return ci
}

// Complete marks the invocation as finished and calculates the duration.
func (ci *CommandInvocation) Complete(err error) *CommandInvocation {
	ci.Duration = time.Since(ci.StartTime)
	ci.Success = err == nil
	if err != nil {
		ci.Error = err.Error()
	}
	return ci
}

// Status returns StatusSuccess or StatusError.
func (ci *CommandInvocation) Status() string {
	if ci.Success {
		return StatusSuccess
	}
	return StatusError
}

// attrs returns the log attributes. The raw user identity is only included
// when includePII is set.
func (ci *CommandInvocation) attrs(includePII bool) []any {
	attrs := []any{
		logging.Command(ci.Command),
		logging.UserHash(ci.UserIdentity),
		slog.Duration("duration", ci.Duration),
		slog.Bool("success", ci.Success),
		slog.String(logging.KeyStatus, ci.Status()),
	}
	if includePII {
		attrs = append(attrs, slog.String("user", ci.UserIdentity))
	}
	if ci.Channel != "" {
		attrs = append(attrs, logging.Channel(ci.Channel))
	}
	if ci.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ci.TraceID))
	}
	if ci.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ci.SpanID))
	}
	if ci.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, ci.Error))
	}
	return attrs
}

// AuditLogger writes one structured record per chat command.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger that hashes user identities.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates an AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogCommand logs a finished command invocation. Nil receivers are ignored.
func (al *AuditLogger) LogCommand(ci *CommandInvocation) {
	if al == nil || !al.enabled || ci == nil {
		return
	}

	if ci.Success {
		al.logger.Info("command_executed", ci.attrs(al.includePII)...)
	} else {
		al.logger.Warn("command_failed", ci.attrs(al.includePII)...)
	}
}
