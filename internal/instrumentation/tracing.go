package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/officebot/internal/logging"
)

// TracerName is the instrumentation scope of every officebot span.
const TracerName = "github.com/teemow/officebot"

// Span attribute keys. User identities only ever appear hashed.
const (
	SpanAttrCommand   = "chat.command"
	SpanAttrChannel   = "chat.channel"
	SpanAttrUserHash  = "chat.user_hash"
	SpanAttrProvider  = "provider.name"
	SpanAttrOperation = "provider.operation"
	SpanAttrAction    = "attendance.action"
)

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartCommandSpan starts the server span covering one chat command.
func StartCommandSpan(ctx context.Context, command, channel, user string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "command."+command,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(SpanAttrCommand, command),
			attribute.String(SpanAttrChannel, channel),
			attribute.String(SpanAttrUserHash, logging.AnonymizeIdentity(user)),
		),
	)
}

// StartFlowSpan starts the span that lives as long as one meeting intake
// conversation.
func StartFlowSpan(ctx context.Context, channel, user string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "intake.flow",
		trace.WithAttributes(
			attribute.String(SpanAttrChannel, channel),
			attribute.String(SpanAttrUserHash, logging.AnonymizeIdentity(user)),
		),
	)
}

// StartLedgerSpan starts the span around one attendance transaction.
func StartLedgerSpan(ctx context.Context, action string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "attendance."+action,
		trace.WithAttributes(attribute.String(SpanAttrAction, action)),
	)
}

// StartProviderSpan starts a client span for a call to Zoom, Google or OpenAI.
func StartProviderSpan(ctx context.Context, provider, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		attribute.String(SpanAttrProvider, provider),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)

	return tracer().Start(ctx, provider+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// SetSpanError marks span as failed. A nil err is ignored.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent records an event on the span carried by ctx, if any.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
