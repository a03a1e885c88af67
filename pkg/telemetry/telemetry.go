// Package telemetry adapts the teacher's OpenTelemetry integration
// (pkg/telemetry: Settings/GetTracer/RecordSpan) so the ReACT loop's
// observation hooks (spec §4.J) can optionally emit spans around
// run/iteration/LLM-call/tool-call boundaries. Telemetry is disabled by
// default — GetTracer returns a no-op tracer — exactly as the teacher does
// it, generalized from the teacher's AI-SDK-specific span names
// ("ai.generateText", "ai.toolCall") to this runtime's own operation names.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the name under which this runtime registers its tracer.
const TracerName = "reactcore"

// Settings configures span emission. The zero value is disabled.
type Settings struct {
	IsEnabled bool
	Tracer    trace.Tracer
}

// GetTracer returns settings.Tracer if set, the global otel tracer if
// enabled with none set, or a no-op tracer when disabled.
func GetTracer(settings Settings) trace.Tracer {
	if !settings.IsEnabled {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	if settings.Tracer != nil {
		return settings.Tracer
	}
	return otel.Tracer(TracerName)
}

// current is the process-wide telemetry configuration hooks.go consults. A
// zero Settings means every span is a no-op, matching the teacher's default.
var current Settings

// Configure installs the process-wide telemetry settings.
func Configure(s Settings) { current = s }

// SpanOptions configures one RecordSpan call.
type SpanOptions struct {
	Name       string
	Attributes []attribute.KeyValue
}

// RecordSpan runs fn inside a span named opts.Name on the process-wide
// tracer and ends the span when fn returns. fn returns no error, so no error
// is recorded on the span; use RecordErrorOnSpan for that.
func RecordSpan(ctx context.Context, opts SpanOptions, fn func(context.Context)) {
	tracer := GetTracer(current)
	ctx, span := tracer.Start(ctx, opts.Name, trace.WithAttributes(opts.Attributes...))
	defer span.End()
	fn(ctx)
}

// RecordErrorOnSpan records err on span and marks it failed, a no-op if err
// is nil.
func RecordErrorOnSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
