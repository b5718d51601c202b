package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/felixgeelhaar/plansmith/pipeline"

// StartRunSpan creates the root span of one pipeline run.
//
// Usage:
//
//	ctx, span := telemetry.StartRunSpan(ctx, runID, "checkout")
//	defer span.End()
func StartRunSpan(ctx context.Context, runID, name string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "pipeline.run")

	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("plan_name", name),
		attribute.String("component", "pipeline"),
	)
	return ctx, span
}

// StartStageSpan creates a child span for one stage of a run.
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "stage."+stage)

	span.SetAttributes(
		attribute.String("stage", stage),
		attribute.String("component", "pipeline"),
	)
	return ctx, span
}

// StartCapabilitySpan creates a span for one capability call. Attempt is the
// stage attempt, starting at 1.
func StartCapabilitySpan(ctx context.Context, stage, entity string, attempt int) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "capability."+stage)

	span.SetAttributes(
		attribute.String("stage", stage),
		attribute.String("entity", entity),
		attribute.Int("attempt", attempt),
		attribute.String("component", "capability"),
	)
	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
//
// Usage:
//
//	telemetry.RecordSuccess(span,
//	    attribute.Int("tasks", 12),
//	    attribute.String("status", "Complete"),
//	)
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.Bool("error", true),
	)
}

// RecordDuration records the duration of an operation as a span attribute.
func RecordDuration(span trace.Span, name string, duration time.Duration) {
	span.SetAttributes(
		attribute.Int64(name+"_ms", duration.Milliseconds()),
	)
}

// RecordMetrics records counts as span attributes.
//
// Usage:
//
//	telemetry.RecordMetrics(span, map[string]int64{"tasks": 12, "dependencies": 9})
func RecordMetrics(span trace.Span, metrics map[string]int64) {
	for key, value := range metrics {
		span.SetAttributes(
			attribute.Int64(key, value),
		)
	}
}
