package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer creates a test tracer with in-memory exporter
func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		SetTracerProvider(nil)
	})
	return exporter
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestRunAndStageSpans(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx, run := StartRunSpan(context.Background(), "run-1", "checkout")
	_, stage := StartStageSpan(ctx, "Estimating")
	stage.End()
	run.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	stageSpan, runSpan := spans[0], spans[1]
	if runSpan.Name != "pipeline.run" {
		t.Errorf("run span name = %q", runSpan.Name)
	}
	if v, _ := attrValue(runSpan.Attributes, "run_id"); v.AsString() != "run-1" {
		t.Errorf("run_id = %q", v.AsString())
	}
	if stageSpan.Name != "stage.Estimating" {
		t.Errorf("stage span name = %q", stageSpan.Name)
	}
	if stageSpan.Parent.SpanID() != runSpan.SpanContext.SpanID() {
		t.Error("stage span should be a child of the run span")
	}
}

func TestCapabilitySpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, span := StartCapabilitySpan(context.Background(), "TaskGen", "F2", 3)
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if v, _ := attrValue(spans[0].Attributes, "entity"); v.AsString() != "F2" {
		t.Errorf("entity = %q", v.AsString())
	}
	if v, _ := attrValue(spans[0].Attributes, "attempt"); v.AsInt64() != 3 {
		t.Errorf("attempt = %d", v.AsInt64())
	}
}

func TestRecordHelpers(t *testing.T) {
	exporter := setupTestTracer(t)

	_, ok := StartStageSpan(context.Background(), "Parsing")
	RecordSuccess(ok, attribute.Int("features", 3))
	RecordDuration(ok, "stage", 1500*time.Millisecond)
	RecordMetrics(ok, map[string]int64{"tasks": 7})
	ok.End()

	_, failed := StartStageSpan(context.Background(), "TaskGen")
	RecordError(failed, errors.New("retry budget exhausted"))
	RecordError(failed, nil)
	failed.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	if spans[0].Status.Code != codes.Ok {
		t.Errorf("success status = %v", spans[0].Status.Code)
	}
	if v, _ := attrValue(spans[0].Attributes, "stage_ms"); v.AsInt64() != 1500 {
		t.Errorf("stage_ms = %d", v.AsInt64())
	}
	if v, _ := attrValue(spans[0].Attributes, "tasks"); v.AsInt64() != 7 {
		t.Errorf("tasks = %d", v.AsInt64())
	}

	if spans[1].Status.Code != codes.Error {
		t.Errorf("error status = %v", spans[1].Status.Code)
	}
	if len(spans[1].Events) != 1 {
		t.Errorf("expected 1 error event, got %d", len(spans[1].Events))
	}
}
