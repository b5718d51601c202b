package telemetry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitProviderDisabled(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = false

	ctx := context.Background()
	shutdown, err := InitProvider(ctx, config)
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function, got nil")
	}
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestInitProviderEnabled(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	config.Endpoint = "collector.example.com:4318"
	config.SampleRate = 0.5

	ctx := context.Background()
	shutdown, err := InitProvider(ctx, config)
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function, got nil")
	}
	if _, ok := GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Errorf("expected sdk tracer provider, got %T", GetTracerProvider())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}

func TestInitProviderInvalid(t *testing.T) {
	config := DefaultConfig()
	config.SampleRate = 2
	if _, err := InitProvider(context.Background(), config); err == nil {
		t.Fatal("expected error for invalid sample rate")
	}
}

func TestShutdownForceFlush(t *testing.T) {
	ctx := context.Background()
	if err := Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush failed: %v", err)
	}
}

// flakyExporter fails a fixed number of times before succeeding
type flakyExporter struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("collector unavailable")
	}
	return nil
}

func (f *flakyExporter) Shutdown(context.Context) error { return nil }

func TestGuardedExporter(t *testing.T) {
	t.Run("recovers after transient failures", func(t *testing.T) {
		inner := &flakyExporter{failures: 2}
		g := newGuardedExporter(inner)

		if err := g.ExportSpans(context.Background(), nil); err != nil {
			t.Fatalf("ExportSpans() error = %v", err)
		}
		if got := inner.calls.Load(); got != 3 {
			t.Errorf("calls = %d, want 3", got)
		}
	})

	t.Run("suspends after repeated failures", func(t *testing.T) {
		inner := &flakyExporter{failures: 1 << 30}
		g := newGuardedExporter(inner)
		g.tries = 1
		now := time.Now()
		g.now = func() time.Time { return now }

		for i := 0; i < tripAfter; i++ {
			if err := g.ExportSpans(context.Background(), nil); err == nil {
				t.Fatal("expected export error")
			}
		}
		before := inner.calls.Load()
		if err := g.ExportSpans(context.Background(), nil); err == nil {
			t.Fatal("expected suspended export")
		}
		if inner.calls.Load() != before {
			t.Error("suspended exporter must not call the collector")
		}

		now = now.Add(coolDown + time.Second)
		_ = g.ExportSpans(context.Background(), nil)
		if inner.calls.Load() != before+1 {
			t.Error("exporter must retry the collector after the cool-down")
		}
	})
}
