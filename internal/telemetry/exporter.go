package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	exportTries     = 5
	tripAfter       = 5
	coolDown        = 30 * time.Second
	exportMaxWait   = 10 * time.Second
	exportFirstWait = 100 * time.Millisecond
)

// guardedExporter retries span batches with backoff and stops calling the
// collector for a cool-down period after tripAfter consecutive failed
// batches. A pipeline run never waits on a dead collector for more than one
// batch.
type guardedExporter struct {
	next  sdktrace.SpanExporter
	tries uint

	mu        sync.Mutex
	failures  int
	trippedAt time.Time
	now       func() time.Time
}

func newGuardedExporter(next sdktrace.SpanExporter) *guardedExporter {
	return &guardedExporter{next: next, tries: exportTries, now: time.Now}
}

// tripped reports whether the exporter is cooling down
func (g *guardedExporter) tripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures >= tripAfter && g.now().Sub(g.trippedAt) < coolDown
}

func (g *guardedExporter) settle(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		g.failures = 0
		return
	}
	g.failures++
	if g.failures >= tripAfter {
		g.trippedAt = g.now()
	}
}

func (g *guardedExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if g.tripped() {
		return fmt.Errorf("span export suspended after %d failed batches", tripAfter)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = exportFirstWait
	b.MaxInterval = 2 * time.Second
	b.Multiplier = 1.5

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, g.next.ExportSpans(ctx, spans)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(g.tries), backoff.WithMaxElapsedTime(exportMaxWait))
	g.settle(err)
	if err != nil {
		return fmt.Errorf("export %d spans: %w", len(spans), err)
	}
	return nil
}

func (g *guardedExporter) Shutdown(ctx context.Context) error {
	return g.next.Shutdown(ctx)
}
