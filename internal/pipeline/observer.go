package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/plansmith/internal/metrics"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

// Event is a progress notification. Snapshot is a deep copy of the plan
// after the stage finished, or nil for Failed and Cancelled runs.
type Event struct {
	RunID     string      `json:"run_id"`
	Stage     State       `json:"stage"`
	State     State       `json:"state"`
	Timestamp time.Time   `json:"timestamp"`
	Counts    plan.Counts `json:"counts"`
	Snapshot  *plan.Plan  `json:"snapshot,omitempty"`
}

// observer is a bounded, non-blocking event queue. When the buffer is full
// the oldest queued event is dropped so the run never waits on a slow
// consumer.
type observer struct {
	ch      chan Event
	dropped atomic.Int64
	metrics *metrics.Metrics

	mu     sync.Mutex
	closed bool
}

func newObserver(size int, m *metrics.Metrics) *observer {
	return &observer{ch: make(chan Event, size), metrics: m}
}

// publish enqueues ev without blocking
func (o *observer) publish(ev Event) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	for {
		select {
		case o.ch <- ev:
			return
		default:
		}
		select {
		case <-o.ch:
			o.dropped.Add(1)
			o.metrics.RecordObserverDrop()
		default:
		}
	}
}

func (o *observer) close() {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}

func (o *observer) events() <-chan Event {
	if o == nil {
		return nil
	}
	return o.ch
}

func (o *observer) droppedCount() int64 {
	if o == nil {
		return 0
	}
	return o.dropped.Load()
}
