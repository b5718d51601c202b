package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for plansmith
type Metrics struct {
	// Run metrics
	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	PlanTaskCount prometheus.Histogram

	// Stage metrics
	StageDuration    *prometheus.HistogramVec
	StageRetries     *prometheus.CounterVec
	DegradedEntities *prometheus.CounterVec

	// Capability metrics
	CapabilityCalls   *prometheus.CounterVec
	CapabilityLatency *prometheus.HistogramVec

	// Observer metrics
	ObserverDropped prometheus.Counter

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansmith_runs_total",
				Help: "Total number of pipeline runs by terminal status",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plansmith_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: []float64{0.01, 0.1, 1.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0},
			},
		),
		PlanTaskCount: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plansmith_plan_task_count",
				Help:    "Number of tasks in generated plans",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 200},
			},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plansmith_stage_duration_seconds",
				Help:    "Stage duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"stage"},
		),
		StageRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansmith_stage_retries_total",
				Help: "Total number of stage attempts rejected by validation",
			},
			[]string{"stage"},
		),
		DegradedEntities: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansmith_degraded_entities_total",
				Help: "Total number of entities replaced by a fallback",
			},
			[]string{"stage"},
		),

		CapabilityCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansmith_capability_calls_total",
				Help: "Total number of capability calls by outcome",
			},
			[]string{"stage", "result"},
		),
		CapabilityLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plansmith_capability_latency_seconds",
				Help:    "Capability call latency in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"stage"},
		),

		ObserverDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "plansmith_observer_dropped_total",
				Help: "Total number of observer events dropped because the buffer was full",
			},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansmith_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"route", "code"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plansmith_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// Capability call results
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// The helpers below accept a nil receiver so callers can run without metrics.

// RecordRun counts a finished run
func (m *Metrics) RecordRun(status string, duration time.Duration, tasks int) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())
	if tasks > 0 {
		m.PlanTaskCount.Observe(float64(tasks))
	}
}

// ObserveStage records the duration of one stage
func (m *Metrics) ObserveStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordRetry counts a rejected stage attempt
func (m *Metrics) RecordRetry(stage string) {
	if m == nil {
		return
	}
	m.StageRetries.WithLabelValues(stage).Inc()
}

// RecordDegraded counts an entity that fell back to its default
func (m *Metrics) RecordDegraded(stage string) {
	if m == nil {
		return
	}
	m.DegradedEntities.WithLabelValues(stage).Inc()
}

// RecordCall counts one capability call
func (m *Metrics) RecordCall(stage, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CapabilityCalls.WithLabelValues(stage, result).Inc()
	m.CapabilityLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordObserverDrop counts an event dropped by the observer channel
func (m *Metrics) RecordObserverDrop() {
	if m == nil {
		return
	}
	m.ObserverDropped.Inc()
}

// RecordHTTP counts an API request
func (m *Metrics) RecordHTTP(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}

// RecordError counts a coded error
func (m *Metrics) RecordError(code, component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(code, component).Inc()
}
