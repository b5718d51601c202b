// Package health reports whether plansmith can serve planning requests.
//
// A Manager runs registered Checkers in parallel with a timeout and a
// ProbeManager turns the results into liveness, readiness and startup
// probes for the HTTP server:
//
//	pm := health.NewProbeManager(version.Short())
//	pm.AddChecker(health.NewStoreChecker(st))
//	pm.AddChecker(health.NewProviderChecker(clients...))
//	result := pm.CheckReadiness(ctx)
package health

import (
	"context"
	"time"
)

// Checker verifies one dependency of the service.
type Checker interface {
	// Name is a lowercase, hyphenated identifier such as "plan-store".
	Name() string

	// Check must respect the context deadline.
	Check(ctx context.Context) *Result
}

// Status represents the health check status.
type Status string

const (
	// StatusHealthy means the component is fully operational.
	StatusHealthy Status = "healthy"

	// StatusDegraded means plans can still be generated, with reduced
	// functionality.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means the component is not working.
	StatusUnhealthy Status = "unhealthy"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Result is the outcome of one check.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency_ns"`
}

// NewResult creates a result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithDetail adds a detail and returns the result for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// WithLatency sets the latency and returns the result for chaining.
func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}

// Healthy creates a healthy result with the given message.
func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

// Degraded creates a degraded result with the given message.
func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

// Unhealthy creates an unhealthy result with the given message.
func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}

// CheckFunc adapts a function to the Checker interface
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) *Result
}

// Name implements Checker
func (c CheckFunc) Name() string { return c.CheckName }

// Check implements Checker
func (c CheckFunc) Check(ctx context.Context) *Result { return c.Fn(ctx) }
