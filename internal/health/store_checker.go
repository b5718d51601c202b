package health

import "context"

// Pinger is implemented by the plan store
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker verifies that the plan database is reachable. Runs still
// succeed without it, so a failure is reported as degraded.
type StoreChecker struct {
	store Pinger
}

// NewStoreChecker creates a checker for the plan store
func NewStoreChecker(store Pinger) *StoreChecker {
	return &StoreChecker{store: store}
}

// Name returns the name of this health check.
func (c *StoreChecker) Name() string {
	return "plan-store"
}

// Check pings the database
func (c *StoreChecker) Check(ctx context.Context) *Result {
	if c.store == nil {
		return Degraded("plan store disabled")
	}
	if err := c.store.Ping(ctx); err != nil {
		return Degraded("plan store unreachable").WithDetail("error", err.Error())
	}
	return Healthy("plan store reachable")
}
