package domain

import "fmt"

// Severity grades a plan diagnostic.
type Severity string

const (
	// SeverityWarning is informational; the entity is intact.
	SeverityWarning Severity = "warning"
	// SeverityDegraded marks an entity that received a fallback value.
	SeverityDegraded Severity = "degraded"
	// SeverityError marks an invariant breach that was repaired.
	SeverityError Severity = "error"
)

// Validate checks if the severity is valid
func (s Severity) Validate() error {
	switch s {
	case SeverityWarning, SeverityDegraded, SeverityError:
		return nil
	default:
		return fmt.Errorf("invalid severity %q: must be warning, degraded, or error", string(s))
	}
}

// Degrades reports whether a diagnostic of this severity turns a finished
// run into a partial one.
func (s Severity) Degrades() bool {
	return s == SeverityDegraded
}
