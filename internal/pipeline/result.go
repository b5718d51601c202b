package pipeline

import (
	"io"
	"time"

	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

// Result is the outcome of one run.
//
// Complete and PartiallyFailed results carry the plan. Failed results carry
// the failing stage and its last error; Cancelled results carry a
// cancellation error. Neither carries a plan.
type Result struct {
	RunID       string            `json:"run_id"`
	State       State             `json:"state"`
	FailedStage State             `json:"failed_stage,omitempty"`
	Err         error             `json:"-"`
	Plan        *plan.Plan        `json:"plan,omitempty"`
	Diagnostics []plan.Diagnostic `json:"diagnostics,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Duration    time.Duration     `json:"duration"`

	exportPartial bool
}

// Succeeded reports whether the run produced a plan
func (r *Result) Succeeded() bool {
	return r.State == StateComplete || r.State == StatePartiallyFailed
}

// Exportable reports whether the plan may leave the process. Complete plans
// always may; PartiallyFailed plans only when ExportPartial was set.
func (r *Result) Exportable() bool {
	switch r.State {
	case StateComplete:
		return r.Plan != nil
	case StatePartiallyFailed:
		return r.Plan != nil && r.exportPartial
	default:
		return false
	}
}

// Export encodes the plan, refusing results that are not exportable
func (r *Result) Export(w io.Writer, format plan.Format) error {
	if !r.Exportable() {
		return errors.New(errors.ErrCodeExportNotAllowed, "run ended "+string(r.State)+"; nothing to export").
			WithSuggestion("Set export_partial to export PartiallyFailed plans")
	}
	return plan.Encode(w, r.Plan, format)
}

// ErrorMessage returns the error text, or an empty string
func (r *Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
