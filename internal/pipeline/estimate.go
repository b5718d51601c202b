package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/domain"
	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

const estimateInstruction = "Use exactly one label of Low, Medium or High, a positive effort_days, " +
	"min_days <= effort_days <= max_days when a range is given, and at least one risk for Medium or High."

// fallbackEffortDays is the effort of a degraded estimate
const fallbackEffortDays = 5

type estimateSlot struct {
	estimate plan.ComplexityEstimate
	diag     *plan.Diagnostic
}

// estimate sizes every feature. A feature whose retries run out receives a
// High fallback estimate and the run degrades.
func (r *run) estimate(ctx context.Context) error {
	features := r.plan.Features
	refs := featureRefs(features)
	slots := make([]estimateSlot, len(features))

	err := fanOut(ctx, r.opts.Concurrency, len(features), func(ctx context.Context, i int) error {
		f := features[i]
		a := r.newAttempts(StateEstimating, f.ID, estimateInstruction)
		req := capability.EstimateRequest{Feature: refs[i], Others: without(refs, i)}

		est, err := attempt(ctx, r, a,
			func(ctx context.Context, hints capability.Hints) (*capability.EstimateResponse, error) {
				req.Hints = hints
				return r.backend.Estimate(ctx, req)
			},
			func(resp *capability.EstimateResponse) (plan.ComplexityEstimate, error) {
				return checkEstimate(f.ID, resp)
			})
		if err != nil {
			if isCancelled(err) {
				return err
			}
			d := r.degrade(StateEstimating, []string{f.ID}, err, "estimate replaced by fallback")
			slots[i] = estimateSlot{estimate: fallbackEstimate(f.ID, err), diag: &d}
			return nil
		}
		slots[i] = estimateSlot{estimate: est}
		return nil
	})
	if err != nil {
		return err
	}

	for _, s := range slots {
		r.plan.Estimates = append(r.plan.Estimates, s.estimate)
		if s.diag != nil {
			r.plan.AddDiagnostic(*s.diag)
		}
	}
	return nil
}

func checkEstimate(featureID string, resp *capability.EstimateResponse) (plan.ComplexityEstimate, error) {
	stage := string(StateEstimating)
	if resp == nil {
		return plan.ComplexityEstimate{}, errors.NewValidation(stage, featureID, "empty response")
	}
	label, err := domain.ParseComplexityLabel(resp.Label)
	if err != nil {
		return plan.ComplexityEstimate{}, errors.NewValidation(stage, featureID, err.Error())
	}
	if resp.EffortDays <= 0 {
		return plan.ComplexityEstimate{}, errors.NewValidation(stage, featureID,
			fmt.Sprintf("effort_days must be positive, got %g", resp.EffortDays))
	}
	if !domain.EffortRangeContains(resp.MinDays, resp.MaxDays, resp.EffortDays) {
		return plan.ComplexityEstimate{}, errors.NewValidation(stage, featureID,
			fmt.Sprintf("min_days %g and max_days %g must bracket effort_days %g", resp.MinDays, resp.MaxDays, resp.EffortDays))
	}
	confidence, err := domain.ParseConfidence(resp.Confidence)
	if err != nil {
		return plan.ComplexityEstimate{}, errors.NewValidation(stage, featureID, err.Error())
	}
	risks := cleanList(resp.Risks)
	if label.RequiresRisks() && len(risks) == 0 {
		return plan.ComplexityEstimate{}, errors.NewValidation(stage, featureID,
			fmt.Sprintf("a %s estimate must list at least one risk", label))
	}
	return plan.ComplexityEstimate{
		FeatureID:   featureID,
		Label:       label,
		EffortDays:  resp.EffortDays,
		MinDays:     resp.MinDays,
		MaxDays:     resp.MaxDays,
		Confidence:  confidence,
		Drivers:     cleanList(resp.Drivers),
		Risks:       risks,
		Mitigations: mitigationsFor(risks, resp.Mitigations),
	}, nil
}

// mitigationsFor keeps the non-empty mitigations of listed risks
func mitigationsFor(risks []string, in map[string]string) map[string]string {
	var out map[string]string
	for _, r := range risks {
		m := strings.TrimSpace(in[r])
		if m == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[r] = m
	}
	return out
}

func fallbackEstimate(featureID string, cause error) plan.ComplexityEstimate {
	return plan.ComplexityEstimate{
		FeatureID:  featureID,
		Label:      domain.ComplexityHigh,
		EffortDays: fallbackEffortDays,
		Confidence: domain.ConfidenceLow,
		Risks:      []string{"estimate unavailable: " + describe(cause)},
		Degraded:   true,
	}
}

// degrade logs and counts a fallback and returns its diagnostic
func (r *run) degrade(stage State, entityIDs []string, cause error, message string) plan.Diagnostic {
	kind := errors.KindOf(cause)
	if kind == errors.KindUnknown {
		kind = errors.KindValidation
	}
	r.metrics.RecordDegraded(string(stage))
	r.logger.Warn("entity degraded",
		"stage", string(stage),
		"entities", entityIDs,
		"error", describe(cause))
	return plan.Diagnostic{
		Severity:  domain.SeverityDegraded,
		Kind:      string(kind),
		Stage:     string(stage),
		EntityIDs: entityIDs,
		Message:   message + ": " + describe(cause),
	}
}
