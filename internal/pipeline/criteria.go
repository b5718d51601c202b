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

const criteriaInstruction = "Return Given/When/Then scenarios where every part is a non-empty sentence."

type criteriaSlot struct {
	criteria []plan.AcceptanceCriterion
	diag     *plan.Diagnostic
}

// generateCriteria writes acceptance criteria for every task. A task whose
// retries run out gets a single criterion derived from its title.
func (r *run) generateCriteria(ctx context.Context) error {
	p := r.plan
	slots := make([]criteriaSlot, len(p.Tasks))

	err := fanOut(ctx, r.opts.Concurrency, len(p.Tasks), func(ctx context.Context, i int) error {
		t := p.Tasks[i]
		req := capability.CriteriaRequest{
			Task:        taskRef(p, t),
			MaxCriteria: r.opts.MaxCriteriaPerTask,
		}
		if f, ok := p.Feature(t.FeatureID); ok {
			req.Feature = featureRef(f)
		}
		a := r.newAttempts(StateCriteriaGen, t.ID, criteriaInstruction)

		list, err := attempt(ctx, r, a,
			func(ctx context.Context, hints capability.Hints) (*capability.CriteriaResponse, error) {
				req := req
				req.Hints = hints
				return r.backend.Criteria(ctx, req)
			},
			func(resp *capability.CriteriaResponse) ([]plan.AcceptanceCriterion, error) {
				return r.checkCriteria(t.ID, resp)
			})
		if err != nil {
			if isCancelled(err) {
				return err
			}
			d := r.degrade(StateCriteriaGen, []string{t.ID}, err, "criteria replaced by fallback")
			slots[i] = criteriaSlot{criteria: fallbackCriteria(t), diag: &d}
			return nil
		}
		slots[i] = criteriaSlot{criteria: list}
		return nil
	})
	if err != nil {
		return err
	}

	for i, s := range slots {
		p.Criteria[p.Tasks[i].ID] = s.criteria
		if s.diag != nil {
			p.AddDiagnostic(*s.diag)
		}
	}
	return nil
}

func (r *run) checkCriteria(taskID string, resp *capability.CriteriaResponse) ([]plan.AcceptanceCriterion, error) {
	stage := string(StateCriteriaGen)
	if resp == nil {
		return nil, errors.NewValidation(stage, taskID, "empty response")
	}
	n := len(resp.Criteria)
	if n < 1 || n > r.opts.MaxCriteriaPerTask {
		return nil, errors.NewValidation(stage, taskID,
			fmt.Sprintf("got %d criteria, want between 1 and %d", n, r.opts.MaxCriteriaPerTask))
	}

	out := make([]plan.AcceptanceCriterion, n)
	for i, s := range resp.Criteria {
		kind, err := domain.ParseCriterionKind(s.Kind)
		if err != nil {
			return nil, errors.NewValidation(stage, taskID, fmt.Sprintf("criterion %d: %v", i+1, err))
		}
		c := plan.AcceptanceCriterion{
			ID:     domain.CriterionID(taskID, i+1),
			TaskID: taskID,
			Kind:   kind,
			Given:  strings.TrimSpace(s.Given),
			When:   strings.TrimSpace(s.When),
			Then:   strings.TrimSpace(s.Then),
		}
		if c.Given == "" || c.When == "" || c.Then == "" {
			return nil, errors.NewValidation(stage, taskID, fmt.Sprintf("criterion %d has an empty given, when or then", i+1))
		}
		out[i] = c
	}
	return out, nil
}

func fallbackCriteria(t plan.Task) []plan.AcceptanceCriterion {
	return []plan.AcceptanceCriterion{{
		ID:     domain.CriterionID(t.ID, 1),
		TaskID: t.ID,
		Kind:   domain.CriterionHappyPath,
		Given:  fmt.Sprintf("the prerequisites of %q are in place", t.Title),
		When:   fmt.Sprintf("%q is implemented", t.Title),
		Then:   "the result can be demonstrated and verified",
	}}
}
