package plan

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/plansmith/internal/depgraph"
	"github.com/felixgeelhaar/plansmith/internal/domain"
	"github.com/felixgeelhaar/plansmith/internal/errors"
)

// Level selects how much of the plan Validate checks
type Level int

const (
	// LevelStructure checks identifiers, references and acyclicity. It holds
	// at every stage boundary.
	LevelStructure Level = iota
	// LevelExport additionally requires every task to carry criteria and a
	// prompt within the prompt limit, and every feature an estimate.
	LevelExport
)

// Violation is one broken invariant
type Violation struct {
	Code    errors.ErrorCode
	Message string
}

// Violations lists every invariant the plan breaks at the given level.
func (p *Plan) Violations(level Level) []Violation {
	var out []Violation
	add := func(code errors.ErrorCode, format string, args ...any) {
		out = append(out, Violation{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	features := make(map[string]bool, len(p.Features))
	for i, f := range p.Features {
		if err := domain.ValidateID(domain.KindFeature, f.ID); err != nil {
			add(errors.ErrCodePlanInvalid, "feature at index %d: %v", i, err)
		}
		if features[f.ID] {
			add(errors.ErrCodePlanInvalid, "duplicate feature ID %q", f.ID)
		}
		features[f.ID] = true
		if strings.TrimSpace(f.Name) == "" {
			add(errors.ErrCodePlanInvalid, "feature %s has an empty name", f.ID)
		}
	}

	estimated := make(map[string]bool, len(p.Estimates))
	for _, e := range p.Estimates {
		if !features[e.FeatureID] {
			add(errors.ErrCodePlanDanglingRef, "estimate references unknown feature %q", e.FeatureID)
		}
		if err := e.Label.Validate(); err != nil {
			add(errors.ErrCodePlanInvalid, "estimate for %s: %v", e.FeatureID, err)
		}
		if e.EffortDays <= 0 {
			add(errors.ErrCodePlanInvalid, "estimate for %s: effort must be positive, got %g", e.FeatureID, e.EffortDays)
		}
		if !domain.EffortRangeContains(e.MinDays, e.MaxDays, e.EffortDays) {
			add(errors.ErrCodePlanInvalid, "estimate for %s: range %g-%g days does not contain %g",
				e.FeatureID, e.MinDays, e.MaxDays, e.EffortDays)
		}
		if c, err := domain.ParseConfidence(string(e.Confidence)); err != nil || c != e.Confidence {
			add(errors.ErrCodePlanInvalid, "estimate for %s has unknown confidence %q", e.FeatureID, e.Confidence)
		}
		estimated[e.FeatureID] = true
	}

	phases := make(map[string]bool, len(p.Phases))
	for i, ph := range p.Phases {
		if err := domain.ValidateID(domain.KindPhase, ph.ID); err != nil {
			add(errors.ErrCodePlanInvalid, "phase at index %d: %v", i, err)
		}
		if phases[ph.ID] {
			add(errors.ErrCodePlanInvalid, "duplicate phase ID %q", ph.ID)
		}
		phases[ph.ID] = true
		if ph.Ordinal != i+1 {
			add(errors.ErrCodePlanInvalid, "phase %s has ordinal %d at position %d", ph.ID, ph.Ordinal, i+1)
		}
	}

	tasks := make(map[string]bool, len(p.Tasks))
	titles := make(map[string]string, len(p.Tasks))
	for i, t := range p.Tasks {
		if err := domain.ValidateID(domain.KindTask, t.ID); err != nil {
			add(errors.ErrCodePlanInvalid, "task at index %d: %v", i, err)
		}
		if tasks[t.ID] {
			add(errors.ErrCodePlanInvalid, "duplicate task ID %q", t.ID)
		}
		tasks[t.ID] = true
		if !features[t.FeatureID] {
			add(errors.ErrCodePlanDanglingRef, "task %s references unknown feature %q", t.ID, t.FeatureID)
		}
		if !phases[t.PhaseID] {
			add(errors.ErrCodePlanDanglingRef, "task %s references unknown phase %q", t.ID, t.PhaseID)
		}
		key := t.PhaseID + "\x00" + strings.ToLower(strings.TrimSpace(t.Title))
		if other, dup := titles[key]; dup {
			add(errors.ErrCodePlanInvalid, "tasks %s and %s share the title %q in phase %s", other, t.ID, t.Title, t.PhaseID)
		}
		titles[key] = t.ID
	}

	for _, e := range p.Dependencies {
		if !tasks[e.From] || !tasks[e.To] {
			add(errors.ErrCodePlanDanglingRef, "dependency %s references an unknown task", e)
		}
		if e.From == e.To {
			add(errors.ErrCodePlanCyclicDep, "dependency %s is a self-loop", e)
		}
	}
	if _, err := depgraph.TopoSort(p.TaskIDs(), p.Dependencies); err != nil {
		add(errors.ErrCodePlanCyclicDep, "%v", err)
	}

	for taskID, list := range p.Criteria {
		if !tasks[taskID] {
			add(errors.ErrCodePlanDanglingRef, "criteria attached to unknown task %q", taskID)
		}
		for _, c := range list {
			if err := domain.ValidateCriterionID(taskID, c.ID); err != nil {
				add(errors.ErrCodePlanInvalid, "%v", err)
			}
			if c.TaskID != taskID {
				add(errors.ErrCodePlanInvalid, "criterion %s filed under %s but names task %s", c.ID, taskID, c.TaskID)
			}
			if k, err := domain.ParseCriterionKind(string(c.Kind)); err != nil || k != c.Kind {
				add(errors.ErrCodePlanInvalid, "criterion %s has unknown kind %q", c.ID, c.Kind)
			}
		}
	}
	for taskID, pr := range p.Prompts {
		if !tasks[taskID] {
			add(errors.ErrCodePlanDanglingRef, "prompt attached to unknown task %q", taskID)
		}
		if pr.TaskID != taskID {
			add(errors.ErrCodePlanInvalid, "prompt filed under %s but names task %s", taskID, pr.TaskID)
		}
	}

	if level < LevelExport {
		return out
	}

	for _, f := range p.Features {
		if !estimated[f.ID] {
			add(errors.ErrCodePlanIncomplete, "feature %s has no complexity estimate", f.ID)
		}
	}
	for _, t := range p.Tasks {
		if len(p.Criteria[t.ID]) == 0 {
			add(errors.ErrCodePlanIncomplete, "task %s has no acceptance criteria", t.ID)
		}
		pr, ok := p.Prompts[t.ID]
		if !ok {
			add(errors.ErrCodePlanIncomplete, "task %s has no developer prompt", t.ID)
			continue
		}
		if n := utf8.RuneCountInString(pr.Text); p.PromptLimit > 0 && n > p.PromptLimit {
			add(errors.ErrCodePlanInvalid, "prompt for %s has %d characters, limit is %d", t.ID, n, p.PromptLimit)
		}
	}
	return out
}

// Validate checks the plan invariants at the given level. The returned
// error carries the code of the first violation and lists all of them.
func (p *Plan) Validate(level Level) error {
	vs := p.Violations(level)
	if len(vs) == 0 {
		return nil
	}
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Message
	}
	return errors.NewPlanInvalidError(vs[0].Code, strings.Join(msgs, "; "))
}
