package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/domain"
	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

const promptInstruction = "Mention every criterion ID verbatim, list exactly those IDs in criteria_refs, " +
	"and stay within the character limit."

type promptSlot struct {
	prompt plan.DeveloperPrompt
	diag   *plan.Diagnostic
}

// generatePrompts writes the developer prompt of every task. An overlong
// prompt gets one compaction retry under a stricter limit; after that, or
// when retries run out, a compact prompt is built locally.
func (r *run) generatePrompts(ctx context.Context) error {
	p := r.plan
	slots := make([]promptSlot, len(p.Tasks))

	err := fanOut(ctx, r.opts.Concurrency, len(p.Tasks), func(ctx context.Context, i int) error {
		t := p.Tasks[i]
		ids, refs := criterionRefs(p.Criteria[t.ID])
		upstream, upstreamIDs := r.upstream(t.ID)

		req := capability.PromptRequest{
			Task:     taskRef(p, t),
			Criteria: refs,
			Upstream: upstream,
			MaxChars: r.opts.MaxPromptChars,
		}
		if f, ok := p.Feature(t.FeatureID); ok {
			req.Feature = featureRef(f)
		}
		compacted := false
		a := r.newAttempts(StatePromptGen, t.ID, promptInstruction)

		prompt, err := attempt(ctx, r, a,
			func(ctx context.Context, hints capability.Hints) (*capability.PromptResponse, error) {
				req := req
				req.Hints = hints
				return r.backend.Prompt(ctx, req)
			},
			func(resp *capability.PromptResponse) (plan.DeveloperPrompt, error) {
				text, err := r.checkPrompt(t.ID, resp, ids)
				if err != nil {
					return plan.DeveloperPrompt{}, err
				}
				if n := capability.PromptLen(text); n > r.opts.MaxPromptChars {
					tooLong := errors.NewValidation(string(StatePromptGen), t.ID,
						fmt.Sprintf("prompt has %d characters, limit is %d", n, r.opts.MaxPromptChars))
					if compacted {
						return plan.DeveloperPrompt{}, stop(tooLong)
					}
					compacted = true
					req.MaxChars = r.opts.compactLimit()
					return plan.DeveloperPrompt{}, tooLong
				}
				return plan.DeveloperPrompt{
					TaskID:         t.ID,
					Text:           text,
					CriteriaRefs:   ids,
					DependencyRefs: upstreamIDs,
				}, nil
			})
		if err != nil {
			if isCancelled(err) {
				return err
			}
			text := capability.CompactPrompt(t.Title, ids, upstreamIDs, r.opts.MaxPromptChars)
			msg := "prompt replaced by compact fallback"
			if dropped := capability.MissingRefs(text, ids); len(dropped) > 0 {
				msg += fmt.Sprintf(" (criteria %s did not fit)", strings.Join(dropped, ", "))
			}
			d := r.degrade(StatePromptGen, []string{t.ID}, err, msg)
			slots[i] = promptSlot{
				prompt: plan.DeveloperPrompt{
					TaskID:         t.ID,
					Text:           text,
					CriteriaRefs:   ids,
					DependencyRefs: upstreamIDs,
					Degraded:       true,
				},
				diag: &d,
			}
			return nil
		}
		slots[i] = promptSlot{prompt: prompt}
		return nil
	})
	if err != nil {
		return err
	}

	for i, s := range slots {
		p.Prompts[p.Tasks[i].ID] = s.prompt
		if s.diag != nil {
			p.AddDiagnostic(*s.diag)
		}
	}
	return nil
}

// checkPrompt validates everything but the length and returns the text
func (r *run) checkPrompt(taskID string, resp *capability.PromptResponse, ids []string) (string, error) {
	stage := string(StatePromptGen)
	if resp == nil {
		return "", errors.NewValidation(stage, taskID, "empty response")
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.NewValidation(stage, taskID, "prompt text is empty")
	}
	if missing := capability.MissingRefs(text, ids); len(missing) > 0 {
		return "", errors.NewValidation(stage, taskID,
			"prompt does not mention "+strings.Join(missing, ", "))
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = false
	}
	for _, ref := range resp.CriteriaRefs {
		ref = strings.TrimSpace(ref)
		if _, ok := want[ref]; !ok {
			return "", errors.NewValidation(stage, taskID, fmt.Sprintf("criteria_refs lists unknown criterion %q", ref))
		}
		want[ref] = true
	}
	var unlisted []string
	for _, id := range ids {
		if !want[id] {
			unlisted = append(unlisted, id)
		}
	}
	if len(unlisted) > 0 {
		return "", errors.NewValidation(stage, taskID, "criteria_refs is missing "+strings.Join(unlisted, ", "))
	}
	return text, nil
}

func criterionRefs(list []plan.AcceptanceCriterion) ([]string, []capability.CriterionRef) {
	ids := make([]string, len(list))
	refs := make([]capability.CriterionRef, len(list))
	for i, c := range list {
		ids[i] = c.ID
		refs[i] = capability.CriterionRef{
			ID:       c.ID,
			Scenario: capability.Scenario{Kind: string(c.Kind), Given: c.Given, When: c.When, Then: c.Then},
		}
	}
	return ids, refs
}

// upstream returns the tasks a task depends on, ordered by task ID ordinal
func (r *run) upstream(taskID string) ([]capability.TaskRef, []string) {
	edges := r.plan.Upstream(taskID)
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.From)
	}
	sort.Slice(ids, func(i, j int) bool { return domain.Ordinal(ids[i]) < domain.Ordinal(ids[j]) })

	refs := make([]capability.TaskRef, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.plan.Task(id); ok {
			refs = append(refs, taskRef(r.plan, t))
		}
	}
	if len(ids) == 0 {
		ids = nil
	}
	return refs, ids
}
