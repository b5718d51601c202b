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

const taskInstruction = "Every task needs a title and a phase; titles must be unique within a phase " +
	"and must not reuse any title listed as taken."

type taskSlot struct {
	tasks    []capability.GeneratedTask
	attempts *attempts
	req      capability.TaskRequest
}

// titleIndex records the task titles taken per phase, keyed by folded
// phase name then folded title.
type titleIndex struct {
	phases map[string]string
	titles map[string]map[string]string
}

func newTitleIndex() *titleIndex {
	return &titleIndex{phases: map[string]string{}, titles: map[string]map[string]string{}}
}

func (x *titleIndex) add(t capability.GeneratedTask) {
	pk := fold(t.Phase)
	if _, ok := x.phases[pk]; !ok {
		x.phases[pk] = t.Phase
		x.titles[pk] = map[string]string{}
	}
	x.titles[pk][fold(t.Title)] = t.Title
}

// collisions returns the tasks whose title is already taken in their phase
func (x *titleIndex) collisions(tasks []capability.GeneratedTask) []string {
	var out []string
	for _, t := range tasks {
		if _, ok := x.titles[fold(t.Phase)][fold(t.Title)]; ok {
			out = append(out, fmt.Sprintf("%q in phase %q", t.Title, t.Phase))
		}
	}
	return out
}

// taken renders the index for a disambiguation request
func (x *titleIndex) taken() map[string][]string {
	out := make(map[string][]string, len(x.phases))
	for pk, name := range x.phases {
		titles := make([]string, 0, len(x.titles[pk]))
		for _, t := range x.titles[pk] {
			titles = append(titles, t)
		}
		sort.Strings(titles)
		out[name] = titles
	}
	return out
}

// generateTasks decomposes every feature into tasks. After the parallel
// pass the outputs are joined in feature order; a feature that reuses a
// title an earlier feature already placed in the same phase is asked
// again with the taken titles. TaskGen is fatal.
func (r *run) generateTasks(ctx context.Context) error {
	p := r.plan
	features := p.Features
	slots := make([]taskSlot, len(features))

	err := fanOut(ctx, r.opts.Concurrency, len(features), func(ctx context.Context, i int) error {
		f := features[i]
		req := capability.TaskRequest{
			Feature:  featureRef(f),
			MinTasks: r.opts.MinTasksPerFeature,
			MaxTasks: r.opts.MaxTasksPerFeature,
		}
		if est, ok := p.Estimate(f.ID); ok {
			req.Label = string(est.Label)
			req.EffortDays = est.EffortDays
		}
		a := r.newAttempts(StateTaskGen, f.ID, taskInstruction)

		tasks, err := attempt(ctx, r, a,
			func(ctx context.Context, hints capability.Hints) (*capability.TaskResponse, error) {
				req := req
				req.Hints = hints
				return r.backend.Tasks(ctx, req)
			},
			func(resp *capability.TaskResponse) ([]capability.GeneratedTask, error) {
				return r.checkTasks(f.ID, resp)
			})
		if err != nil {
			return fatal(StateTaskGen, err)
		}
		slots[i] = taskSlot{tasks: tasks, attempts: a, req: req}
		return nil
	})
	if err != nil {
		return err
	}

	index := newTitleIndex()
	phases := map[string]int{}
	for i, f := range features {
		tasks := slots[i].tasks
		if clash := index.collisions(tasks); len(clash) > 0 {
			tasks, err = r.disambiguate(ctx, f.ID, &slots[i], index, clash)
			if err != nil {
				return err
			}
		}

		for _, t := range tasks {
			index.add(t)
			pk := fold(t.Phase)
			pi, ok := phases[pk]
			if !ok {
				pi = len(p.Phases)
				phases[pk] = pi
				p.Phases = append(p.Phases, plan.Phase{
					ID:      domain.PhaseID(pi + 1),
					Name:    t.Phase,
					Ordinal: pi + 1,
				})
			}
			if p.Phases[pi].Goal == "" && t.PhaseGoal != "" {
				p.Phases[pi].Goal = t.PhaseGoal
			}
			p.Tasks = append(p.Tasks, plan.Task{
				ID:          domain.TaskID(len(p.Tasks) + 1),
				FeatureID:   f.ID,
				PhaseID:     p.Phases[pi].ID,
				Title:       t.Title,
				Description: t.Description,
			})
		}
	}
	return nil
}

// disambiguate re-invokes one feature with the titles earlier features
// took, spending the rest of that feature's retry budget.
func (r *run) disambiguate(ctx context.Context, featureID string, slot *taskSlot, index *titleIndex, clash []string) ([]capability.GeneratedTask, error) {
	a := slot.attempts
	r.reject(a, errors.NewValidation(string(StateTaskGen), featureID,
		"titles already used by earlier features: "+strings.Join(clash, ", ")))

	req := slot.req
	req.TakenTitles = index.taken()
	tasks, err := attempt(ctx, r, a,
		func(ctx context.Context, hints capability.Hints) (*capability.TaskResponse, error) {
			req := req
			req.Hints = hints
			return r.backend.Tasks(ctx, req)
		},
		func(resp *capability.TaskResponse) ([]capability.GeneratedTask, error) {
			tasks, err := r.checkTasks(featureID, resp)
			if err != nil {
				return nil, err
			}
			if clash := index.collisions(tasks); len(clash) > 0 {
				return nil, errors.NewValidation(string(StateTaskGen), featureID,
					"titles already used by earlier features: "+strings.Join(clash, ", "))
			}
			return tasks, nil
		})
	if err != nil {
		return nil, fatal(StateTaskGen, err)
	}
	return tasks, nil
}

// checkTasks validates one feature's output and returns it trimmed
func (r *run) checkTasks(featureID string, resp *capability.TaskResponse) ([]capability.GeneratedTask, error) {
	stage := string(StateTaskGen)
	if resp == nil {
		return nil, errors.NewValidation(stage, featureID, "empty response")
	}
	n := len(resp.Tasks)
	if n < r.opts.MinTasksPerFeature || n > r.opts.MaxTasksPerFeature {
		return nil, errors.NewValidation(stage, featureID,
			fmt.Sprintf("got %d tasks, want between %d and %d", n, r.opts.MinTasksPerFeature, r.opts.MaxTasksPerFeature))
	}

	out := make([]capability.GeneratedTask, n)
	seen := make(map[string]bool, n)
	for i, t := range resp.Tasks {
		t.Title = strings.TrimSpace(t.Title)
		t.Phase = strings.TrimSpace(t.Phase)
		t.Description = strings.TrimSpace(t.Description)
		t.PhaseGoal = strings.TrimSpace(t.PhaseGoal)
		if t.Title == "" {
			return nil, errors.NewValidation(stage, featureID, fmt.Sprintf("task %d has no title", i+1))
		}
		if t.Phase == "" {
			return nil, errors.NewValidation(stage, featureID, fmt.Sprintf("task %q has no phase", t.Title))
		}
		key := fold(t.Phase) + "\x00" + fold(t.Title)
		if seen[key] {
			return nil, errors.NewValidation(stage, featureID,
				fmt.Sprintf("title %q appears twice in phase %q", t.Title, t.Phase))
		}
		seen[key] = true
		out[i] = t
	}
	return out, nil
}
