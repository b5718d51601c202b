package heuristic

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/capability"
)

// Dependencies links each task to the first task of the closest earlier
// stage in the same feature. A feature whose text names an earlier feature
// also waits for that feature's last build task. Edges listed as conflicts
// are never proposed again.
func (e *Engine) Dependencies(ctx context.Context, req capability.DependencyRequest) (*capability.DependencyResponse, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}

	byFeature := make(map[string][]capability.TaskRef)
	for _, t := range req.Tasks {
		byFeature[t.FeatureID] = append(byFeature[t.FeatureID], t)
	}

	blocked := make(map[capability.EdgeRef]bool, len(req.Conflicts))
	for _, c := range req.Conflicts {
		blocked[c] = true
	}
	seen := make(map[capability.EdgeRef]bool)
	out := &capability.DependencyResponse{}
	add := func(from, to string) {
		edge := capability.EdgeRef{From: from, To: to}
		if from == to || seen[edge] || blocked[edge] {
			return
		}
		seen[edge] = true
		out.Edges = append(out.Edges, edge)
	}

	for _, f := range req.Features {
		tasks := byFeature[f.ID]
		for _, t := range tasks {
			s := stageOf(t.Title)
			if provider, ok := closestEarlier(tasks, s); ok {
				add(provider.ID, t.ID)
			}
		}
	}

	for j, later := range req.Features {
		text := strings.ToLower(featureText(later))
		for _, earlier := range req.Features[:j] {
			name := strings.ToLower(strings.TrimSpace(earlier.Name))
			if len(name) < 4 || !strings.Contains(text, name) {
				continue
			}
			from, ok := lastBuildTask(byFeature[earlier.ID])
			if !ok {
				continue
			}
			if to, ok := firstTaskFrom(byFeature[later.ID], from.PhaseOrdinal); ok {
				add(from.ID, to.ID)
			}
		}
	}
	return out, nil
}

// closestEarlier returns the first task of the highest stage below s
func closestEarlier(tasks []capability.TaskRef, s stage) (capability.TaskRef, bool) {
	best := stage(-1)
	var pick capability.TaskRef
	for _, t := range tasks {
		ts := stageOf(t.Title)
		if ts < s && ts > best {
			best = ts
			pick = t
		}
	}
	return pick, best >= 0
}

// lastBuildTask returns the last task that is not testing or documentation
func lastBuildTask(tasks []capability.TaskRef) (capability.TaskRef, bool) {
	for i := len(tasks) - 1; i >= 0; i-- {
		if stageOf(tasks[i].Title) < stageTesting {
			return tasks[i], true
		}
	}
	return capability.TaskRef{}, false
}

// firstTaskFrom returns the first task whose phase is not earlier than ordinal
func firstTaskFrom(tasks []capability.TaskRef, ordinal int) (capability.TaskRef, bool) {
	for _, t := range tasks {
		if t.PhaseOrdinal >= ordinal && stageOf(t.Title) >= stageBackend {
			return t, true
		}
	}
	return capability.TaskRef{}, false
}
