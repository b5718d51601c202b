package plan

import (
	"github.com/felixgeelhaar/plansmith/internal/depgraph"
	"github.com/felixgeelhaar/plansmith/internal/domain"
)

// Feature returns the feature with the given ID
func (p *Plan) Feature(id string) (Feature, bool) {
	for _, f := range p.Features {
		if f.ID == id {
			return f, true
		}
	}
	return Feature{}, false
}

// Estimate returns the complexity estimate of a feature
func (p *Plan) Estimate(featureID string) (ComplexityEstimate, bool) {
	for _, e := range p.Estimates {
		if e.FeatureID == featureID {
			return e, true
		}
	}
	return ComplexityEstimate{}, false
}

// Task returns the task with the given ID
func (p *Plan) Task(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Phase returns the phase with the given ID
func (p *Plan) Phase(id string) (Phase, bool) {
	for _, ph := range p.Phases {
		if ph.ID == id {
			return ph, true
		}
	}
	return Phase{}, false
}

// TaskIDs lists task IDs in plan order
func (p *Plan) TaskIDs() []string {
	ids := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// Upstream returns the edges that point into a task
func (p *Plan) Upstream(taskID string) []depgraph.Edge {
	var out []depgraph.Edge
	for _, e := range p.Dependencies {
		if e.To == taskID {
			out = append(out, e)
		}
	}
	return out
}

// PhaseOrdinal returns the ordinal of the phase a task belongs to, or 0
func (p *Plan) PhaseOrdinal(taskID string) int {
	t, ok := p.Task(taskID)
	if !ok {
		return 0
	}
	ph, ok := p.Phase(t.PhaseID)
	if !ok {
		return 0
	}
	return ph.Ordinal
}

// AddDiagnostic appends a diagnostic to the plan
func (p *Plan) AddDiagnostic(d Diagnostic) {
	p.Diagnostics = append(p.Diagnostics, d)
}

// Degraded reports whether any diagnostic marks a degraded entity
func (p *Plan) Degraded() bool {
	for _, d := range p.Diagnostics {
		if d.Severity.Degrades() {
			return true
		}
	}
	return false
}

// PeakComplexity returns the highest label among the estimates, or "" when
// nothing is estimated.
func (p *Plan) PeakComplexity() domain.ComplexityLabel {
	var peak domain.ComplexityLabel
	for _, e := range p.Estimates {
		if e.Label.IsHigherThan(peak) {
			peak = e.Label
		}
	}
	return peak
}

// Finalize recomputes the derived fields: total effort, the topological
// execution order and the execution waves. It is called once the dependency
// graph is settled.
func (p *Plan) Finalize() {
	total := 0.0
	for _, e := range p.Estimates {
		total += e.EffortDays
	}
	p.TotalEffortDays = total

	ids := p.TaskIDs()
	order, err := depgraph.TopoSort(ids, p.Dependencies)
	if err != nil {
		p.ExecutionOrder = nil
		p.ExecutionWaves = nil
		return
	}
	p.ExecutionOrder = order
	p.ExecutionWaves, _ = depgraph.Layers(ids, p.Dependencies)
}

// Counts summarises the size of the plan, for progress output and logs
type Counts struct {
	Features     int `json:"features"`
	Phases       int `json:"phases"`
	Tasks        int `json:"tasks"`
	Dependencies int `json:"dependencies"`
	Criteria     int `json:"criteria"`
	Prompts      int `json:"prompts"`
	Diagnostics  int `json:"diagnostics"`
}

// Counts returns the entity counts of the plan
func (p *Plan) Counts() Counts {
	c := Counts{
		Features:     len(p.Features),
		Phases:       len(p.Phases),
		Tasks:        len(p.Tasks),
		Dependencies: len(p.Dependencies),
		Prompts:      len(p.Prompts),
		Diagnostics:  len(p.Diagnostics),
	}
	for _, list := range p.Criteria {
		c.Criteria += len(list)
	}
	return c
}

// LabelCounts tallies estimates per complexity label
func (p *Plan) LabelCounts() map[domain.ComplexityLabel]int {
	out := make(map[domain.ComplexityLabel]int, 3)
	for _, e := range p.Estimates {
		out[e.Label]++
	}
	return out
}
