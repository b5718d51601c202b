package pipeline

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/depgraph"
	"github.com/felixgeelhaar/plansmith/internal/domain"
	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

const dependencyInstruction = "Use only the listed task IDs, no self-loops, and no cycles; " +
	"remove at least one edge from every conflict listed."

// candidates is the filtered outcome of one dependency response
type candidates struct {
	edges    []depgraph.Edge
	rejected []depgraph.Rejection
}

// detectDependencies builds the task graph. Candidate edges are filtered,
// cycles are sent back as conflicts, and if cycles survive the retry
// budget every edge inside a cyclic set is dropped. The result is always
// acyclic. A failed call leaves the plan without edges.
func (r *run) detectDependencies(ctx context.Context) error {
	p := r.plan
	stage := string(StateDependencyDetect)
	nodes := p.TaskIDs()
	req := capability.DependencyRequest{
		Features: featureRefs(p.Features),
		Tasks:    taskRefs(p),
	}

	var last *candidates
	a := r.newAttempts(StateDependencyDetect, "plan", dependencyInstruction)
	accepted, err := attempt(ctx, r, a,
		func(ctx context.Context, hints capability.Hints) (*capability.DependencyResponse, error) {
			req := req
			req.Hints = hints
			return r.backend.Dependencies(ctx, req)
		},
		func(resp *capability.DependencyResponse) (*candidates, error) {
			if resp == nil {
				return nil, errors.NewValidation(stage, "plan", "empty response")
			}
			kept, rejected := depgraph.Filter(nodes, toEdges(resp.Edges))
			last = &candidates{edges: kept, rejected: rejected}

			sets := depgraph.CyclicSets(nodes, kept)
			if len(sets) == 0 {
				return last, nil
			}
			inside, _ := depgraph.EdgesWithin(kept, sets)
			req.Conflicts = toEdgeRefs(inside)
			return nil, errors.NewValidation(stage, "plan",
				fmt.Sprintf("%d edges formed %d cycle(s)", len(inside), len(sets)))
		})

	switch {
	case err == nil:
	case isCancelled(err):
		return err
	case last != nil:
		accepted = r.breakCycles(nodes, last)
	default:
		p.Dependencies = []depgraph.Edge{}
		p.AddDiagnostic(r.degrade(StateDependencyDetect, nil, err, "dependency detection unavailable, plan has no edges"))
		return nil
	}

	for _, rej := range accepted.rejected {
		p.AddDiagnostic(plan.Diagnostic{
			Severity:  domain.SeverityWarning,
			Kind:      string(errors.KindValidation),
			Stage:     stage,
			EntityIDs: []string{rej.Edge.From, rej.Edge.To},
			Message:   fmt.Sprintf("dropped candidate edge %s: %s", rej.Edge, rej.Reason),
		})
	}

	p.Dependencies = append([]depgraph.Edge{}, accepted.edges...)
	for _, e := range p.Dependencies {
		if p.PhaseOrdinal(e.To) < p.PhaseOrdinal(e.From) {
			p.AddDiagnostic(plan.Diagnostic{
				Severity:  domain.SeverityWarning,
				Kind:      string(errors.KindValidation),
				Stage:     stage,
				EntityIDs: []string{e.From, e.To},
				Message:   fmt.Sprintf("edge %s points to an earlier phase", e),
			})
		}
	}
	p.Finalize()
	return nil
}

// breakCycles drops every edge inside a cyclic set and records one
// GraphCycleError diagnostic per set
func (r *run) breakCycles(nodes []string, c *candidates) *candidates {
	kept, dropped, sets := depgraph.BreakCycles(nodes, c.edges)
	for _, set := range sets {
		inside, _ := depgraph.EdgesWithin(c.edges, [][]string{set})
		cycleErr := errors.NewGraphCycle(set).At(string(StateDependencyDetect), "plan")
		r.plan.AddDiagnostic(plan.Diagnostic{
			Severity:  domain.SeverityError,
			Kind:      string(errors.KindGraphCycle),
			Stage:     string(StateDependencyDetect),
			EntityIDs: set,
			Message:   fmt.Sprintf("%s; dropped %d edges", cycleErr.Message, len(inside)),
		})
	}
	r.logger.Warn("dependency cycles broken",
		"stage", string(StateDependencyDetect),
		"sets", len(sets),
		"dropped", len(dropped))
	return &candidates{edges: kept, rejected: c.rejected}
}
