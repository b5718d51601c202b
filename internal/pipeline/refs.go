package pipeline

import (
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/depgraph"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

func featureRef(f plan.Feature) capability.FeatureRef {
	return capability.FeatureRef{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Constraints: f.Constraints,
		Goals:       f.Goals,
	}
}

func featureRefs(features []plan.Feature) []capability.FeatureRef {
	out := make([]capability.FeatureRef, len(features))
	for i, f := range features {
		out[i] = featureRef(f)
	}
	return out
}

// without returns refs minus the element at index i
func without(refs []capability.FeatureRef, i int) []capability.FeatureRef {
	out := make([]capability.FeatureRef, 0, len(refs)-1)
	out = append(out, refs[:i]...)
	return append(out, refs[i+1:]...)
}

func taskRef(p *plan.Plan, t plan.Task) capability.TaskRef {
	ref := capability.TaskRef{
		ID:          t.ID,
		FeatureID:   t.FeatureID,
		Title:       t.Title,
		Description: t.Description,
	}
	if ph, ok := p.Phase(t.PhaseID); ok {
		ref.Phase = ph.Name
		ref.PhaseOrdinal = ph.Ordinal
	}
	return ref
}

func taskRefs(p *plan.Plan) []capability.TaskRef {
	out := make([]capability.TaskRef, len(p.Tasks))
	for i, t := range p.Tasks {
		out[i] = taskRef(p, t)
	}
	return out
}

func toEdges(refs []capability.EdgeRef) []depgraph.Edge {
	out := make([]depgraph.Edge, len(refs))
	for i, e := range refs {
		out[i] = depgraph.Edge{From: strings.TrimSpace(e.From), To: strings.TrimSpace(e.To)}
	}
	return out
}

func toEdgeRefs(edges []depgraph.Edge) []capability.EdgeRef {
	out := make([]capability.EdgeRef, len(edges))
	for i, e := range edges {
		out[i] = capability.EdgeRef{From: e.From, To: e.To}
	}
	return out
}

// cleanList trims entries and drops the blank ones
func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// fold normalises a name for case-insensitive comparison
func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
