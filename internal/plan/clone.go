package plan

import "github.com/felixgeelhaar/plansmith/internal/depgraph"

// Clone returns a deep copy. Snapshots handed to observers are clones, so
// nothing an observer does can reach the plan owned by the run.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.Constraints = cloneStrings(p.Constraints)
	c.Goals = cloneStrings(p.Goals)
	c.Assumptions = cloneStrings(p.Assumptions)
	c.OpenQuestions = cloneStrings(p.OpenQuestions)
	c.ExecutionOrder = cloneStrings(p.ExecutionOrder)
	if p.ExecutionWaves != nil {
		c.ExecutionWaves = make([][]string, len(p.ExecutionWaves))
		for i, w := range p.ExecutionWaves {
			c.ExecutionWaves[i] = cloneStrings(w)
		}
	}

	if p.Features != nil {
		c.Features = make([]Feature, len(p.Features))
		for i, f := range p.Features {
			f.Constraints = cloneStrings(f.Constraints)
			f.Goals = cloneStrings(f.Goals)
			c.Features[i] = f
		}
	}
	if p.Estimates != nil {
		c.Estimates = make([]ComplexityEstimate, len(p.Estimates))
		for i, e := range p.Estimates {
			e.Risks = cloneStrings(e.Risks)
			e.Drivers = cloneStrings(e.Drivers)
			if e.Mitigations != nil {
				m := make(map[string]string, len(e.Mitigations))
				for k, v := range e.Mitigations {
					m[k] = v
				}
				e.Mitigations = m
			}
			c.Estimates[i] = e
		}
	}
	if p.Phases != nil {
		c.Phases = append([]Phase(nil), p.Phases...)
	}
	if p.Tasks != nil {
		c.Tasks = append([]Task(nil), p.Tasks...)
	}
	if p.Dependencies != nil {
		c.Dependencies = append([]depgraph.Edge(nil), p.Dependencies...)
	}
	if p.Criteria != nil {
		c.Criteria = make(map[string][]AcceptanceCriterion, len(p.Criteria))
		for k, v := range p.Criteria {
			c.Criteria[k] = append([]AcceptanceCriterion(nil), v...)
		}
	}
	if p.Prompts != nil {
		c.Prompts = make(map[string]DeveloperPrompt, len(p.Prompts))
		for k, v := range p.Prompts {
			v.CriteriaRefs = cloneStrings(v.CriteriaRefs)
			v.DependencyRefs = cloneStrings(v.DependencyRefs)
			c.Prompts[k] = v
		}
	}
	if p.Diagnostics != nil {
		c.Diagnostics = make([]Diagnostic, len(p.Diagnostics))
		for i, d := range p.Diagnostics {
			d.EntityIDs = cloneStrings(d.EntityIDs)
			c.Diagnostics[i] = d
		}
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
