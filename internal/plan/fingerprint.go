package plan

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// structure is the content-free shape of a plan: identifiers, references,
// edges and cardinalities. Two runs over the same input with the same
// capability responses must produce the same structure.
type structure struct {
	Features []string            `json:"features"`
	Phases   []string            `json:"phases"`
	Tasks    [][3]string         `json:"tasks"`
	Edges    [][2]string         `json:"edges"`
	Labels   map[string]string   `json:"labels"`
	Criteria map[string]int      `json:"criteria"`
	Prompts  map[string][]string `json:"prompts"`
	Status   Status              `json:"status"`
}

// Canonicalize returns the canonical JSON encoding of the plan structure.
// encoding/json sorts map keys, and edges are sorted explicitly.
func (p *Plan) Canonicalize() ([]byte, error) {
	s := structure{
		Labels:   make(map[string]string, len(p.Estimates)),
		Criteria: make(map[string]int, len(p.Criteria)),
		Prompts:  make(map[string][]string, len(p.Prompts)),
		Status:   p.Status,
	}
	for _, f := range p.Features {
		s.Features = append(s.Features, f.ID)
	}
	for _, ph := range p.Phases {
		s.Phases = append(s.Phases, fmt.Sprintf("%s#%d", ph.ID, ph.Ordinal))
	}
	for _, t := range p.Tasks {
		s.Tasks = append(s.Tasks, [3]string{t.ID, t.FeatureID, t.PhaseID})
	}
	for _, e := range p.Dependencies {
		s.Edges = append(s.Edges, [2]string{e.From, e.To})
	}
	sort.Slice(s.Edges, func(i, j int) bool {
		if s.Edges[i][0] != s.Edges[j][0] {
			return s.Edges[i][0] < s.Edges[j][0]
		}
		return s.Edges[i][1] < s.Edges[j][1]
	})
	for _, e := range p.Estimates {
		s.Labels[e.FeatureID] = string(e.Label)
	}
	for id, list := range p.Criteria {
		s.Criteria[id] = len(list)
	}
	for id, pr := range p.Prompts {
		refs := append([]string(nil), pr.CriteriaRefs...)
		sort.Strings(refs)
		s.Prompts[id] = refs
	}
	return json.Marshal(s)
}

// Fingerprint computes the blake3 hash of the canonical plan structure
func (p *Plan) Fingerprint() (string, error) {
	canonical, err := p.Canonicalize()
	if err != nil {
		return "", fmt.Errorf("canonicalize plan: %w", err)
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash plan: %w", err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
