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

const parseInstruction = "Return every feature with a non-empty name; feature names must be unique."

// parse turns the requirement text into features and global context.
// Parsing is fatal: without features there is nothing to plan.
func (r *run) parse(ctx context.Context) error {
	if strings.TrimSpace(r.opts.Input) == "" {
		return errors.NewValidation(string(StateParsing), "", "requirement text is empty").
			WithSuggestion("Pass the requirement with --text or --input")
	}

	a := r.newAttempts(StateParsing, "requirement", parseInstruction)
	resp, err := attempt(ctx, r, a,
		func(ctx context.Context, hints capability.Hints) (*capability.ParseResponse, error) {
			return r.backend.Parse(ctx, capability.ParseRequest{Text: r.opts.Input, Hints: hints})
		},
		checkParse)
	if err != nil {
		return fatal(StateParsing, err)
	}
	if len(resp.Features) == 0 {
		return errors.NewNoRequirements()
	}

	p := r.plan
	for i, f := range resp.Features {
		p.Features = append(p.Features, plan.Feature{
			ID:          domain.FeatureID(i + 1),
			Name:        strings.TrimSpace(f.Name),
			Description: strings.TrimSpace(f.Description),
			Constraints: cleanList(f.Constraints),
			Goals:       cleanList(f.Goals),
		})
	}
	p.Constraints = cleanList(resp.Constraints)
	p.Goals = cleanList(resp.Goals)
	p.Assumptions = cleanList(resp.Assumptions)
	p.OpenQuestions = cleanList(resp.OpenQuestions)
	return nil
}

// checkParse rejects blank and duplicate feature names. An empty feature
// list is valid here; the caller turns it into a no-requirements failure.
func checkParse(resp *capability.ParseResponse) (*capability.ParseResponse, error) {
	stage := string(StateParsing)
	if resp == nil {
		return nil, errors.NewValidation(stage, "", "empty response")
	}
	seen := make(map[string]int, len(resp.Features))
	for i, f := range resp.Features {
		name := fold(f.Name)
		if name == "" {
			return nil, errors.NewValidation(stage, "", fmt.Sprintf("feature %d has no name", i+1))
		}
		if prev, ok := seen[name]; ok {
			return nil, errors.NewValidation(stage, "",
				fmt.Sprintf("features %d and %d share the name %q", prev+1, i+1, strings.TrimSpace(f.Name)))
		}
		seen[name] = i
	}
	return resp, nil
}
