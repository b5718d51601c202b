package heuristic

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/capability"
)

const doneWhen = "All acceptance criteria are satisfied and the tests pass."

// Prompt renders a sectioned developer prompt and shrinks it until it fits
// the requested size: first the context goes, then the constraints, then
// the criteria are cut to their outcomes.
func (e *Engine) Prompt(ctx context.Context, req capability.PromptRequest) (*capability.PromptResponse, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, len(req.Criteria))
	for i, c := range req.Criteria {
		ids[i] = c.ID
	}

	for _, level := range []detail{detailFull, detailNoContext, detailNoConstraints, detailOutcomes} {
		text := render(req, level)
		if req.MaxChars <= 0 || capability.PromptLen(text) <= req.MaxChars {
			return &capability.PromptResponse{Text: text, CriteriaRefs: ids}, nil
		}
	}

	upstream := make([]string, len(req.Upstream))
	for i, u := range req.Upstream {
		upstream[i] = u.ID
	}
	return &capability.PromptResponse{
		Text:         capability.CompactPrompt(req.Task.Title, ids, upstream, req.MaxChars),
		CriteriaRefs: ids,
	}, nil
}

type detail int

const (
	detailFull detail = iota
	detailNoContext
	detailNoConstraints
	detailOutcomes
)

func render(req capability.PromptRequest, level detail) string {
	var sections []string
	add := func(name, body string) {
		if body = strings.TrimSpace(body); body != "" {
			sections = append(sections, "### "+name+"\n"+body)
		}
	}

	goal := req.Task.Title
	if req.Task.Description != "" {
		goal += ". " + req.Task.Description
	}
	add("Goal", goal)

	if level < detailNoContext {
		ctxLines := []string{fmt.Sprintf("Feature %s: %s", req.Feature.ID, req.Feature.Name)}
		if req.Feature.Description != "" {
			ctxLines = append(ctxLines, req.Feature.Description)
		}
		if req.Task.Phase != "" {
			ctxLines = append(ctxLines, "Phase: "+req.Task.Phase)
		}
		add("Context", strings.Join(ctxLines, "\n"))
	}

	if level < detailNoConstraints {
		add("Constraints", bullets(req.Feature.Constraints))
	}

	criteria := make([]string, len(req.Criteria))
	for i, c := range req.Criteria {
		if level >= detailOutcomes {
			criteria[i] = fmt.Sprintf("%s: %s", c.ID, c.Then)
		} else {
			criteria[i] = fmt.Sprintf("%s: Given %s, when %s, then %s", c.ID, c.Given, c.When, c.Then)
		}
	}
	add("Acceptance criteria", bullets(criteria))

	upstream := make([]string, len(req.Upstream))
	for i, u := range req.Upstream {
		if level >= detailOutcomes {
			upstream[i] = u.ID
		} else {
			upstream[i] = fmt.Sprintf("%s (%s)", u.ID, u.Title)
		}
	}
	add("Upstream", bullets(upstream))

	add("Done when", doneWhen)
	return strings.Join(sections, "\n\n")
}

func bullets(lines []string) string {
	var b strings.Builder
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(ln)
		b.WriteString("\n")
	}
	return b.String()
}
