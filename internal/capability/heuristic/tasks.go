package heuristic

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/domain"
)

// stage orders work inside a feature. Tasks of a stage depend on the
// closest earlier stage, and each stage belongs to one phase.
type stage int

const (
	stageDiscovery stage = iota
	stageFoundation
	stageBackend
	stageIntegration
	stageFrontend
	stageObservability
	stageTesting
	stageDocs
)

var stageKeywords = []struct {
	stage stage
	kw    keywords
}{
	{stageDiscovery, words("clarify", "scope", "spike", "research", "discovery")},
	{stageFoundation, words("schema", "data model", "setup", "scaffold*", "configur*", "migration*")},
	{stageIntegration, words("integrat*", "wire", "webhook*", "connect*", "file handling")},
	{stageFrontend, words("ui", "page", "form", "view", "component*", "screen", "accessibility")},
	{stageObservability, words("analytics", "logging", "metrics", "monitor*", "telemetry")},
	{stageTesting, words("test*", "performance check*", "verif*")},
	{stageDocs, words("doc*", "readme", "handoff")},
	{stageBackend, words("api", "backend", "service", "endpoint*", "persistence", "authorization")},
}

// phase names, indexed by phaseOf
var phaseNames = []struct{ name, goal string }{
	{"Phase 1: Foundation", "Agree on scope and lay down the data model"},
	{"Phase 2: Implementation", "Build the feature end to end"},
	{"Phase 3: Verification", "Prove the feature works and hand it over"},
}

func phaseOf(s stage) int {
	switch {
	case s <= stageFoundation:
		return 0
	case s <= stageObservability:
		return 1
	default:
		return 2
	}
}

// stageOf classifies a task by the action part of its title
func stageOf(title string) stage {
	action := actionOf(title)
	for _, sk := range stageKeywords {
		if sk.kw.in(action) {
			return sk.stage
		}
	}
	return stageBackend
}

type template struct {
	title       string
	description string
	// when limits the template to features whose text matches
	when *keywords
}

func kwp(k keywords) *keywords { return &k }

var taskTemplates = []template{
	{title: "Clarify scope and constraints", description: "Confirm must-haves, non-goals and edge cases; record unknowns and risks."},
	{title: "Data model and schema", description: "Identify entities, fields and the minimal schema changes needed.", when: kwp(dataKW)},
	{title: "Backend API surface", description: "Define endpoints, request and response contracts and validation rules."},
	{title: "Authorization and roles", description: "Enforce who can access or modify data; add guards and permission checks.", when: kwp(authKW)},
	{title: "File handling and validation", description: "Accept allowed file types and sizes and store uploads safely.", when: kwp(uploadKW)},
	{title: "Integrate external services", description: "Wire external APIs, credentials and their error paths.", when: kwp(integrationKW)},
	{title: "Frontend UI flow", description: "Create the UI flow and its loading, success and error states.", when: kwp(screensKW)},
	{title: "Accessibility pass", description: "Ensure keyboard navigation, labels and contrast basics.", when: kwp(a11yKW)},
	{title: "Analytics and logging events", description: "Emit events for key user actions and important failures.", when: kwp(words("analytics", "telemetry", "logging", "metrics", "tracking"))},
	{title: "Functional tests for happy paths", description: "Automate the main success scenarios end to end or through the API."},
	{title: "Performance checks", description: "Add timing and concurrency tests against the target.", when: kwp(words("performance", "sla", "concurrent", "latency", "throughput", "fast", "p95", "p99"))},
	{title: "Error and edge-case tests", description: "Cover invalid input, timeouts and permission errors."},
	{title: "Docs and handoff", description: "Document setup, configuration and how to run the tests."},
}

// Tasks expands the task templates that apply to the feature. Titles are
// prefixed with the feature name so they stay unique across features.
func (e *Engine) Tasks(ctx context.Context, req capability.TaskRequest) (*capability.TaskResponse, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}

	text := featureText(req.Feature)
	var picked []template
	for _, t := range taskTemplates {
		if t.when == nil || t.when.in(text) {
			picked = append(picked, t)
		}
	}

	// Low complexity features skip the separate edge-case pass.
	if req.Label == string(domain.ComplexityLow) && len(picked) > 4 {
		picked = dropTitle(picked, "Error and edge-case tests")
	}
	if req.MaxTasks > 0 && len(picked) > req.MaxTasks {
		picked = trim(picked, req.MaxTasks)
	}

	taken := make(map[string]bool)
	for phase, titles := range req.TakenTitles {
		for _, t := range titles {
			taken[phase+"\x00"+strings.ToLower(t)] = true
		}
	}

	out := &capability.TaskResponse{}
	for _, t := range picked {
		ph := phaseNames[phaseOf(stageOf(t.title))]
		title := fmt.Sprintf("%s: %s", req.Feature.Name, t.title)
		if taken[ph.name+"\x00"+strings.ToLower(title)] {
			title = fmt.Sprintf("%s (%s)", title, req.Feature.ID)
		}
		out.Tasks = append(out.Tasks, capability.GeneratedTask{
			Title:       title,
			Description: t.description,
			Phase:       ph.name,
			PhaseGoal:   ph.goal,
		})
	}
	return out, nil
}

func dropTitle(list []template, title string) []template {
	out := list[:0:0]
	for _, t := range list {
		if t.title != title {
			out = append(out, t)
		}
	}
	return out
}

// trim keeps the first and last templates and fills the rest in order, so
// a capped plan still starts with scoping and ends with handoff.
func trim(list []template, n int) []template {
	if n <= 1 {
		return list[:1]
	}
	out := append([]template(nil), list[:n-1]...)
	return append(out, list[len(list)-1])
}
