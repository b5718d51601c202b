package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/capability"
)

// systemPrompt is shared by every stage
const systemPrompt = `You are a senior software architect who turns product requirements into development plans.

You answer one narrowly scoped question per request. The caller validates every answer against a schema and
asks again with repair hints when it is invalid.

Output Requirements:
- Return ONLY one valid JSON object matching the structure given in the request
- Do NOT include markdown formatting or explanations
- Use plain strings; never invent identifiers unless the request lists them
- Keep wording concrete and testable`

func buildParsePrompt(req capability.ParseRequest) string {
	return withHints(fmt.Sprintf(`Extract the features of the following requirement.

Requirement:
%s

Output JSON with this exact structure:
{
  "features": [
    {"name": "Short feature name", "description": "One sentence", "constraints": [], "goals": []}
  ],
  "constraints": ["Global constraint"],
  "goals": ["Measurable goal"],
  "assumptions": ["Assumption made while reading the requirement"],
  "open_questions": ["Question the requirement leaves open"]
}

Important:
- Feature names must be non-empty and unique (case-insensitive)
- Return an empty features list if nothing actionable is described`, req.Text), req.Hints)
}

func buildEstimatePrompt(req capability.EstimateRequest) string {
	others := make([]string, 0, len(req.Others))
	for _, o := range req.Others {
		others = append(others, o.Name)
	}
	return withHints(fmt.Sprintf(`Estimate the complexity of one feature.

Feature:
%s

Other features in the same plan (for relative sizing): %s

Output JSON with this exact structure:
{"label": "Low|Medium|High", "effort_days": 2.5, "min_days": 2, "max_days": 3.5,
 "confidence": "low|medium|high", "drivers": ["What pushed the size up"],
 "risks": ["Specific risk"], "mitigations": {"Specific risk": "How to reduce it"}}

Important:
- label must be exactly one of Low, Medium, High
- effort_days must be greater than zero
- min_days <= effort_days <= max_days
- risks must not be empty when label is Medium or High
- mitigations are keyed by the exact risk text`, mustJSON(req.Feature), listOrNone(others)), req.Hints)
}

func buildTasksPrompt(req capability.TaskRequest) string {
	phases := make([]string, 0, len(req.TakenTitles))
	for phase := range req.TakenTitles {
		phases = append(phases, phase)
	}
	sort.Strings(phases)

	var taken strings.Builder
	for _, phase := range phases {
		fmt.Fprintf(&taken, "- %s: %s\n", phase, strings.Join(req.TakenTitles[phase], "; "))
	}
	takenSection := ""
	if taken.Len() > 0 {
		takenSection = "\nTitles already used by other features (do not reuse them in the same phase):\n" + taken.String()
	}

	return withHints(fmt.Sprintf(`Decompose one feature into development tasks grouped into phases.

Feature:
%s

Estimated complexity: %s (%.1f days)
%s
Output JSON with this exact structure:
{
  "tasks": [
    {"title": "Imperative task title", "description": "What to build", "phase": "Phase name", "phase_goal": "Outcome of the phase"}
  ]
}

Important:
- Return between %d and %d tasks, in the order they should be done
- Titles and phase names must be non-empty
- Titles must be unique within a phase`, mustJSON(req.Feature), req.Label, req.EffortDays, takenSection, req.MinTasks, req.MaxTasks), req.Hints)
}

func buildDependenciesPrompt(req capability.DependencyRequest) string {
	conflicts := ""
	if len(req.Conflicts) > 0 {
		conflicts = "\nThese edges formed a cycle in the previous answer; break the cycle:\n" + mustJSON(req.Conflicts) + "\n"
	}
	return withHints(fmt.Sprintf(`Propose dependencies between the tasks of a plan.

Features:
%s

Tasks:
%s
%s
Output JSON with this exact structure:
{"edges": [{"from": "T1", "to": "T2"}]}

Important:
- "from" must be finished before "to" can start
- Use only task IDs from the list above
- The edges must not form a cycle
- Return an empty list when tasks are independent`, mustJSON(req.Features), mustJSON(req.Tasks), conflicts), req.Hints)
}

func buildCriteriaPrompt(req capability.CriteriaRequest) string {
	return withHints(fmt.Sprintf(`Write acceptance criteria for one task.

Task:
%s

Feature:
%s

Output JSON with this exact structure:
{"criteria": [{"kind": "happy_path", "given": "precondition", "when": "action", "then": "observable outcome"}]}

Important:
- Return between 1 and %d criteria
- kind is one of happy_path, validation, authorization, error_state, nonfunctional, edge_case
- given, when and then must all be non-empty
- Every criterion must be verifiable by a test`, mustJSON(req.Task), mustJSON(req.Feature), req.MaxCriteria), req.Hints)
}

func buildPromptPrompt(req capability.PromptRequest) string {
	ids := make([]string, 0, len(req.Criteria))
	for _, c := range req.Criteria {
		ids = append(ids, c.ID)
	}
	return withHints(fmt.Sprintf(`Write the developer prompt for one task.

Task:
%s

Feature:
%s

Acceptance criteria:
%s

Upstream tasks that are already done:
%s

Output JSON with this exact structure:
{"text": "The prompt", "criteria_refs": ["%s"]}

Important:
- text must be at most %d characters
- text must mention every criterion ID: %s
- criteria_refs must list exactly those IDs`,
		mustJSON(req.Task), mustJSON(req.Feature), mustJSON(req.Criteria), mustJSON(req.Upstream),
		strings.Join(ids, `", "`), req.MaxChars, strings.Join(ids, ", ")), req.Hints)
}

// withHints appends repair instructions from earlier attempts
func withHints(prompt string, hints capability.Hints) string {
	if len(hints) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nYour previous answers were rejected. Fix the following:\n")
	for _, h := range hints {
		b.WriteString("- ")
		b.WriteString(h)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
