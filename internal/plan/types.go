package plan

import (
	"time"

	"github.com/felixgeelhaar/plansmith/internal/depgraph"
	"github.com/felixgeelhaar/plansmith/internal/domain"
)

// Status is the lifecycle state recorded on an exported plan
type Status string

const (
	StatusDraft           Status = "Draft"
	StatusComplete        Status = "Complete"
	StatusPartiallyFailed Status = "PartiallyFailed"
)

// Plan is the aggregate root of one pipeline run: the features parsed from
// the requirement and everything derived from them.
type Plan struct {
	RunID      string    `json:"run_id" yaml:"run_id" toml:"run_id"`
	Name       string    `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Status     Status    `json:"status" yaml:"status" toml:"status"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at" toml:"created_at"`
	SourceText string    `json:"source_text" yaml:"source_text" toml:"source_text"`

	Constraints   []string `json:"constraints,omitempty" yaml:"constraints,omitempty" toml:"constraints,omitempty"`
	Goals         []string `json:"goals,omitempty" yaml:"goals,omitempty" toml:"goals,omitempty"`
	Assumptions   []string `json:"assumptions,omitempty" yaml:"assumptions,omitempty" toml:"assumptions,omitempty"`
	OpenQuestions []string `json:"open_questions,omitempty" yaml:"open_questions,omitempty" toml:"open_questions,omitempty"`

	Features     []Feature            `json:"features" yaml:"features" toml:"features"`
	Estimates    []ComplexityEstimate `json:"estimates" yaml:"estimates" toml:"estimates"`
	Phases       []Phase              `json:"phases" yaml:"phases" toml:"phases"`
	Tasks        []Task               `json:"tasks" yaml:"tasks" toml:"tasks"`
	Dependencies []depgraph.Edge      `json:"dependencies" yaml:"dependencies" toml:"dependencies"`

	// Criteria and Prompts are keyed by task ID.
	Criteria map[string][]AcceptanceCriterion `json:"criteria" yaml:"criteria" toml:"criteria"`
	Prompts  map[string]DeveloperPrompt       `json:"prompts" yaml:"prompts" toml:"prompts"`

	ExecutionOrder []string `json:"execution_order,omitempty" yaml:"execution_order,omitempty" toml:"execution_order,omitempty"`
	// ExecutionWaves groups the execution order into waves of tasks whose
	// upstream tasks all sit in earlier waves.
	ExecutionWaves [][]string `json:"execution_waves,omitempty" yaml:"execution_waves,omitempty" toml:"execution_waves,omitempty"`
	// PromptLimit is the character bound prompts were generated under; zero
	// means unbounded.
	PromptLimit int `json:"prompt_limit,omitempty" yaml:"prompt_limit,omitempty" toml:"prompt_limit,omitempty"`

	TotalEffortDays float64      `json:"total_effort_days" yaml:"total_effort_days" toml:"total_effort_days"`
	Diagnostics     []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty" toml:"diagnostics,omitempty"`
}

// Feature is a unit of scope found in the requirement text
type Feature struct {
	ID          string   `json:"id" yaml:"id" toml:"id"`
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Constraints []string `json:"constraints,omitempty" yaml:"constraints,omitempty" toml:"constraints,omitempty"`
	Goals       []string `json:"goals,omitempty" yaml:"goals,omitempty" toml:"goals,omitempty"`
}

// ComplexityEstimate sizes one feature. MinDays and MaxDays give the
// effort range around EffortDays; Drivers name what pushed the size up.
type ComplexityEstimate struct {
	FeatureID   string                 `json:"feature_id" yaml:"feature_id" toml:"feature_id"`
	Label       domain.ComplexityLabel `json:"label" yaml:"label" toml:"label"`
	EffortDays  float64                `json:"effort_days" yaml:"effort_days" toml:"effort_days"`
	MinDays     float64                `json:"min_days,omitempty" yaml:"min_days,omitempty" toml:"min_days,omitempty"`
	MaxDays     float64                `json:"max_days,omitempty" yaml:"max_days,omitempty" toml:"max_days,omitempty"`
	Confidence  domain.Confidence      `json:"confidence,omitempty" yaml:"confidence,omitempty" toml:"confidence,omitempty"`
	Drivers     []string               `json:"drivers,omitempty" yaml:"drivers,omitempty" toml:"drivers,omitempty"`
	Risks       []string               `json:"risks,omitempty" yaml:"risks,omitempty" toml:"risks,omitempty"`
	Mitigations map[string]string      `json:"mitigations,omitempty" yaml:"mitigations,omitempty" toml:"mitigations,omitempty"`
	Degraded    bool                   `json:"degraded,omitempty" yaml:"degraded,omitempty" toml:"degraded,omitempty"`
}

// Phase groups tasks; Ordinal gives the intended execution sequence
type Phase struct {
	ID      string `json:"id" yaml:"id" toml:"id"`
	Name    string `json:"name" yaml:"name" toml:"name"`
	Ordinal int    `json:"ordinal" yaml:"ordinal" toml:"ordinal"`
	Goal    string `json:"goal,omitempty" yaml:"goal,omitempty" toml:"goal,omitempty"`
}

// Task represents a single independently verifiable unit of work
type Task struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	FeatureID   string `json:"feature_id" yaml:"feature_id" toml:"feature_id"`
	PhaseID     string `json:"phase_id" yaml:"phase_id" toml:"phase_id"`
	Title       string `json:"title" yaml:"title" toml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// AcceptanceCriterion is one Given/When/Then scenario for a task
type AcceptanceCriterion struct {
	ID     string               `json:"id" yaml:"id" toml:"id"`
	TaskID string               `json:"task_id" yaml:"task_id" toml:"task_id"`
	Kind   domain.CriterionKind `json:"kind,omitempty" yaml:"kind,omitempty" toml:"kind,omitempty"`
	Given  string               `json:"given" yaml:"given" toml:"given"`
	When   string               `json:"when" yaml:"when" toml:"when"`
	Then   string               `json:"then" yaml:"then" toml:"then"`
}

// DeveloperPrompt is the instruction handed to whoever implements a task
type DeveloperPrompt struct {
	TaskID         string   `json:"task_id" yaml:"task_id" toml:"task_id"`
	Text           string   `json:"text" yaml:"text" toml:"text"`
	CriteriaRefs   []string `json:"criteria_refs" yaml:"criteria_refs" toml:"criteria_refs"`
	DependencyRefs []string `json:"dependency_refs,omitempty" yaml:"dependency_refs,omitempty" toml:"dependency_refs,omitempty"`
	Degraded       bool     `json:"degraded,omitempty" yaml:"degraded,omitempty" toml:"degraded,omitempty"`
}

// Diagnostic records a warning or a degradation that happened during the run
type Diagnostic struct {
	Severity  domain.Severity `json:"severity" yaml:"severity" toml:"severity"`
	Kind      string          `json:"kind" yaml:"kind" toml:"kind"`
	Stage     string          `json:"stage" yaml:"stage" toml:"stage"`
	EntityIDs []string        `json:"entity_ids,omitempty" yaml:"entity_ids,omitempty" toml:"entity_ids,omitempty"`
	Message   string          `json:"message" yaml:"message" toml:"message"`
}

// New creates an empty draft plan for a run.
func New(runID, name, source string, createdAt time.Time) *Plan {
	return &Plan{
		RunID:      runID,
		Name:       name,
		Status:     StatusDraft,
		CreatedAt:  createdAt.UTC(),
		SourceText: source,
		Criteria:   map[string][]AcceptanceCriterion{},
		Prompts:    map[string]DeveloperPrompt{},
	}
}
