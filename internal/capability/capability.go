// Package capability declares the contract between the planning pipeline and
// the generation backend that does the actual reasoning.
//
// Each pipeline stage makes one kind of request. Responses are loosely typed
// on purpose: labels are raw strings, identifiers are whatever the backend
// returned. The pipeline owns validation and decides whether to retry,
// degrade or fail, so a backend never needs to know those rules.
package capability

import "context"

// Capability is implemented by every generation backend.
type Capability interface {
	// Parse extracts features, constraints and goals from requirement text.
	Parse(ctx context.Context, req ParseRequest) (*ParseResponse, error)

	// Estimate sizes a single feature.
	Estimate(ctx context.Context, req EstimateRequest) (*EstimateResponse, error)

	// Tasks decomposes a single feature into tasks assigned to phases.
	Tasks(ctx context.Context, req TaskRequest) (*TaskResponse, error)

	// Dependencies proposes ordering edges over the whole task set.
	Dependencies(ctx context.Context, req DependencyRequest) (*DependencyResponse, error)

	// Criteria writes Given/When/Then scenarios for a single task.
	Criteria(ctx context.Context, req CriteriaRequest) (*CriteriaResponse, error)

	// Prompt writes the developer prompt for a single task.
	Prompt(ctx context.Context, req PromptRequest) (*PromptResponse, error)
}

// Hints carries repair instructions from earlier failed attempts. It is
// empty on the first attempt and grows with each retry.
type Hints []string

// ParseRequest asks for the features in a requirement
type ParseRequest struct {
	Text  string
	Hints Hints
}

// ParsedFeature is a feature as returned by the backend
type ParsedFeature struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Constraints []string `json:"constraints"`
	Goals       []string `json:"goals"`
}

// ParseResponse holds the parse stage output
type ParseResponse struct {
	Features      []ParsedFeature `json:"features"`
	Constraints   []string        `json:"constraints"`
	Goals         []string        `json:"goals"`
	Assumptions   []string        `json:"assumptions"`
	OpenQuestions []string        `json:"open_questions"`
}

// FeatureRef identifies a feature inside requests
type FeatureRef struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Goals       []string `json:"goals,omitempty"`
}

// EstimateRequest asks for the size of one feature; Others gives the
// remaining features for relative sizing.
type EstimateRequest struct {
	Feature FeatureRef
	Others  []FeatureRef
	Hints   Hints
}

// EstimateResponse holds an unvalidated estimate. MinDays and MaxDays
// bound EffortDays when given; Mitigations is keyed by risk text.
type EstimateResponse struct {
	Label       string            `json:"label"`
	EffortDays  float64           `json:"effort_days"`
	MinDays     float64           `json:"min_days,omitempty"`
	MaxDays     float64           `json:"max_days,omitempty"`
	Confidence  string            `json:"confidence,omitempty"`
	Drivers     []string          `json:"drivers,omitempty"`
	Risks       []string          `json:"risks"`
	Mitigations map[string]string `json:"mitigations,omitempty"`
}

// TaskRequest asks for the tasks of one feature
type TaskRequest struct {
	Feature    FeatureRef
	Label      string
	EffortDays float64
	MinTasks   int
	MaxTasks   int
	// TakenTitles lists titles already used by other features, keyed by
	// phase name, when a collision forced a retry.
	TakenTitles map[string][]string
	Hints       Hints
}

// GeneratedTask is a task as returned by the backend
type GeneratedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Phase       string `json:"phase"`
	PhaseGoal   string `json:"phase_goal,omitempty"`
}

// TaskResponse holds the tasks of one feature in intended order
type TaskResponse struct {
	Tasks []GeneratedTask `json:"tasks"`
}

// TaskRef identifies a task inside requests
type TaskRef struct {
	ID           string `json:"id"`
	FeatureID    string `json:"feature_id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Phase        string `json:"phase"`
	PhaseOrdinal int    `json:"phase_ordinal"`
}

// EdgeRef is a proposed dependency between two task IDs
type EdgeRef struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DependencyRequest asks for edges over the full task set. Conflicts lists
// edges from a previous attempt that formed a cycle.
type DependencyRequest struct {
	Features  []FeatureRef
	Tasks     []TaskRef
	Conflicts []EdgeRef
	Hints     Hints
}

// DependencyResponse holds candidate edges
type DependencyResponse struct {
	Edges []EdgeRef `json:"edges"`
}

// CriteriaRequest asks for the acceptance criteria of one task
type CriteriaRequest struct {
	Task        TaskRef
	Feature     FeatureRef
	MaxCriteria int
	Hints       Hints
}

// Scenario is one unvalidated Given/When/Then triple
type Scenario struct {
	Kind  string `json:"kind,omitempty"`
	Given string `json:"given"`
	When  string `json:"when"`
	Then  string `json:"then"`
}

// CriteriaResponse holds scenarios in order; IDs are assigned by the caller
type CriteriaResponse struct {
	Criteria []Scenario `json:"criteria"`
}

// CriterionRef is an identified criterion handed to the prompt stage
type CriterionRef struct {
	ID string `json:"id"`
	Scenario
}

// PromptRequest asks for the developer prompt of one task
type PromptRequest struct {
	Task     TaskRef
	Feature  FeatureRef
	Criteria []CriterionRef
	Upstream []TaskRef
	MaxChars int
	Hints    Hints
}

// PromptResponse holds prompt text and the criterion IDs it references
type PromptResponse struct {
	Text         string   `json:"text"`
	CriteriaRefs []string `json:"criteria_refs"`
}
