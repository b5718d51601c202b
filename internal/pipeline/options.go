package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/plansmith/internal/errors"
)

// Options defines the parameters of one run. They are read-only while the
// run is in progress.
type Options struct {
	// Input is the raw requirement text
	Input string `yaml:"-" json:"input" mapstructure:"-"`

	// RunID identifies the run; a UUID is generated when empty
	RunID string `yaml:"-" json:"run_id,omitempty" mapstructure:"-"`

	// Name is a human label stored on the plan
	Name string `yaml:"-" json:"name,omitempty" mapstructure:"-"`

	// Streaming enables the observer channel
	Streaming bool `yaml:"-" json:"stream,omitempty" mapstructure:"-"`

	// Retry settings
	MaxStageRetries int           `yaml:"max_stage_retries" json:"max_stage_retries" mapstructure:"max_stage_retries"`
	MaxCallRetries  int           `yaml:"max_call_retries" json:"max_call_retries" mapstructure:"max_call_retries"`
	CallTimeout     time.Duration `yaml:"call_timeout" json:"call_timeout" mapstructure:"call_timeout"`
	CallBackoff     time.Duration `yaml:"call_backoff" json:"call_backoff" mapstructure:"call_backoff"`

	// Concurrency settings
	Concurrency       int     `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" mapstructure:"requests_per_second"`
	ObserverBuffer    int     `yaml:"observer_buffer" json:"observer_buffer" mapstructure:"observer_buffer"`

	// Output bounds
	MinTasksPerFeature int `yaml:"min_tasks_per_feature" json:"min_tasks_per_feature" mapstructure:"min_tasks_per_feature"`
	MaxTasksPerFeature int `yaml:"max_tasks_per_feature" json:"max_tasks_per_feature" mapstructure:"max_tasks_per_feature"`
	MaxCriteriaPerTask int `yaml:"max_criteria_per_task" json:"max_criteria_per_task" mapstructure:"max_criteria_per_task"`
	MaxPromptChars     int `yaml:"max_prompt_chars" json:"max_prompt_chars" mapstructure:"max_prompt_chars"`

	// ExportPartial allows PartiallyFailed plans to be exported
	ExportPartial bool `yaml:"export_partial" json:"export_partial" mapstructure:"export_partial"`
}

// DefaultOptions returns Options with sensible defaults
func DefaultOptions() Options {
	return Options{
		MaxStageRetries:    2,
		MaxCallRetries:     3,
		CallTimeout:        60 * time.Second,
		CallBackoff:        500 * time.Millisecond,
		Concurrency:        4,
		RequestsPerSecond:  0,
		ObserverBuffer:     16,
		MinTasksPerFeature: 1,
		MaxTasksPerFeature: 12,
		MaxCriteriaPerTask: 6,
		MaxPromptChars:     2000,
		ExportPartial:      true,
	}
}

// minPromptChars is the smallest prompt bound that still fits a compact
// prompt with a handful of criterion IDs.
const minPromptChars = 80

// worstCriterionID is the widest criterion ID a compact prompt is sized for
const worstCriterionID = "T999-AC99"

// compactFloor is the length of a bare compact prompt listing n criterion IDs
func compactFloor(n int) int {
	if n < 1 {
		return 0
	}
	return len("Criteria: ") + n*len(worstCriterionID) + (n-1)*len(", ")
}

// Validate checks the tuning parameters. The input text is checked by the
// parse stage so that an empty requirement fails the run instead.
func (o Options) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(o.MaxStageRetries >= 0, "max_stage_retries must be >= 0, got %d", o.MaxStageRetries)
	check(o.MaxCallRetries >= 0, "max_call_retries must be >= 0, got %d", o.MaxCallRetries)
	check(o.CallTimeout > 0, "call_timeout must be positive, got %s", o.CallTimeout)
	check(o.CallBackoff >= 0, "call_backoff must be >= 0, got %s", o.CallBackoff)
	check(o.Concurrency >= 1, "concurrency must be >= 1, got %d", o.Concurrency)
	check(o.RequestsPerSecond >= 0, "requests_per_second must be >= 0, got %g", o.RequestsPerSecond)
	check(o.ObserverBuffer >= 1, "observer_buffer must be >= 1, got %d", o.ObserverBuffer)
	check(o.MinTasksPerFeature >= 1, "min_tasks_per_feature must be >= 1, got %d", o.MinTasksPerFeature)
	check(o.MaxTasksPerFeature >= o.MinTasksPerFeature,
		"max_tasks_per_feature (%d) must be >= min_tasks_per_feature (%d)", o.MaxTasksPerFeature, o.MinTasksPerFeature)
	check(o.MaxCriteriaPerTask >= 1, "max_criteria_per_task must be >= 1, got %d", o.MaxCriteriaPerTask)
	check(o.MaxPromptChars >= minPromptChars, "max_prompt_chars must be >= %d, got %d", minPromptChars, o.MaxPromptChars)
	check(o.MaxPromptChars >= compactFloor(o.MaxCriteriaPerTask),
		"max_prompt_chars (%d) cannot hold the IDs of %d criteria, need >= %d",
		o.MaxPromptChars, o.MaxCriteriaPerTask, compactFloor(o.MaxCriteriaPerTask))

	if len(problems) == 0 {
		return nil
	}
	return errors.New(errors.ErrCodeInvalidOptions, strings.Join(problems, "; ")).
		WithSuggestion("Check the pipeline section of plansmith.yaml or the PLANSMITH_PIPELINE_* variables")
}

// compactLimit is the stricter bound used for the single compaction retry
func (o Options) compactLimit() int {
	return o.MaxPromptChars * 3 / 4
}
