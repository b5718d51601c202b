package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Pipeline errors (PIPE-001 to PIPE-099)
	ErrCodeValidation       ErrorCode = "PIPE-001"
	ErrCodeExternalCall     ErrorCode = "PIPE-002"
	ErrCodeGraphCycle       ErrorCode = "PIPE-003"
	ErrCodeFatalStage       ErrorCode = "PIPE-004"
	ErrCodeCancelled        ErrorCode = "PIPE-005"
	ErrCodeNoRequirements   ErrorCode = "PIPE-006"
	ErrCodeInvalidOptions   ErrorCode = "PIPE-007"
	ErrCodeExportNotAllowed ErrorCode = "PIPE-008"

	// Plan errors (PLAN-001 to PLAN-099)
	ErrCodePlanNotFound    ErrorCode = "PLAN-001"
	ErrCodePlanInvalid     ErrorCode = "PLAN-002"
	ErrCodePlanDanglingRef ErrorCode = "PLAN-003"
	ErrCodePlanIncomplete  ErrorCode = "PLAN-004"
	ErrCodePlanCyclicDep   ErrorCode = "PLAN-005"
	ErrCodePlanFormat      ErrorCode = "PLAN-006"

	// Provider errors (PROVIDER-001 to PROVIDER-099)
	ErrCodeProviderNotFound  ErrorCode = "PROVIDER-001"
	ErrCodeProviderConfig    ErrorCode = "PROVIDER-002"
	ErrCodeProviderAuth      ErrorCode = "PROVIDER-003"
	ErrCodeProviderAPI       ErrorCode = "PROVIDER-004"
	ErrCodeProviderRateLimit ErrorCode = "PROVIDER-005"
	ErrCodeProviderTimeout   ErrorCode = "PROVIDER-006"

	// Store errors (STORE-001 to STORE-099)
	ErrCodeStoreOpen     ErrorCode = "STORE-001"
	ErrCodeStoreQuery    ErrorCode = "STORE-002"
	ErrCodeStoreNotFound ErrorCode = "STORE-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigLoad    ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

// Kind classifies an error by how the pipeline recovers from it.
type Kind string

const (
	KindUnknown      Kind = ""
	KindValidation   Kind = "ValidationError"
	KindExternalCall Kind = "ExternalCallError"
	KindGraphCycle   Kind = "GraphCycleError"
	KindFatalStage   Kind = "FatalStageError"
	KindCancelled    Kind = "CancelledError"
)

var codeKinds = map[ErrorCode]Kind{
	ErrCodeValidation:        KindValidation,
	ErrCodeExternalCall:      KindExternalCall,
	ErrCodeGraphCycle:        KindGraphCycle,
	ErrCodeFatalStage:        KindFatalStage,
	ErrCodeNoRequirements:    KindFatalStage,
	ErrCodeCancelled:         KindCancelled,
	ErrCodeProviderAPI:       KindExternalCall,
	ErrCodeProviderAuth:      KindExternalCall,
	ErrCodeProviderRateLimit: KindExternalCall,
	ErrCodeProviderTimeout:   KindExternalCall,
	ErrCodePlanCyclicDep:     KindGraphCycle,
	ErrCodePlanDanglingRef:   KindValidation,
	ErrCodePlanIncomplete:    KindValidation,
	ErrCodePlanInvalid:       KindValidation,
}

// PlanError represents an enhanced error with code, suggestions, and documentation
type PlanError struct {
	Code        ErrorCode
	Message     string
	Stage       string
	Entity      string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *PlanError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] ", e.Code))
	if e.Stage != "" {
		b.WriteString(e.Stage)
		if e.Entity != "" {
			b.WriteString("/" + e.Entity)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *PlanError) Unwrap() error {
	return e.Cause
}

// Kind reports the recovery class of the error code.
func (e *PlanError) Kind() Kind {
	return codeKinds[e.Code]
}

// New creates a new PlanError
func New(code ErrorCode, message string) *PlanError {
	return &PlanError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new PlanError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *PlanError {
	return &PlanError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *PlanError) WithSuggestion(suggestion string) *PlanError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *PlanError) WithSuggestions(suggestions ...string) *PlanError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *PlanError) WithDocs(url string) *PlanError {
	e.DocsURL = url
	return e
}

// At attaches the pipeline stage and entity the error belongs to.
func (e *PlanError) At(stage, entity string) *PlanError {
	e.Stage = stage
	e.Entity = entity
	return e
}

// KindOf walks the error chain and returns the kind of the first PlanError
// with a classified code.
func KindOf(err error) Kind {
	for err != nil {
		var pe *PlanError
		if !stderrors.As(err, &pe) {
			return KindUnknown
		}
		if k := pe.Kind(); k != KindUnknown {
			return k
		}
		err = pe.Cause
	}
	return KindUnknown
}

// HasCode reports whether any PlanError in the chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var pe *PlanError
		if !stderrors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Cause
	}
	return false
}

// Common error constructors for the pipeline error kinds

// NewValidation creates a stage output validation error
func NewValidation(stage, entity, details string) *PlanError {
	return New(ErrCodeValidation, details).At(stage, entity)
}

// NewExternalCall wraps a failed call to the generation capability
func NewExternalCall(stage, entity string, cause error) *PlanError {
	return Wrap(ErrCodeExternalCall, "capability call failed", cause).At(stage, entity)
}

// NewCallsExhausted escalates a call that kept failing as a validation
// error, so the stage retry loop treats it like a rejected response. The
// external-call error stays in the chain.
func NewCallsExhausted(stage, entity string, tries int, cause error) *PlanError {
	return Wrap(ErrCodeValidation, fmt.Sprintf("call retries exhausted (%d calls)", tries),
		NewExternalCall(stage, entity, cause)).At(stage, entity)
}

// NewGraphCycle reports a set of tasks that form a dependency cycle
func NewGraphCycle(taskIDs []string) *PlanError {
	return New(ErrCodeGraphCycle, fmt.Sprintf("dependency cycle among {%s}", strings.Join(taskIDs, ","))).
		WithSuggestion("Edges inside the cycle were dropped; review the affected tasks manually")
}

// NewFatalStage reports that a non-recoverable stage exhausted its retry budget
func NewFatalStage(stage string, cause error) *PlanError {
	return Wrap(ErrCodeFatalStage, "retry budget exhausted", cause).At(stage, "").
		WithSuggestion("Increase max_stage_retries or rephrase the requirement").
		WithSuggestion("Run with --log-level debug to see each attempt")
}

// NewNoRequirements reports that the parser found nothing actionable
func NewNoRequirements() *PlanError {
	return New(ErrCodeNoRequirements, "no actionable requirements").At("Parsing", "").
		WithSuggestion("Describe at least one concrete feature, for example as a bullet list")
}

// NewCancelled reports an explicit run cancellation
func NewCancelled(stage string, cause error) *PlanError {
	return Wrap(ErrCodeCancelled, "run cancelled", cause).At(stage, "")
}

// NewPlanInvalidError creates a plan invariant violation error
func NewPlanInvalidError(code ErrorCode, details string) *PlanError {
	return New(code, details).
		WithSuggestion("Run 'plansmith validate <file>' to list every violation")
}

// NewProviderAuthError creates a provider authentication error
func NewProviderAuthError(provider string) *PlanError {
	return New(ErrCodeProviderAuth, fmt.Sprintf("authentication failed for provider: %s", provider)).
		WithSuggestion(fmt.Sprintf("Set the %s_API_KEY environment variable", strings.ToUpper(provider))).
		WithSuggestion("Check if your API key is valid and not expired")
}

// NewProviderRateLimitError creates a rate limit error
func NewProviderRateLimitError(provider string, retryAfter string) *PlanError {
	msg := fmt.Sprintf("rate limit exceeded for provider: %s", provider)
	if retryAfter != "" {
		msg += fmt.Sprintf(" (retry after: %s)", retryAfter)
	}

	return New(ErrCodeProviderRateLimit, msg).
		WithSuggestion("Lower requests_per_second or concurrency in the config")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *PlanError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *PlanError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
