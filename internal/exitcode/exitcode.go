// Package exitcode maps plansmith errors and run outcomes to process exit
// codes so scripts can tell a degraded plan from a failed run.
package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates a Complete run or a successful command
	Success = 0

	// GeneralError indicates an unclassified error
	GeneralError = 1

	// UsageError indicates invalid flags, arguments or configuration
	UsageError = 2

	// RunFailed indicates the run ended Failed
	RunFailed = 3

	// PartialPlan indicates the run ended PartiallyFailed
	PartialPlan = 4

	// AuthError indicates a provider rejected the credentials
	AuthError = 5

	// NetworkError indicates a provider could not be reached or timed out
	NetworkError = 6

	// InvalidPlan indicates a plan document failed validation
	InvalidPlan = 7

	// Cancelled indicates the run was interrupted, as by SIGINT
	Cancelled = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// Coder is implemented by errors that choose their own exit code
type Coder interface {
	ExitCode() int
}

// DetermineExitCode classifies err by its error codes first and falls back
// to the message for errors raised outside plansmith, such as cobra's usage
// errors.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}
	var coder Coder
	if stderrors.As(err, &coder) {
		return coder.ExitCode()
	}

	switch {
	case errors.HasCode(err, errors.ErrCodeCancelled),
		stderrors.Is(err, context.Canceled):
		return Cancelled
	case errors.HasCode(err, errors.ErrCodeInvalidOptions),
		errors.HasCode(err, errors.ErrCodeConfigInvalid),
		errors.HasCode(err, errors.ErrCodeConfigLoad):
		return UsageError
	case errors.HasCode(err, errors.ErrCodeProviderAuth):
		return AuthError
	case errors.HasCode(err, errors.ErrCodeProviderAPI),
		errors.HasCode(err, errors.ErrCodeProviderTimeout),
		errors.HasCode(err, errors.ErrCodeProviderRateLimit):
		return NetworkError
	case errors.HasCode(err, errors.ErrCodeExportNotAllowed):
		return PartialPlan
	case errors.HasCode(err, errors.ErrCodePlanInvalid),
		errors.HasCode(err, errors.ErrCodePlanDanglingRef),
		errors.HasCode(err, errors.ErrCodePlanIncomplete),
		errors.HasCode(err, errors.ErrCodePlanCyclicDep),
		errors.HasCode(err, errors.ErrCodePlanFormat),
		errors.HasCode(err, errors.ErrCodeFileUnmarshal):
		return InvalidPlan
	}

	switch errors.KindOf(err) {
	case errors.KindFatalStage, errors.KindValidation, errors.KindExternalCall, errors.KindGraphCycle:
		return RunFailed
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "invalid argument", "required flag", "accepts ", "requires at least"} {
		if strings.Contains(msg, s) {
			return UsageError
		}
	}
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	case RunFailed:
		return "Run failed"
	case PartialPlan:
		return "Plan generated with degraded entities"
	case AuthError:
		return "Provider authentication error"
	case NetworkError:
		return "Provider unreachable"
	case InvalidPlan:
		return "Plan failed validation"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown error"
	}
}
