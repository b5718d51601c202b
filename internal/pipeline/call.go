package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/metrics"
	"github.com/felixgeelhaar/plansmith/internal/provider"
	"github.com/felixgeelhaar/plansmith/internal/telemetry"
)

// attempts tracks the stage retry budget of one entity. A budget of N
// retries allows N+1 calls.
type attempts struct {
	stage       State
	entity      string
	instruction string
	used        int
	hints       capability.Hints
	last        error
}

func (r *run) newAttempts(stage State, entity, instruction string) *attempts {
	return &attempts{stage: stage, entity: entity, instruction: instruction}
}

// stopError ends the attempt loop early with the wrapped error
type stopError struct{ err error }

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

func stop(err error) error { return &stopError{err: err} }

// reject records a failed attempt and extends the repair hints
func (r *run) reject(a *attempts, err error) {
	a.last = err
	a.hints = append(a.hints, fmt.Sprintf("Attempt %d was rejected: %s. %s", a.used, describe(err), a.instruction))
	r.metrics.RecordRetry(string(a.stage))
	r.logger.Warn("attempt rejected",
		"stage", string(a.stage),
		"entity", a.entity,
		"attempt", a.used,
		"error", describe(err))
}

// attempt calls the capability until check accepts the response or the
// stage retry budget is spent. It returns the last error on exhaustion and
// a CancelledError when ctx ends.
func attempt[T, V any](ctx context.Context, r *run, a *attempts,
	call func(context.Context, capability.Hints) (T, error),
	check func(T) (V, error),
) (V, error) {
	var zero V
	for a.used <= r.opts.MaxStageRetries {
		if err := ctx.Err(); err != nil {
			return zero, errors.NewCancelled(string(a.stage), err)
		}
		a.used++

		hints := append(capability.Hints(nil), a.hints...)
		out, err := invoke(ctx, r, a, func(ctx context.Context) (T, error) {
			return call(ctx, hints)
		})
		if err == nil {
			var v V
			if v, err = check(out); err == nil {
				return v, nil
			}
		}
		if ctx.Err() != nil {
			return zero, errors.NewCancelled(string(a.stage), ctx.Err())
		}

		var s *stopError
		if stderrors.As(err, &s) {
			r.reject(a, s.err)
			return zero, s.err
		}
		r.reject(a, err)
	}
	return zero, a.last
}

// invoke performs one stage attempt. Each try waits on the rate limiter and
// runs under its own timeout. Transient failures are retried with
// exponential backoff up to MaxCallRetries and then escalated as a
// ValidationError wrapping the ExternalCallError. Timeouts and malformed
// output are returned at once so they consume a stage attempt instead.
func invoke[T any](ctx context.Context, r *run, a *attempts, fn func(context.Context) (T, error)) (T, error) {
	stage := string(a.stage)
	ctx, span := telemetry.StartCapabilitySpan(ctx, stage, a.entity, a.used)
	defer span.End()

	tries := 0
	op := func() (T, error) {
		var zero T
		tries++
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return zero, backoff.Permanent(err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()

		start := time.Now()
		out, err := fn(callCtx)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			r.metrics.RecordCall(stage, metrics.ResultOK, elapsed)
			return out, nil
		case ctx.Err() != nil:
			return zero, backoff.Permanent(ctx.Err())
		case stderrors.Is(callCtx.Err(), context.DeadlineExceeded):
			r.metrics.RecordCall(stage, metrics.ResultTimeout, elapsed)
			return zero, backoff.Permanent(
				errors.NewValidation(stage, a.entity, fmt.Sprintf("call timed out after %s", r.opts.CallTimeout)))
		case errors.KindOf(err) == errors.KindValidation:
			r.metrics.RecordCall(stage, metrics.ResultInvalid, elapsed)
			return zero, backoff.Permanent(err)
		case provider.Permanent(err):
			r.metrics.RecordCall(stage, metrics.ResultError, elapsed)
			return zero, backoff.Permanent(err)
		default:
			r.metrics.RecordCall(stage, metrics.ResultError, elapsed)
			r.logger.Debug("capability call failed, backing off",
				"stage", stage,
				"entity", a.entity,
				"error", err.Error())
			return zero, err
		}
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.opts.MaxCallRetries+1)))
	if err == nil {
		return out, nil
	}

	var perm *backoff.PermanentError
	if stderrors.As(err, &perm) {
		err = perm.Err
	}
	telemetry.RecordError(span, err)
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if errors.KindOf(err) == errors.KindValidation {
		return out, err
	}
	return out, errors.NewCallsExhausted(stage, a.entity, tries, err)
}

func (r *run) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.CallBackoff
	b.MaxInterval = 20 * r.opts.CallBackoff
	return b
}

// describe renders an error for hints and diagnostics without codes and
// suggestions.
func describe(err error) string {
	if err == nil {
		return ""
	}
	var pe *errors.PlanError
	if stderrors.As(err, &pe) {
		if pe.Cause != nil {
			return pe.Message + ": " + describe(pe.Cause)
		}
		return pe.Message
	}
	return err.Error()
}

func isCancelled(err error) bool {
	return errors.KindOf(err) == errors.KindCancelled
}

// fatal wraps an exhausted stage error, leaving cancellation untouched
func fatal(stage State, err error) error {
	if isCancelled(err) {
		return err
	}
	return errors.NewFatalStage(string(stage), err)
}
