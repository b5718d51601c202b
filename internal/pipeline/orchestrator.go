// Package pipeline turns requirement text into an implementation plan.
//
// A run walks a fixed sequence of stages: Parsing, Estimating, TaskGen,
// DependencyDetect, CriteriaGen and PromptGen. Each stage asks the
// generation capability for output, validates it, retries with repair
// hints, and either extends the plan or falls back. Parsing and TaskGen
// are fatal when their retries run out; the other stages degrade and the
// run ends PartiallyFailed.
package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/log"
	"github.com/felixgeelhaar/plansmith/internal/metrics"
	"github.com/felixgeelhaar/plansmith/internal/plan"
	"github.com/felixgeelhaar/plansmith/internal/telemetry"
)

// Orchestrator runs the planning pipeline against one capability. It holds
// no per-run state and may start any number of runs concurrently.
type Orchestrator struct {
	backend capability.Capability
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator with a discarding logger and no
// metrics
func NewOrchestrator(backend capability.Capability) *Orchestrator {
	return &Orchestrator{
		backend: backend,
		logger:  log.Discard(),
		now:     time.Now,
	}
}

// SetLogger sets the logger used for run, stage and retry events.
func (o *Orchestrator) SetLogger(logger *log.Logger) {
	if logger != nil {
		o.logger = logger
	}
}

// SetMetrics sets the metrics sink. Nil disables metrics.
func (o *Orchestrator) SetMetrics(m *metrics.Metrics) {
	o.metrics = m
}

// SetClock overrides the clock used for plan and event timestamps
func (o *Orchestrator) SetClock(now func() time.Time) {
	if now != nil {
		o.now = now
	}
}

// Execution is a run in progress
type Execution struct {
	RunID string

	run    *run
	events <-chan Event
	obs    *observer
	done   chan struct{}
	result *Result
}

// State returns the state the run is currently in
func (e *Execution) State() State { return e.run.currentState() }

// Events returns the observer channel. It is closed when the run ends,
// and is closed from the start when streaming is off.
func (e *Execution) Events() <-chan Event { return e.events }

// Wait blocks until the run ends and returns its result
func (e *Execution) Wait() *Result {
	<-e.done
	return e.result
}

// Dropped returns how many events were discarded because the consumer
// fell behind
func (e *Execution) Dropped() int64 { return e.obs.droppedCount() }

// Start validates opts and launches a run in the background.
func (o *Orchestrator) Start(ctx context.Context, opts Options) (*Execution, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	r := &run{
		id:      opts.RunID,
		opts:    opts,
		backend: o.backend,
		logger:  o.logger.With("run_id", opts.RunID),
		metrics: o.metrics,
		now:     o.now,
	}
	if opts.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Concurrency)
	}

	exec := &Execution{RunID: opts.RunID, run: r, done: make(chan struct{})}
	if opts.Streaming {
		r.obs = newObserver(opts.ObserverBuffer, o.metrics)
		exec.obs = r.obs
		exec.events = r.obs.events()
	} else {
		closed := make(chan Event)
		close(closed)
		exec.events = closed
	}

	go func() {
		defer close(exec.done)
		defer r.obs.close()
		exec.result = r.execute(ctx)
	}()
	return exec, nil
}

// Run executes a run to completion. Events are drained and discarded, so
// use Start to observe progress. The error is non-nil only for invalid
// options; run failures are reported in the Result.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	exec, err := o.Start(ctx, opts)
	if err != nil {
		return nil, err
	}
	for range exec.Events() {
	}
	return exec.Wait(), nil
}

// run is the state of one execution. The plan is owned by the run; fan-out
// workers only write their own result slots.
type run struct {
	id      string
	opts    Options
	backend capability.Capability
	logger  *log.Logger
	metrics *metrics.Metrics
	limiter *rate.Limiter
	obs     *observer
	now     func() time.Time

	plan *plan.Plan

	mu    sync.Mutex
	state State
}

type stage struct {
	state State
	run   func(context.Context) error
}

func (r *run) stages() []stage {
	return []stage{
		{StateParsing, r.parse},
		{StateEstimating, r.estimate},
		{StateTaskGen, r.generateTasks},
		{StateDependencyDetect, r.detectDependencies},
		{StateCriteriaGen, r.generateCriteria},
		{StatePromptGen, r.generatePrompts},
	}
}

func (r *run) execute(ctx context.Context) *Result {
	start := time.Now()
	ctx, span := telemetry.StartRunSpan(ctx, r.id, r.opts.Name)
	defer span.End()

	r.plan = plan.New(r.id, r.opts.Name, r.opts.Input, r.now())
	r.plan.PromptLimit = r.opts.MaxPromptChars
	r.setState(StateInit)
	r.logger.Info("run started", "name", r.opts.Name, "input_bytes", len(r.opts.Input))

	for _, s := range r.stages() {
		if err := ctx.Err(); err != nil {
			return r.cancelled(span, s.state, err, start)
		}
		if err := r.runStage(ctx, s); err != nil {
			if ctx.Err() != nil || isCancelled(err) {
				return r.cancelled(span, s.state, ctx.Err(), start)
			}
			return r.failed(span, s.state, err, start)
		}
	}

	p := r.plan
	p.Finalize()
	state := StateComplete
	p.Status = plan.StatusComplete
	if p.Degraded() {
		state = StatePartiallyFailed
		p.Status = plan.StatusPartiallyFailed
	}
	if err := p.Validate(plan.LevelExport); err != nil {
		return r.failed(span, StatePromptGen, err, start)
	}

	res := &Result{
		RunID:         r.id,
		State:         state,
		Plan:          p,
		Diagnostics:   p.Diagnostics,
		Duration:      time.Since(start),
		exportPartial: r.opts.ExportPartial,
	}
	if fp, err := p.Fingerprint(); err == nil {
		res.Fingerprint = fp
	}

	r.setState(state)
	r.publish(state, state, p)
	r.metrics.RecordRun(string(state), res.Duration, len(p.Tasks))
	telemetry.RecordSuccess(span,
		attribute.String("status", string(state)),
		attribute.Int("tasks", len(p.Tasks)),
		attribute.Int("diagnostics", len(p.Diagnostics)))
	r.logger.Info("run finished",
		"status", string(state),
		"features", len(p.Features),
		"tasks", len(p.Tasks),
		"dependencies", len(p.Dependencies),
		"diagnostics", len(p.Diagnostics),
		"duration", res.Duration)
	return res
}

// runStage executes one stage and validates the plan before the
// transition is published
func (r *run) runStage(ctx context.Context, s stage) error {
	r.setState(s.state)
	ctx, span := telemetry.StartStageSpan(ctx, string(s.state))
	defer span.End()

	start := time.Now()
	r.logger.Info("stage started", "stage", string(s.state))

	if err := s.run(ctx); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := r.plan.Validate(plan.LevelStructure); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	elapsed := time.Since(start)
	r.metrics.ObserveStage(string(s.state), elapsed)
	telemetry.RecordDuration(span, "stage", elapsed)
	r.logger.Info("stage completed", "stage", string(s.state), "duration", elapsed)
	r.publish(s.state, s.state, r.plan)
	return nil
}

// failed ends the run in the Failed state. The partial plan is dropped;
// its diagnostics are kept on the result.
func (r *run) failed(span trace.Span, stage State, err error, start time.Time) *Result {
	res := &Result{
		RunID:       r.id,
		State:       StateFailed,
		FailedStage: stage,
		Err:         err,
		Diagnostics: r.plan.Diagnostics,
		Duration:    time.Since(start),
	}
	r.setState(StateFailed)
	r.publish(stage, StateFailed, nil)
	r.metrics.RecordRun(string(StateFailed), res.Duration, 0)
	r.metrics.RecordError(string(errorCode(err)), "pipeline")
	telemetry.RecordError(span, err)
	r.logger.WithError(err).Error("run failed", "stage", string(stage), "duration", res.Duration)
	return res
}

// cancelled ends the run in the Cancelled state and discards the plan
func (r *run) cancelled(span trace.Span, stage State, cause error, start time.Time) *Result {
	if cause == nil {
		cause = context.Canceled
	}
	err := errors.NewCancelled(string(stage), cause)
	res := &Result{
		RunID:       r.id,
		State:       StateCancelled,
		FailedStage: stage,
		Err:         err,
		Duration:    time.Since(start),
	}
	r.setState(StateCancelled)
	r.publish(stage, StateCancelled, nil)
	r.metrics.RecordRun(string(StateCancelled), res.Duration, 0)
	telemetry.RecordError(span, err)
	r.logger.Warn("run cancelled", "stage", string(stage), "duration", res.Duration)
	return res
}

func errorCode(err error) errors.ErrorCode {
	var pe *errors.PlanError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return "UNKNOWN"
}

func (r *run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *run) currentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// publish sends a snapshot to the observer. p may be nil for terminal
// states without a plan.
func (r *run) publish(stage, state State, p *plan.Plan) {
	if r.obs == nil {
		return
	}
	ev := Event{
		RunID:     r.id,
		Stage:     stage,
		State:     state,
		Timestamp: r.now(),
	}
	if p != nil {
		ev.Snapshot = p.Clone()
		ev.Counts = p.Counts()
	}
	r.obs.publish(ev)
}
