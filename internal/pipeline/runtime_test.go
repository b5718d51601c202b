package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/capability/capabilitytest"
	"github.com/felixgeelhaar/plansmith/internal/capability/heuristic"
	"github.com/felixgeelhaar/plansmith/internal/depgraph"
	"github.com/felixgeelhaar/plansmith/internal/domain"
	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

func TestCancellationDiscardsPlan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stub := newStub()
	stub.EstimateFunc = func(ctx context.Context, _ capability.EstimateRequest) (*capability.EstimateResponse, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}

	res, err := NewOrchestrator(stub).Run(ctx, testOptions(loginRequirement))
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, StateEstimating, res.FailedStage)
	assert.Equal(t, errors.KindCancelled, errors.KindOf(res.Err))
	assert.Nil(t, res.Plan)
	assert.False(t, res.Exportable())
	assert.Equal(t, 1, stub.Calls(capabilitytest.MethodEstimate))
	assert.Zero(t, stub.Calls(capabilitytest.MethodTasks))
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := newStub()
	res, err := NewOrchestrator(stub).Run(ctx, testOptions(loginRequirement))
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, StateParsing, res.FailedStage)
	assert.Zero(t, stub.Calls(capabilitytest.MethodParse))
}

func TestCallTimeoutConsumesStageAttempt(t *testing.T) {
	stub := newStub()
	stub.EstimateFunc = func(ctx context.Context, _ capability.EstimateRequest) (*capability.EstimateResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	opts := testOptions(loginRequirement)
	opts.CallTimeout = 20 * time.Millisecond
	res := runPipeline(t, stub, opts)

	require.Equal(t, StatePartiallyFailed, res.State, res.ErrorMessage())
	assert.Equal(t, opts.MaxStageRetries+1, stub.Calls(capabilitytest.MethodEstimate))
	require.NotEmpty(t, res.Diagnostics)
	assert.Contains(t, res.Diagnostics[0].Message, "timed out")
	assert.Equal(t, string(errors.KindValidation), res.Diagnostics[0].Kind)
}

func TestTransientFailuresAreRetriedWithinOneAttempt(t *testing.T) {
	stub := newStub()
	var failures atomic.Int32
	stub.EstimateFunc = func(ctx context.Context, req capability.EstimateRequest) (*capability.EstimateResponse, error) {
		if failures.Add(1) <= 2 {
			return nil, errors.New(errors.ErrCodeProviderAPI, "upstream unavailable")
		}
		return heuristic.New().Estimate(ctx, req)
	}

	res := runPipeline(t, stub, testOptions(loginRequirement))
	require.Equal(t, StateComplete, res.State, res.ErrorMessage())
	assert.Equal(t, 3, stub.Calls(capabilitytest.MethodEstimate))
	for _, h := range stub.Hints(capabilitytest.MethodEstimate) {
		assert.Empty(t, h, "backoff retries do not add repair hints")
	}
}

func TestExhaustedCallRetriesEscalate(t *testing.T) {
	stub := newStub()
	stub.EstimateFunc = func(context.Context, capability.EstimateRequest) (*capability.EstimateResponse, error) {
		return nil, errors.New(errors.ErrCodeProviderAPI, "upstream unavailable")
	}

	opts := testOptions(loginRequirement)
	opts.MaxStageRetries = 1
	opts.MaxCallRetries = 2
	res := runPipeline(t, stub, opts)

	require.Equal(t, StatePartiallyFailed, res.State)
	assert.Equal(t, (opts.MaxStageRetries+1)*(opts.MaxCallRetries+1), stub.Calls(capabilitytest.MethodEstimate))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, string(errors.KindValidation), res.Diagnostics[0].Kind)
	assert.Contains(t, res.Diagnostics[0].Message, "call retries exhausted (3 calls): capability call failed: upstream unavailable")

	hints := stub.Hints(capabilitytest.MethodEstimate)
	assert.True(t, hintsContain(hints[len(hints)-1], "call retries exhausted"))
}

func TestMalformedOutputIsNotBackedOff(t *testing.T) {
	stub := newStub()
	stub.EstimateFunc = func(context.Context, capability.EstimateRequest) (*capability.EstimateResponse, error) {
		return nil, errors.NewValidation("", "", "no JSON object in response")
	}

	opts := testOptions(loginRequirement)
	res := runPipeline(t, stub, opts)
	require.Equal(t, StatePartiallyFailed, res.State)
	assert.Equal(t, opts.MaxStageRetries+1, stub.Calls(capabilitytest.MethodEstimate))
}

func TestStreamingEventsFollowStageOrder(t *testing.T) {
	opts := testOptions(loginRequirement)
	opts.Streaming = true
	opts.ObserverBuffer = 64

	exec, err := NewOrchestrator(heuristic.New()).Start(context.Background(), opts)
	require.NoError(t, err)

	var states []State
	for ev := range exec.Events() {
		states = append(states, ev.State)
		require.NotNil(t, ev.Snapshot)
		assert.Equal(t, exec.RunID, ev.RunID)
	}
	res := exec.Wait()

	want := append(Stages(), StateComplete)
	assert.Equal(t, want, states)
	assert.Equal(t, StateComplete, res.State)
	assert.Equal(t, StateComplete, exec.State())
	assert.Zero(t, exec.Dropped())
}

func TestObserverNeverBlocksTheRun(t *testing.T) {
	opts := testOptions(loginRequirement)
	opts.Streaming = true
	opts.ObserverBuffer = 1

	exec, err := NewOrchestrator(heuristic.New()).Start(context.Background(), opts)
	require.NoError(t, err)

	done := make(chan *Result, 1)
	go func() { done <- exec.Wait() }()

	var res *Result
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run blocked on an unread observer channel")
	}
	require.Equal(t, StateComplete, res.State)

	var events []Event
	for ev := range exec.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	assert.Equal(t, StateComplete, events[0].State, "the terminal event survives")
	assert.Equal(t, int64(len(Stages())), exec.Dropped())
}

func TestEventsClosedWhenNotStreaming(t *testing.T) {
	exec, err := NewOrchestrator(heuristic.New()).Start(context.Background(), testOptions(loginRequirement))
	require.NoError(t, err)

	_, open := <-exec.Events()
	assert.False(t, open)
	assert.Equal(t, StateComplete, exec.Wait().State)
}

func TestSnapshotsAreDeepCopies(t *testing.T) {
	opts := testOptions(loginRequirement)
	opts.Streaming = true
	opts.ObserverBuffer = 64

	exec, err := NewOrchestrator(heuristic.New()).Start(context.Background(), opts)
	require.NoError(t, err)

	var parsed *plan.Plan
	for ev := range exec.Events() {
		if ev.State == StateParsing {
			parsed = ev.Snapshot
		}
		if ev.Snapshot != nil && len(ev.Snapshot.Features) > 0 {
			ev.Snapshot.Features[0].Name = "mutated"
		}
	}
	res := exec.Wait()

	require.NotNil(t, parsed)
	assert.Empty(t, parsed.Tasks, "snapshot taken after parsing has no tasks yet")
	assert.NotEqual(t, "mutated", res.Plan.Features[0].Name)
}

func TestFailedRunPublishesTerminalEvent(t *testing.T) {
	stub := newStub()
	stub.TasksFunc = func(context.Context, capability.TaskRequest) (*capability.TaskResponse, error) {
		return &capability.TaskResponse{}, nil
	}
	opts := testOptions(loginRequirement)
	opts.Streaming = true

	exec, err := NewOrchestrator(stub).Start(context.Background(), opts)
	require.NoError(t, err)

	var last Event
	for ev := range exec.Events() {
		last = ev
	}
	assert.Equal(t, StateFailed, last.State)
	assert.Equal(t, StateTaskGen, last.Stage)
	assert.Nil(t, last.Snapshot)
	assert.Equal(t, StateFailed, exec.Wait().State)
}

func TestRateLimiterGatesCalls(t *testing.T) {
	opts := testOptions(loginRequirement)
	opts.RequestsPerSecond = 1000

	res := runPipeline(t, heuristic.New(), opts)
	assert.Equal(t, StateComplete, res.State)
}

// inflight tracks concurrent calls and the highest concurrency seen
type inflight struct {
	cur, peak atomic.Int32
}

func (f *inflight) enter() {
	n := f.cur.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (f *inflight) leave() { f.cur.Add(-1) }

func TestFanOutKeepsEntityOrderAndBound(t *testing.T) {
	const features = 5
	opts := testOptions("- Login\n- Signup\n- Billing\n- Reports\n- Search")
	opts.Concurrency = 3

	var calls inflight
	// Later entities finish first.
	pause := func(ordinal, total int) {
		time.Sleep(time.Duration(total-ordinal+1) * 5 * time.Millisecond)
	}

	stub := newStub()
	stub.EstimateFunc = func(_ context.Context, req capability.EstimateRequest) (*capability.EstimateResponse, error) {
		calls.enter()
		defer calls.leave()
		n := domain.Ordinal(req.Feature.ID)
		pause(n, features)
		return &capability.EstimateResponse{Label: "Low", EffortDays: float64(n)}, nil
	}
	stub.TasksFunc = func(_ context.Context, req capability.TaskRequest) (*capability.TaskResponse, error) {
		return &capability.TaskResponse{Tasks: []capability.GeneratedTask{
			{Title: "Model " + req.Feature.Name, Phase: "Build"},
			{Title: "Expose " + req.Feature.Name, Phase: "Build"},
		}}, nil
	}
	stub.CriteriaFunc = func(_ context.Context, req capability.CriteriaRequest) (*capability.CriteriaResponse, error) {
		calls.enter()
		defer calls.leave()
		pause(domain.Ordinal(req.Task.ID), 2*features)
		return &capability.CriteriaResponse{Criteria: []capability.Scenario{{
			Given: "a ready system", When: "work on " + req.Task.ID + " lands", Then: "outcome for " + req.Task.ID,
		}}}, nil
	}

	res := runPipeline(t, stub, opts)
	require.Equal(t, StateComplete, res.State, res.ErrorMessage())
	p := res.Plan

	require.Len(t, p.Estimates, features)
	for i, e := range p.Estimates {
		assert.Equal(t, domain.FeatureID(i+1), e.FeatureID)
		assert.InDelta(t, float64(i+1), e.EffortDays, 1e-9)
	}

	require.Len(t, p.Tasks, 2*features)
	for i, task := range p.Tasks {
		assert.Equal(t, domain.TaskID(i+1), task.ID)
		list := p.Criteria[task.ID]
		require.Len(t, list, 1, task.ID)
		assert.Equal(t, domain.CriterionID(task.ID, 1), list[0].ID)
		assert.Equal(t, "outcome for "+task.ID, list[0].Then)
	}

	peak := int(calls.peak.Load())
	assert.LessOrEqual(t, peak, opts.Concurrency)
	assert.Greater(t, peak, 1)
}

func TestGeneratedPlansAreAlwaysAcyclic(t *testing.T) {
	ids := []string{"T1", "T2", "T3", "T4", "T9"}
	rapid.Check(t, func(rt *rapid.T) {
		edges := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) capability.EdgeRef {
			return capability.EdgeRef{
				From: rapid.SampledFrom(ids).Draw(t, "from"),
				To:   rapid.SampledFrom(ids).Draw(t, "to"),
			}
		}), 0, 12).Draw(rt, "edges")

		stub := newStub()
		stub.TasksFunc = fixedTasks("Build", "Design schema", "Write handler", "Wire routes", "Ship it")
		stub.DependenciesFunc = func(context.Context, capability.DependencyRequest) (*capability.DependencyResponse, error) {
			return &capability.DependencyResponse{Edges: edges}, nil
		}

		opts := testOptions(loginRequirement)
		opts.MaxStageRetries = 1
		res, err := NewOrchestrator(stub).Run(context.Background(), opts)
		if err != nil {
			rt.Fatalf("run: %v", err)
		}
		if res.State != StateComplete {
			rt.Fatalf("state = %s: %v", res.State, res.Err)
		}
		p := res.Plan
		if _, err := depgraph.TopoSort(p.TaskIDs(), p.Dependencies); err != nil {
			rt.Fatalf("plan has a cycle: %v", err)
		}
		if err := p.Validate(plan.LevelExport); err != nil {
			rt.Fatalf("invalid plan: %v", err)
		}
	})
}
