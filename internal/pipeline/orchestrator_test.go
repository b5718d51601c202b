package pipeline

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/capability/capabilitytest"
	"github.com/felixgeelhaar/plansmith/internal/capability/heuristic"
	"github.com/felixgeelhaar/plansmith/internal/depgraph"
	"github.com/felixgeelhaar/plansmith/internal/domain"
	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/metrics"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

func TestLoginScenarioCompletes(t *testing.T) {
	res := runPipeline(t, heuristic.New(), testOptions(loginRequirement))

	require.Equal(t, StateComplete, res.State, res.ErrorMessage())
	require.NoError(t, res.Err)
	p := res.Plan
	require.NotNil(t, p)

	assert.Equal(t, plan.StatusComplete, p.Status)
	require.Len(t, p.Features, 1)
	assert.Equal(t, "F1", p.Features[0].ID)
	require.Len(t, p.Estimates, 1)
	require.NotEmpty(t, p.Tasks)
	assert.NoError(t, p.Validate(plan.LevelExport))
	_, err := depgraph.TopoSort(p.TaskIDs(), p.Dependencies)
	assert.NoError(t, err)
	assert.Len(t, p.ExecutionOrder, len(p.Tasks))
	waved := 0
	for _, wave := range p.ExecutionWaves {
		waved += len(wave)
	}
	assert.Equal(t, len(p.Tasks), waved)
	assert.Greater(t, p.TotalEffortDays, 0.0)
	assert.NotEmpty(t, res.Fingerprint)
	assert.True(t, res.Exportable())

	for _, task := range p.Tasks {
		assert.NotEmpty(t, p.Criteria[task.ID], task.ID)
		prompt, ok := p.Prompts[task.ID]
		require.True(t, ok, task.ID)
		assert.LessOrEqual(t, capability.PromptLen(prompt.Text), DefaultOptions().MaxPromptChars)
		assert.Empty(t, capability.MissingRefs(prompt.Text, prompt.CriteriaRefs))
	}
}

func TestLoginScenarioWithoutOrdering(t *testing.T) {
	stub := newStub()
	stub.TasksFunc = fixedTasks("Phase 1: Login", "Build login form", "Check credentials", "Start session")
	stub.DependenciesFunc = func(context.Context, capability.DependencyRequest) (*capability.DependencyResponse, error) {
		return &capability.DependencyResponse{}, nil
	}

	res := runPipeline(t, stub, testOptions(loginRequirement))
	require.Equal(t, StateComplete, res.State, res.ErrorMessage())
	p := res.Plan

	require.Len(t, p.Estimates, 1)
	assert.Contains(t, []domain.ComplexityLabel{domain.ComplexityLow, domain.ComplexityMedium}, p.Estimates[0].Label)

	require.Len(t, p.Phases, 1)
	assert.True(t, strings.HasPrefix(p.Phases[0].Name, "Phase 1"), p.Phases[0].Name)
	require.Len(t, p.Tasks, 3)
	for _, task := range p.Tasks {
		assert.Equal(t, p.Phases[0].ID, task.PhaseID, task.ID)
	}

	assert.Empty(t, p.Dependencies)
	assert.Len(t, p.ExecutionOrder, 3)
	assert.NoError(t, p.Validate(plan.LevelExport))
}

func TestMultiFeatureIdentifiers(t *testing.T) {
	res := runPipeline(t, heuristic.New(), testOptions(portalRequirement))
	require.Equal(t, StateComplete, res.State, res.ErrorMessage())
	p := res.Plan

	require.Len(t, p.Features, 3)
	for i, f := range p.Features {
		assert.Equal(t, []string{"F1", "F2", "F3"}[i], f.ID)
	}
	assert.Equal(t, []string{"Must comply with GDPR"}, p.Constraints)

	// Task IDs follow feature order, then generated order.
	lastFeature := 0
	for i, task := range p.Tasks {
		assert.Equal(t, domain.TaskID(i+1), task.ID)
		ord := domain.Ordinal(task.FeatureID)
		assert.GreaterOrEqual(t, ord, lastFeature)
		lastFeature = ord
	}
	for i, ph := range p.Phases {
		assert.Equal(t, i+1, ph.Ordinal)
	}
}

func TestFingerprintIsStableAcrossRuns(t *testing.T) {
	first := runPipeline(t, heuristic.New(), testOptions(portalRequirement))
	second := runPipeline(t, heuristic.New(), testOptions(portalRequirement))

	require.Equal(t, StateComplete, first.State)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestCycleScenarioBreaksCycle(t *testing.T) {
	stub := newStub()
	stub.TasksFunc = fixedTasks("Build", "Design schema", "Write handler", "Wire routes")
	var conflicts [][]capability.EdgeRef
	stub.DependenciesFunc = func(_ context.Context, req capability.DependencyRequest) (*capability.DependencyResponse, error) {
		conflicts = append(conflicts, req.Conflicts)
		return &capability.DependencyResponse{Edges: []capability.EdgeRef{
			{From: "T1", To: "T2"},
			{From: "T2", To: "T3"},
			{From: "T3", To: "T1"},
		}}, nil
	}

	opts := testOptions(loginRequirement)
	res := runPipeline(t, stub, opts)

	require.Equal(t, StateComplete, res.State, res.ErrorMessage())
	p := res.Plan
	assert.Empty(t, p.Dependencies)
	assert.Equal(t, opts.MaxStageRetries+1, stub.Calls(capabilitytest.MethodDependencies))

	cycles := diagnosticsOfKind(p, errors.KindGraphCycle)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"T1", "T2", "T3"}, cycles[0].EntityIDs)
	assert.Contains(t, cycles[0].Message, "dropped 3 edges")
	assert.False(t, p.Degraded())

	require.Len(t, conflicts, opts.MaxStageRetries+1)
	assert.Empty(t, conflicts[0])
	assert.Len(t, conflicts[1], 3)
	hints := stub.Hints(capabilitytest.MethodDependencies)
	assert.Empty(t, hints[0])
	assert.True(t, hintsContain(hints[1], "Attempt 1"))
	assert.Len(t, hints[2], 2)
}

func TestCycleResolvedOnRetry(t *testing.T) {
	stub := newStub()
	stub.TasksFunc = fixedTasks("Build", "Design schema", "Write handler")
	stub.DependenciesFunc = func(_ context.Context, req capability.DependencyRequest) (*capability.DependencyResponse, error) {
		if len(req.Conflicts) > 0 {
			return &capability.DependencyResponse{Edges: []capability.EdgeRef{{From: "T1", To: "T2"}}}, nil
		}
		return &capability.DependencyResponse{Edges: []capability.EdgeRef{{From: "T1", To: "T2"}, {From: "T2", To: "T1"}}}, nil
	}

	res := runPipeline(t, stub, testOptions(loginRequirement))
	require.Equal(t, StateComplete, res.State)
	assert.Equal(t, []depgraph.Edge{{From: "T1", To: "T2"}}, res.Plan.Dependencies)
	assert.Empty(t, diagnosticsOfKind(res.Plan, errors.KindGraphCycle))
	assert.Equal(t, 2, stub.Calls(capabilitytest.MethodDependencies))
}

func TestCandidateEdgesAreFiltered(t *testing.T) {
	stub := newStub()
	stub.TasksFunc = fixedTasks("Build", "Design schema", "Write handler")
	stub.DependenciesFunc = func(context.Context, capability.DependencyRequest) (*capability.DependencyResponse, error) {
		return &capability.DependencyResponse{Edges: []capability.EdgeRef{
			{From: "T1", To: "T2"},
			{From: "T1", To: "T2"},
			{From: "T2", To: "T2"},
			{From: "T1", To: "T99"},
		}}, nil
	}

	res := runPipeline(t, stub, testOptions(loginRequirement))
	require.Equal(t, StateComplete, res.State)
	assert.Equal(t, []depgraph.Edge{{From: "T1", To: "T2"}}, res.Plan.Dependencies)

	var warnings int
	for _, d := range res.Diagnostics {
		if d.Severity == domain.SeverityWarning {
			warnings++
		}
	}
	assert.Equal(t, 3, warnings)
	assert.Equal(t, []string{"T1"}, res.Plan.Prompts["T2"].DependencyRefs)
}

func TestBackwardEdgeAcrossPhasesIsKeptWithWarning(t *testing.T) {
	stub := newStub()
	stub.TasksFunc = func(context.Context, capability.TaskRequest) (*capability.TaskResponse, error) {
		return &capability.TaskResponse{Tasks: []capability.GeneratedTask{
			{Title: "Design schema", Phase: "Design"},
			{Title: "Write handler", Phase: "Build"},
		}}, nil
	}
	stub.DependenciesFunc = func(context.Context, capability.DependencyRequest) (*capability.DependencyResponse, error) {
		return &capability.DependencyResponse{Edges: []capability.EdgeRef{{From: "T2", To: "T1"}}}, nil
	}

	res := runPipeline(t, stub, testOptions(loginRequirement))
	require.Equal(t, StateComplete, res.State)
	assert.Equal(t, []depgraph.Edge{{From: "T2", To: "T1"}}, res.Plan.Dependencies)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].Message, "earlier phase")
}

func TestDependencyCallFailureDegrades(t *testing.T) {
	stub := newStub()
	stub.DependenciesFunc = func(context.Context, capability.DependencyRequest) (*capability.DependencyResponse, error) {
		return nil, errors.NewProviderAuthError("openai")
	}

	opts := testOptions(loginRequirement)
	res := runPipeline(t, stub, opts)

	require.Equal(t, StatePartiallyFailed, res.State, res.ErrorMessage())
	assert.Empty(t, res.Plan.Dependencies)
	assert.Equal(t, opts.MaxStageRetries+1, stub.Calls(capabilitytest.MethodDependencies))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, string(errors.KindValidation), res.Diagnostics[0].Kind)
	assert.Contains(t, res.Diagnostics[0].Message, "call retries exhausted (1 calls): capability call failed")
}

func TestExtremeLabelDegradesToHigh(t *testing.T) {
	stub := newStub()
	stub.EstimateFunc = func(context.Context, capability.EstimateRequest) (*capability.EstimateResponse, error) {
		return &capability.EstimateResponse{Label: "Extreme", EffortDays: 12, Risks: []string{"unknown"}}, nil
	}

	opts := testOptions(loginRequirement)
	res := runPipeline(t, stub, opts)

	require.Equal(t, StatePartiallyFailed, res.State)
	assert.Equal(t, opts.MaxStageRetries+1, stub.Calls(capabilitytest.MethodEstimate))

	est := res.Plan.Estimates[0]
	assert.Equal(t, "High", string(est.Label))
	assert.Equal(t, 5.0, est.EffortDays)
	assert.True(t, est.Degraded)
	require.Len(t, est.Risks, 1)
	assert.True(t, strings.HasPrefix(est.Risks[0], "estimate unavailable: "), est.Risks[0])
	assert.Equal(t, plan.StatusPartiallyFailed, res.Plan.Status)
	assert.True(t, res.Exportable())
}

func TestEstimateDetailAndCriterionKindsAreKept(t *testing.T) {
	stub := newStub()
	stub.TasksFunc = fixedTasks("Build", "Write handler")
	stub.EstimateFunc = func(context.Context, capability.EstimateRequest) (*capability.EstimateResponse, error) {
		resp := &capability.EstimateResponse{
			Label: "Medium", EffortDays: 3, MinDays: 2.5, MaxDays: 4,
			Confidence: "Medium", Drivers: []string{" +1.2 data model changes "},
			Risks:       []string{"migration", "email"},
			Mitigations: map[string]string{"migration": "reversible scripts", "other": "ignored"},
		}
		if stub.Calls(capabilitytest.MethodEstimate) == 1 {
			resp.MaxDays = 2.8
		}
		return resp, nil
	}
	stub.CriteriaFunc = func(context.Context, capability.CriteriaRequest) (*capability.CriteriaResponse, error) {
		kind := "Edge Case"
		if stub.Calls(capabilitytest.MethodCriteria) == 1 {
			kind = "smoke"
		}
		return &capability.CriteriaResponse{Criteria: []capability.Scenario{
			{Kind: "happy_path", Given: "a", When: "b", Then: "c"},
			{Kind: kind, Given: "d", When: "e", Then: "f"},
		}}, nil
	}

	res := runPipeline(t, stub, testOptions(loginRequirement))
	require.Equal(t, StateComplete, res.State, res.ErrorMessage())

	assert.Equal(t, 2, stub.Calls(capabilitytest.MethodEstimate))
	assert.True(t, hintsContain(stub.Hints(capabilitytest.MethodEstimate)[1], "must bracket effort_days"))
	est := res.Plan.Estimates[0]
	assert.Equal(t, 2.5, est.MinDays)
	assert.Equal(t, 4.0, est.MaxDays)
	assert.Equal(t, domain.ConfidenceMedium, est.Confidence)
	assert.Equal(t, []string{"+1.2 data model changes"}, est.Drivers)
	assert.Equal(t, map[string]string{"migration": "reversible scripts"}, est.Mitigations)

	assert.Equal(t, 2, stub.Calls(capabilitytest.MethodCriteria))
	assert.True(t, hintsContain(stub.Hints(capabilitytest.MethodCriteria)[1], "invalid criterion kind"))
	list := res.Plan.Criteria["T1"]
	require.Len(t, list, 2)
	assert.Equal(t, domain.CriterionHappyPath, list[0].Kind)
	assert.Equal(t, domain.CriterionEdgeCase, list[1].Kind)
	assert.NoError(t, res.Plan.Validate(plan.LevelExport))
}

func TestExportPartialDisabled(t *testing.T) {
	stub := newStub()
	stub.EstimateFunc = func(context.Context, capability.EstimateRequest) (*capability.EstimateResponse, error) {
		return &capability.EstimateResponse{Label: "Extreme", EffortDays: 1}, nil
	}
	opts := testOptions(loginRequirement)
	opts.ExportPartial = false

	res := runPipeline(t, stub, opts)
	require.Equal(t, StatePartiallyFailed, res.State)
	assert.False(t, res.Exportable())

	var sb strings.Builder
	err := res.Export(&sb, plan.FormatJSON)
	assert.True(t, errors.HasCode(err, errors.ErrCodeExportNotAllowed))
	assert.Empty(t, sb.String())
}

func TestRetryBound(t *testing.T) {
	for _, retries := range []int{0, 1, 3} {
		t.Run(strconv.Itoa(retries), func(t *testing.T) {
			stub := newStub()
			stub.TasksFunc = fixedTasks("Build", "Write handler")
			stub.CriteriaFunc = func(context.Context, capability.CriteriaRequest) (*capability.CriteriaResponse, error) {
				return &capability.CriteriaResponse{Criteria: []capability.Scenario{{Given: "x", When: " ", Then: "y"}}}, nil
			}

			opts := testOptions(loginRequirement)
			opts.MaxStageRetries = retries
			res := runPipeline(t, stub, opts)

			require.Equal(t, StatePartiallyFailed, res.State)
			assert.Equal(t, retries+1, stub.Calls(capabilitytest.MethodCriteria))

			hints := stub.Hints(capabilitytest.MethodCriteria)
			for i, h := range hints {
				assert.Len(t, h, i, "hints grow by one per attempt")
			}
			list := res.Plan.Criteria["T1"]
			require.Len(t, list, 1)
			assert.Equal(t, "T1-AC1", list[0].ID)
			assert.Contains(t, list[0].When, "Write handler")
		})
	}
}

func TestEmptyInputFailsBeforeAnyCall(t *testing.T) {
	stub := newStub()
	res := runPipeline(t, stub, testOptions("  \n\t"))

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateParsing, res.FailedStage)
	assert.Equal(t, errors.KindValidation, errors.KindOf(res.Err))
	assert.Nil(t, res.Plan)
	assert.Zero(t, stub.Calls(capabilitytest.MethodParse))
}

func TestNoRequirementsIsNotRetried(t *testing.T) {
	stub := newStub()
	stub.ParseFunc = func(context.Context, capability.ParseRequest) (*capability.ParseResponse, error) {
		return &capability.ParseResponse{}, nil
	}

	res := runPipeline(t, stub, testOptions("lorem ipsum"))
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateParsing, res.FailedStage)
	assert.True(t, errors.HasCode(res.Err, errors.ErrCodeNoRequirements))
	assert.Equal(t, 1, stub.Calls(capabilitytest.MethodParse))
}

func TestParseExhaustionIsFatal(t *testing.T) {
	stub := newStub()
	stub.ParseFunc = func(context.Context, capability.ParseRequest) (*capability.ParseResponse, error) {
		return &capability.ParseResponse{Features: []capability.ParsedFeature{{Name: "Login"}, {Name: "login "}}}, nil
	}

	opts := testOptions(loginRequirement)
	res := runPipeline(t, stub, opts)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateParsing, res.FailedStage)
	assert.Equal(t, errors.KindFatalStage, errors.KindOf(res.Err))
	assert.Contains(t, res.ErrorMessage(), "share the name")
	assert.Equal(t, opts.MaxStageRetries+1, stub.Calls(capabilitytest.MethodParse))
	assert.Zero(t, stub.Calls(capabilitytest.MethodEstimate))
}

func TestTaskGenExhaustionIsFatal(t *testing.T) {
	stub := newStub()
	stub.TasksFunc = func(context.Context, capability.TaskRequest) (*capability.TaskResponse, error) {
		return &capability.TaskResponse{}, nil
	}

	opts := testOptions(loginRequirement)
	res := runPipeline(t, stub, opts)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateTaskGen, res.FailedStage)
	assert.True(t, errors.HasCode(res.Err, errors.ErrCodeFatalStage))
	assert.Nil(t, res.Plan)
	assert.False(t, res.Exportable())
	assert.Zero(t, stub.Calls(capabilitytest.MethodDependencies))
}

func TestDuplicateTitlesAcrossFeaturesAreDisambiguated(t *testing.T) {
	stub := newStub()
	stub.ParseFunc = func(context.Context, capability.ParseRequest) (*capability.ParseResponse, error) {
		return &capability.ParseResponse{Features: []capability.ParsedFeature{{Name: "Login"}, {Name: "Signup"}}}, nil
	}
	stub.TasksFunc = func(_ context.Context, req capability.TaskRequest) (*capability.TaskResponse, error) {
		title := "Set up schema"
		if len(req.TakenTitles["Build"]) > 0 {
			title += " for " + req.Feature.Name
		}
		return &capability.TaskResponse{Tasks: []capability.GeneratedTask{{Title: title, Phase: "Build"}}}, nil
	}

	res := runPipeline(t, stub, testOptions("- Login\n- Signup"))
	require.Equal(t, StateComplete, res.State, res.ErrorMessage())

	require.Len(t, res.Plan.Tasks, 2)
	assert.Equal(t, "Set up schema", res.Plan.Tasks[0].Title)
	assert.Equal(t, "Set up schema for Signup", res.Plan.Tasks[1].Title)
	assert.Equal(t, "F2", res.Plan.Tasks[1].FeatureID)
	assert.Len(t, res.Plan.Phases, 1)
	assert.Equal(t, 3, stub.Calls(capabilitytest.MethodTasks))
}

func TestPromptCompactionRetry(t *testing.T) {
	opts := testOptions(loginRequirement)
	stub := newStub()
	stub.TasksFunc = fixedTasks("Build", "Write handler")
	var limits []int
	stub.PromptFunc = func(_ context.Context, req capability.PromptRequest) (*capability.PromptResponse, error) {
		limits = append(limits, req.MaxChars)
		text := "Implement it. Covers T1-AC1."
		if req.MaxChars == opts.MaxPromptChars {
			text += strings.Repeat(" padding", opts.MaxPromptChars)
		}
		return &capability.PromptResponse{Text: text, CriteriaRefs: []string{"T1-AC1"}}, nil
	}
	stub.CriteriaFunc = func(context.Context, capability.CriteriaRequest) (*capability.CriteriaResponse, error) {
		return &capability.CriteriaResponse{Criteria: []capability.Scenario{{Given: "a", When: "b", Then: "c"}}}, nil
	}

	res := runPipeline(t, stub, opts)
	require.Equal(t, StateComplete, res.State, res.ErrorMessage())
	assert.Equal(t, []int{opts.MaxPromptChars, opts.MaxPromptChars * 3 / 4}, limits)
	assert.Equal(t, "Implement it. Covers T1-AC1.", res.Plan.Prompts["T1"].Text)
}

func TestPromptStillTooLongFallsBack(t *testing.T) {
	opts := testOptions(loginRequirement)
	opts.MaxStageRetries = 4
	stub := newStub()
	stub.TasksFunc = fixedTasks("Build", "Write handler")
	stub.PromptFunc = func(_ context.Context, req capability.PromptRequest) (*capability.PromptResponse, error) {
		ids := make([]string, len(req.Criteria))
		for i, c := range req.Criteria {
			ids[i] = c.ID
		}
		text := strings.Join(ids, " ") + strings.Repeat(" padding", opts.MaxPromptChars)
		return &capability.PromptResponse{Text: text, CriteriaRefs: ids}, nil
	}

	res := runPipeline(t, stub, opts)
	require.Equal(t, StatePartiallyFailed, res.State)
	assert.Equal(t, 2, stub.Calls(capabilitytest.MethodPrompt))

	prompt := res.Plan.Prompts["T1"]
	assert.True(t, prompt.Degraded)
	assert.LessOrEqual(t, capability.PromptLen(prompt.Text), opts.MaxPromptChars)
	assert.Empty(t, capability.MissingRefs(prompt.Text, prompt.CriteriaRefs))
	assert.Equal(t, res.Plan.Criteria["T1"][0].ID, prompt.CriteriaRefs[0])
}

func TestMultiBytePromptWithinLimit(t *testing.T) {
	opts := testOptions(loginRequirement)
	opts.MaxPromptChars = 200
	stub := newStub()
	stub.TasksFunc = fixedTasks("Build", "Write handler")
	var text string
	stub.PromptFunc = func(_ context.Context, req capability.PromptRequest) (*capability.PromptResponse, error) {
		ids := make([]string, len(req.Criteria))
		for i, c := range req.Criteria {
			ids[i] = c.ID
		}
		text = strings.Repeat("界", 100) + " " + strings.Join(ids, " ")
		return &capability.PromptResponse{Text: text, CriteriaRefs: ids}, nil
	}

	res := runPipeline(t, stub, opts)
	require.Equal(t, StateComplete, res.State, res.ErrorMessage())
	assert.Equal(t, 1, stub.Calls(capabilitytest.MethodPrompt))

	prompt := res.Plan.Prompts["T1"]
	assert.False(t, prompt.Degraded)
	assert.Equal(t, text, prompt.Text)
	assert.Greater(t, len(prompt.Text), opts.MaxPromptChars)
	assert.LessOrEqual(t, capability.PromptLen(prompt.Text), opts.MaxPromptChars)
}

func TestPromptMustReferenceEveryCriterion(t *testing.T) {
	stub := newStub()
	stub.TasksFunc = fixedTasks("Build", "Write handler")
	stub.PromptFunc = func(context.Context, capability.PromptRequest) (*capability.PromptResponse, error) {
		return &capability.PromptResponse{Text: "Just build it.", CriteriaRefs: nil}, nil
	}

	opts := testOptions(loginRequirement)
	res := runPipeline(t, stub, opts)
	require.Equal(t, StatePartiallyFailed, res.State)
	assert.Equal(t, opts.MaxStageRetries+1, stub.Calls(capabilitytest.MethodPrompt))
	hints := stub.Hints(capabilitytest.MethodPrompt)
	assert.True(t, hintsContain(hints[1], "does not mention"))
}

func TestInvalidOptions(t *testing.T) {
	opts := testOptions(loginRequirement)
	opts.Concurrency = 0
	opts.MaxTasksPerFeature = 0

	res, err := NewOrchestrator(heuristic.New()).Run(context.Background(), opts)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidOptions))
	assert.Contains(t, err.Error(), "concurrency")
	assert.Contains(t, err.Error(), "max_tasks_per_feature")
}

func TestRunRecordsMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	o := NewOrchestrator(heuristic.New())
	o.SetMetrics(m)

	res, err := o.Run(context.Background(), testOptions(loginRequirement))
	require.NoError(t, err)
	require.Equal(t, StateComplete, res.State)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("Complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CapabilityCalls.WithLabelValues("Parsing", metrics.ResultOK)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DegradedEntities.WithLabelValues("Estimating")))
}
