package llm

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/provider"
)

// fakeClient answers every request with a fixed content and records requests
type fakeClient struct {
	mu       sync.Mutex
	content  string
	err      error
	requests []*provider.GenerateRequest
}

func (f *fakeClient) Generate(_ context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &provider.GenerateResponse{Content: f.content, Provider: "fake"}, nil
}

func (f *fakeClient) GetInfo() *provider.ProviderInfo {
	return &provider.ProviderInfo{Name: "fake", Type: provider.ProviderTypeOpenAI}
}
func (f *fakeClient) IsAvailable() bool              { return true }
func (f *fakeClient) Health(_ context.Context) error { return nil }
func (f *fakeClient) Close() error                   { return nil }

func (f *fakeClient) last() *provider.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestBackend_Parse(t *testing.T) {
	client := &fakeClient{content: "```json\n" + `{
  "features": [{"name": "Login", "description": "Email and password login"}],
  "constraints": ["GDPR"],
  "goals": ["Sign in under 2s"],
  "open_questions": ["Which identity provider?"]
}` + "\n```"}
	b := New(client, WithModel("gpt-4o"), WithMaxTokens(1000))

	resp, err := b.Parse(context.Background(), capability.ParseRequest{Text: "Users log in with email"})
	require.NoError(t, err)
	require.Len(t, resp.Features, 1)
	assert.Equal(t, "Login", resp.Features[0].Name)
	assert.Equal(t, []string{"GDPR"}, resp.Constraints)
	assert.Equal(t, []string{"Which identity provider?"}, resp.OpenQuestions)

	req := client.last()
	assert.Contains(t, req.Prompt, "Users log in with email")
	assert.Equal(t, systemPrompt, req.SystemPrompt)
	assert.Zero(t, req.Temperature)
	assert.True(t, req.JSON)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.Equal(t, "parse", req.Metadata["stage"])
	assert.Equal(t, "llm/fake", b.Name())
}

func TestBackend_HintsAppended(t *testing.T) {
	client := &fakeClient{content: `{"label":"Low","effort_days":1,"risks":[]}`}
	b := New(client)

	_, err := b.Estimate(context.Background(), capability.EstimateRequest{
		Feature: capability.FeatureRef{ID: "F1", Name: "Login"},
		Others:  []capability.FeatureRef{{ID: "F2", Name: "Profile"}},
		Hints:   capability.Hints{"attempt 2: label \"Extreme\" is not one of Low, Medium, High"},
	})
	require.NoError(t, err)

	prompt := client.last().Prompt
	assert.Contains(t, prompt, "Profile")
	assert.Contains(t, prompt, "previous answers were rejected")
	assert.Contains(t, prompt, `label "Extreme" is not one of`)
}

func TestBackend_EstimateCarriesRangeAndMitigations(t *testing.T) {
	client := &fakeClient{content: `{"label":"Medium","effort_days":3,"min_days":2.5,"max_days":4,` +
		`"confidence":"medium","drivers":["+1.2 data model changes"],` +
		`"risks":["migration"],"mitigations":{"migration":"reversible scripts"}}`}

	resp, err := New(client).Estimate(context.Background(), capability.EstimateRequest{
		Feature: capability.FeatureRef{ID: "F1", Name: "Reports"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2.5, resp.MinDays)
	assert.Equal(t, 4.0, resp.MaxDays)
	assert.Equal(t, "medium", resp.Confidence)
	assert.Equal(t, []string{"+1.2 data model changes"}, resp.Drivers)
	assert.Equal(t, "reversible scripts", resp.Mitigations["migration"])
	assert.Contains(t, client.last().Prompt, "min_days <= effort_days <= max_days")
}

func TestBackend_StagePrompts(t *testing.T) {
	ctx := context.Background()
	task := capability.TaskRef{ID: "T1", FeatureID: "F1", Title: "Build login form", Phase: "Build", PhaseOrdinal: 1}
	feature := capability.FeatureRef{ID: "F1", Name: "Login"}

	t.Run("tasks", func(t *testing.T) {
		client := &fakeClient{content: `{"tasks":[{"title":"Build login form","phase":"Build"}]}`}
		resp, err := New(client).Tasks(ctx, capability.TaskRequest{
			Feature:     feature,
			Label:       "Low",
			EffortDays:  1,
			MinTasks:    1,
			MaxTasks:    5,
			TakenTitles: map[string][]string{"Build": {"Write tests"}, "Alpha": {"Plan"}},
		})
		require.NoError(t, err)
		require.Len(t, resp.Tasks, 1)

		prompt := client.last().Prompt
		assert.Contains(t, prompt, "between 1 and 5 tasks")
		assert.Less(t, strings.Index(prompt, "- Alpha: Plan"), strings.Index(prompt, "- Build: Write tests"))
	})

	t.Run("dependencies", func(t *testing.T) {
		client := &fakeClient{content: `{"edges":[{"from":"T1","to":"T2"}]}`}
		resp, err := New(client).Dependencies(ctx, capability.DependencyRequest{
			Tasks:     []capability.TaskRef{task},
			Conflicts: []capability.EdgeRef{{From: "T2", To: "T1"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []capability.EdgeRef{{From: "T1", To: "T2"}}, resp.Edges)
		assert.Contains(t, client.last().Prompt, "formed a cycle")
	})

	t.Run("criteria", func(t *testing.T) {
		client := &fakeClient{content: `{"criteria":[{"kind":"error_state","given":"a","when":"b","then":"c"}]}`}
		resp, err := New(client).Criteria(ctx, capability.CriteriaRequest{Task: task, Feature: feature, MaxCriteria: 4})
		require.NoError(t, err)
		assert.Equal(t, "c", resp.Criteria[0].Then)
		assert.Equal(t, "error_state", resp.Criteria[0].Kind)
		assert.Contains(t, client.last().Prompt, "between 1 and 4 criteria")
	})

	t.Run("prompt", func(t *testing.T) {
		client := &fakeClient{content: `{"text":"Implement T1-AC1","criteria_refs":["T1-AC1"]}`}
		resp, err := New(client).Prompt(ctx, capability.PromptRequest{
			Task:     task,
			Feature:  feature,
			Criteria: []capability.CriterionRef{{ID: "T1-AC1", Scenario: capability.Scenario{Given: "a", When: "b", Then: "c"}}},
			MaxChars: 500,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"T1-AC1"}, resp.CriteriaRefs)
		assert.Contains(t, client.last().Prompt, "at most 500 characters")
	})
}

func TestBackend_Errors(t *testing.T) {
	t.Run("provider error passes through", func(t *testing.T) {
		client := &fakeClient{err: errors.NewProviderAuthError("fake")}
		_, err := New(client).Parse(context.Background(), capability.ParseRequest{Text: "x"})
		assert.True(t, provider.Permanent(err))
	})

	t.Run("non json answer is a validation error", func(t *testing.T) {
		client := &fakeClient{content: "I would rather not."}
		_, err := New(client).Criteria(context.Background(), capability.CriteriaRequest{})
		assert.Equal(t, errors.KindValidation, errors.KindOf(err))
	})
}
