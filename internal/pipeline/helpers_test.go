package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/capability/capabilitytest"
	"github.com/felixgeelhaar/plansmith/internal/capability/heuristic"
	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/plan"
)

const loginRequirement = "Add login page with email/password"

const portalRequirement = `# Team portal

## Features
- User login: email and password sign in
- Report upload: users upload PDF reports after User login
- Admin dashboard

## Constraints
- Must comply with GDPR

## Success criteria
- 90% of users sign in without help
`

func newStub() *capabilitytest.Stub {
	return &capabilitytest.Stub{Base: heuristic.New()}
}

// testOptions returns defaults with backoff and timeouts short enough for
// unit tests
func testOptions(input string) Options {
	opts := DefaultOptions()
	opts.Input = input
	opts.CallBackoff = time.Millisecond
	opts.CallTimeout = 5 * time.Second
	return opts
}

func runPipeline(t *testing.T, backend capability.Capability, opts Options) *Result {
	t.Helper()
	res, err := NewOrchestrator(backend).Run(context.Background(), opts)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// fixedTasks returns a tasks override that yields the given titles in one
// phase
func fixedTasks(phase string, titles ...string) func(context.Context, capability.TaskRequest) (*capability.TaskResponse, error) {
	return func(_ context.Context, _ capability.TaskRequest) (*capability.TaskResponse, error) {
		out := &capability.TaskResponse{}
		for _, title := range titles {
			out.Tasks = append(out.Tasks, capability.GeneratedTask{Title: title, Phase: phase})
		}
		return out, nil
	}
}

func diagnosticsOfKind(p *plan.Plan, kind errors.Kind) []plan.Diagnostic {
	var out []plan.Diagnostic
	for _, d := range p.Diagnostics {
		if d.Kind == string(kind) {
			out = append(out, d)
		}
	}
	return out
}

func hintsContain(hints capability.Hints, substr string) bool {
	for _, h := range hints {
		if strings.Contains(h, substr) {
			return true
		}
	}
	return false
}
