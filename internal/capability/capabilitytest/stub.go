// Package capabilitytest provides a scriptable capability for tests.
package capabilitytest

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/plansmith/internal/capability"
)

// Stub delegates every call to Base unless the matching override is set,
// and counts calls per method. It is safe for concurrent use.
type Stub struct {
	Base capability.Capability

	ParseFunc        func(ctx context.Context, req capability.ParseRequest) (*capability.ParseResponse, error)
	EstimateFunc     func(ctx context.Context, req capability.EstimateRequest) (*capability.EstimateResponse, error)
	TasksFunc        func(ctx context.Context, req capability.TaskRequest) (*capability.TaskResponse, error)
	DependenciesFunc func(ctx context.Context, req capability.DependencyRequest) (*capability.DependencyResponse, error)
	CriteriaFunc     func(ctx context.Context, req capability.CriteriaRequest) (*capability.CriteriaResponse, error)
	PromptFunc       func(ctx context.Context, req capability.PromptRequest) (*capability.PromptResponse, error)

	mu    sync.Mutex
	calls map[string]int
	hints map[string][]capability.Hints
}

var _ capability.Capability = (*Stub)(nil)

// Method names used by Calls and Hints
const (
	MethodParse        = "parse"
	MethodEstimate     = "estimate"
	MethodTasks        = "tasks"
	MethodDependencies = "dependencies"
	MethodCriteria     = "criteria"
	MethodPrompt       = "prompt"
)

func (s *Stub) record(method string, hints capability.Hints) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
		s.hints = make(map[string][]capability.Hints)
	}
	s.calls[method]++
	s.hints[method] = append(s.hints[method], append(capability.Hints(nil), hints...))
}

// Calls returns how often a method was invoked
func (s *Stub) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Hints returns the hints received by each call of a method, in call order
func (s *Stub) Hints(method string) []capability.Hints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capability.Hints(nil), s.hints[method]...)
}

func (s *Stub) Parse(ctx context.Context, req capability.ParseRequest) (*capability.ParseResponse, error) {
	s.record(MethodParse, req.Hints)
	if s.ParseFunc != nil {
		return s.ParseFunc(ctx, req)
	}
	return s.Base.Parse(ctx, req)
}

func (s *Stub) Estimate(ctx context.Context, req capability.EstimateRequest) (*capability.EstimateResponse, error) {
	s.record(MethodEstimate, req.Hints)
	if s.EstimateFunc != nil {
		return s.EstimateFunc(ctx, req)
	}
	return s.Base.Estimate(ctx, req)
}

func (s *Stub) Tasks(ctx context.Context, req capability.TaskRequest) (*capability.TaskResponse, error) {
	s.record(MethodTasks, req.Hints)
	if s.TasksFunc != nil {
		return s.TasksFunc(ctx, req)
	}
	return s.Base.Tasks(ctx, req)
}

func (s *Stub) Dependencies(ctx context.Context, req capability.DependencyRequest) (*capability.DependencyResponse, error) {
	s.record(MethodDependencies, req.Hints)
	if s.DependenciesFunc != nil {
		return s.DependenciesFunc(ctx, req)
	}
	return s.Base.Dependencies(ctx, req)
}

func (s *Stub) Criteria(ctx context.Context, req capability.CriteriaRequest) (*capability.CriteriaResponse, error) {
	s.record(MethodCriteria, req.Hints)
	if s.CriteriaFunc != nil {
		return s.CriteriaFunc(ctx, req)
	}
	return s.Base.Criteria(ctx, req)
}

func (s *Stub) Prompt(ctx context.Context, req capability.PromptRequest) (*capability.PromptResponse, error) {
	s.record(MethodPrompt, req.Hints)
	if s.PromptFunc != nil {
		return s.PromptFunc(ctx, req)
	}
	return s.Base.Prompt(ctx, req)
}
