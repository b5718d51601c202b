// Package llm implements the capability contract on top of a language model
// provider. Each stage sends one JSON-only prompt at temperature zero and
// decodes the answer; validation stays with the pipeline.
package llm

import (
	"context"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/provider"
)

const defaultMaxTokens = 4000

// Backend sends stage requests to a provider
type Backend struct {
	client    provider.ProviderClient
	model     string
	maxTokens int
}

// Option configures a Backend
type Option func(*Backend)

// WithModel overrides the provider's default model
func WithModel(model string) Option {
	return func(b *Backend) { b.model = model }
}

// WithMaxTokens bounds the response length of every call
func WithMaxTokens(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.maxTokens = n
		}
	}
}

// New creates a backend for client
func New(client provider.ProviderClient, opts ...Option) *Backend {
	b := &Backend{client: client, maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name identifies the backend in logs
func (b *Backend) Name() string {
	return "llm/" + b.client.GetInfo().Name
}

func (b *Backend) generate(ctx context.Context, stage, prompt string, out any) error {
	resp, err := b.client.Generate(ctx, &provider.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		MaxTokens:    b.maxTokens,
		Temperature:  0,
		JSON:         true,
		Model:        b.model,
		Metadata:     map[string]string{"stage": stage},
	})
	if err != nil {
		return err
	}
	return decode(resp.Content, out)
}

// Parse implements capability.Capability
func (b *Backend) Parse(ctx context.Context, req capability.ParseRequest) (*capability.ParseResponse, error) {
	var out capability.ParseResponse
	if err := b.generate(ctx, "parse", buildParsePrompt(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Estimate implements capability.Capability
func (b *Backend) Estimate(ctx context.Context, req capability.EstimateRequest) (*capability.EstimateResponse, error) {
	var out capability.EstimateResponse
	if err := b.generate(ctx, "estimate", buildEstimatePrompt(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tasks implements capability.Capability
func (b *Backend) Tasks(ctx context.Context, req capability.TaskRequest) (*capability.TaskResponse, error) {
	var out capability.TaskResponse
	if err := b.generate(ctx, "tasks", buildTasksPrompt(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dependencies implements capability.Capability
func (b *Backend) Dependencies(ctx context.Context, req capability.DependencyRequest) (*capability.DependencyResponse, error) {
	var out capability.DependencyResponse
	if err := b.generate(ctx, "dependencies", buildDependenciesPrompt(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Criteria implements capability.Capability
func (b *Backend) Criteria(ctx context.Context, req capability.CriteriaRequest) (*capability.CriteriaResponse, error) {
	var out capability.CriteriaResponse
	if err := b.generate(ctx, "criteria", buildCriteriaPrompt(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Prompt implements capability.Capability
func (b *Backend) Prompt(ctx context.Context, req capability.PromptRequest) (*capability.PromptResponse, error) {
	var out capability.PromptResponse
	if err := b.generate(ctx, "prompt", buildPromptPrompt(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

var _ capability.Capability = (*Backend)(nil)
