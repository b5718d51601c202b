package provider

import (
	"context"
)

// ProviderClient is the interface every language model provider implements.
type ProviderClient interface {
	// Generate sends a prompt and returns the complete response.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// GetInfo returns metadata about the provider
	GetInfo() *ProviderInfo

	// IsAvailable reports whether the provider has what it needs to serve
	// requests, such as credentials.
	IsAvailable() bool

	// Health performs a cheap round trip to the provider.
	// Returns nil if healthy, error describing the problem otherwise.
	Health(ctx context.Context) error

	// Close releases resources held by the provider
	Close() error
}

// ProviderInfo contains metadata about a provider
type ProviderInfo struct {
	// Name is the configured provider name (e.g., "openai", "azure")
	Name string

	// Type is the wire protocol the provider speaks
	Type ProviderType

	// Model is the default model or deployment
	Model string

	// Description is a human-readable description of the provider
	Description string
}

// ProviderType selects the wire protocol of a provider
type ProviderType string

const (
	// ProviderTypeOpenAI speaks the OpenAI chat completions API, including
	// compatible servers and Azure OpenAI deployments
	ProviderTypeOpenAI ProviderType = "openai"

	// ProviderTypeAzure is an alias of ProviderTypeOpenAI that requires a
	// deployment and api_version
	ProviderTypeAzure ProviderType = "azure"

	// ProviderTypeAnthropic speaks the Anthropic messages API
	ProviderTypeAnthropic ProviderType = "anthropic"
)
