package provider

import "time"

// GenerateRequest contains all parameters for generating a response
type GenerateRequest struct {
	// Prompt is the main input text for the model
	Prompt string `json:"prompt"`

	// SystemPrompt sets the system-level instructions
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens limits the maximum response length.
	// Set to 0 to use provider default
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. Zero is sent as zero, which the
	// planner relies on for repeatable output.
	Temperature float64 `json:"temperature"`

	// JSON asks the provider to constrain output to a JSON object when the
	// API supports it
	JSON bool `json:"json,omitempty"`

	// Model overrides the configured model for this request
	Model string `json:"model,omitempty"`

	// Metadata for tracking and debugging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GenerateResponse contains the model's response
type GenerateResponse struct {
	// Content is the generated text
	Content string `json:"content"`

	// TokensUsed is the total tokens consumed (input + output)
	TokensUsed int `json:"tokens_used"`

	// InputTokens is tokens in the prompt
	InputTokens int `json:"input_tokens,omitempty"`

	// OutputTokens is tokens in the response
	OutputTokens int `json:"output_tokens,omitempty"`

	// Model is the actual model that generated the response
	Model string `json:"model"`

	// Latency is how long the generation took
	Latency time.Duration `json:"latency"`

	// FinishReason explains why generation stopped
	// Common values: "stop" (natural end), "length" (max tokens)
	FinishReason string `json:"finish_reason"`

	// Provider is the name of the provider that handled this request
	Provider string `json:"provider"`
}

// Settings holds the connection parameters of one provider. String values
// may reference environment variables as ${VAR}.
type Settings struct {
	// APIKey authenticates requests
	APIKey string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`

	// BaseURL overrides the API endpoint. For Azure it is the resource
	// endpoint, e.g. https://myres.openai.azure.com
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" mapstructure:"base_url"`

	// Model is the default model name
	Model string `yaml:"model,omitempty" json:"model,omitempty" mapstructure:"model"`

	// Deployment selects an Azure OpenAI deployment
	Deployment string `yaml:"deployment,omitempty" json:"deployment,omitempty" mapstructure:"deployment"`

	// APIVersion is the Azure OpenAI api-version query parameter
	APIVersion string `yaml:"api_version,omitempty" json:"api_version,omitempty" mapstructure:"api_version"`

	// MaxTokens is the default response length limit
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" mapstructure:"max_tokens"`

	// Timeout bounds one HTTP round trip. Zero means two minutes.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" mapstructure:"timeout"`
}

// ProviderConfig represents one entry of the providers list
type ProviderConfig struct {
	// Name is the provider identifier used by --provider
	Name string `yaml:"name" json:"name" mapstructure:"name"`

	// Type is the provider wire protocol
	Type ProviderType `yaml:"type" json:"type" mapstructure:"type"`

	// Enabled controls if this provider is active
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`

	// Config contains the connection settings
	Config Settings `yaml:"config" json:"config" mapstructure:"config"`
}

// Expand resolves ${VAR} references in the string settings
func (c *ProviderConfig) Expand(getenv func(string) string) {
	expand := func(s string) string { return expandEnv(s, getenv) }
	c.Config.APIKey = expand(c.Config.APIKey)
	c.Config.BaseURL = expand(c.Config.BaseURL)
	c.Config.Model = expand(c.Config.Model)
	c.Config.Deployment = expand(c.Config.Deployment)
	c.Config.APIVersion = expand(c.Config.APIVersion)
}
