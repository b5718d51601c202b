package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/plansmith/internal/errors"
)

const (
	defaultAnthropicBaseURL   = "https://api.anthropic.com/v1"
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 4096
	anthropicVersion          = "2023-06-01"
)

// AnthropicProvider implements the ProviderClient interface for the Anthropic
// messages API
type AnthropicProvider struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	config    *ProviderConfig
	model     string
	maxTokens int
}

// Anthropic API request/response structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason,omitempty"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config *ProviderConfig) (*AnthropicProvider, error) {
	s := config.Config
	if s.APIKey == "" {
		return nil, errors.New(errors.ErrCodeProviderConfig, "api_key not found in provider config").
			WithSuggestion("Set config.api_key, for example to ${ANTHROPIC_API_KEY}")
	}

	p := &AnthropicProvider{
		apiKey:    s.APIKey,
		baseURL:   strings.TrimRight(s.BaseURL, "/"),
		client:    newHTTPClient(s.Timeout),
		config:    config,
		model:     s.Model,
		maxTokens: s.MaxTokens,
	}
	if p.baseURL == "" {
		p.baseURL = defaultAnthropicBaseURL
	}
	if p.model == "" {
		p.model = defaultAnthropicModel
	}
	if p.maxTokens <= 0 {
		p.maxTokens = defaultAnthropicMaxTokens
	}
	return p, nil
}

func (p *AnthropicProvider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
}

// Generate implements ProviderClient.Generate
func (p *AnthropicProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	startTime := time.Now()

	var anthResp anthropicResponse
	if err := postJSON(ctx, p.client, p.config.Name, p.baseURL+"/messages", p.headers(), p.buildRequest(req), &anthResp); err != nil {
		return nil, err
	}

	// The messages API has no JSON mode; text blocks are concatenated and
	// the caller extracts the object.
	var content strings.Builder
	for _, c := range anthResp.Content {
		if c.Type == "text" {
			content.WriteString(c.Text)
		}
	}
	if content.Len() == 0 {
		return nil, errors.New(errors.ErrCodeProviderAPI, "anthropic response has no text content")
	}

	return &GenerateResponse{
		Content:      content.String(),
		TokensUsed:   anthResp.Usage.InputTokens + anthResp.Usage.OutputTokens,
		InputTokens:  anthResp.Usage.InputTokens,
		OutputTokens: anthResp.Usage.OutputTokens,
		Model:        anthResp.Model,
		Latency:      time.Since(startTime),
		FinishReason: anthResp.StopReason,
		Provider:     p.config.Name,
	}, nil
}

// buildRequest constructs an Anthropic API request from our GenerateRequest
func (p *AnthropicProvider) buildRequest(req *GenerateRequest) *anthropicRequest {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	return &anthropicRequest{
		Model:       model,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		System:      req.SystemPrompt,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
}

// GetInfo implements ProviderClient.GetInfo
func (p *AnthropicProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{
		Name:        p.config.Name,
		Type:        p.config.Type,
		Model:       p.model,
		Description: fmt.Sprintf("Anthropic messages API: %s", p.baseURL),
	}
}

// IsAvailable implements ProviderClient.IsAvailable
func (p *AnthropicProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Health implements ProviderClient.Health
func (p *AnthropicProvider) Health(ctx context.Context) error {
	return getStatus(ctx, p.client, p.config.Name, p.baseURL+"/models", p.headers())
}

// Close implements ProviderClient.Close
func (p *AnthropicProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
