package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/plansmith/internal/errors"
)

const (
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultAzureAPIVersion  = "2024-06-01"
	openAIResponseFormatObj = "json_object"
)

// OpenAIProvider implements ProviderClient for the OpenAI chat completions
// API. With a deployment configured it targets Azure OpenAI instead.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	deployment string
	apiVersion string
	client     *http.Client
	config     *ProviderConfig
	model      string
	maxTokens  int
}

// OpenAI API request/response structures
type openAIRequest struct {
	Model          string                `json:"model,omitempty"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewOpenAIProvider creates a new OpenAI or Azure OpenAI provider
func NewOpenAIProvider(config *ProviderConfig) (*OpenAIProvider, error) {
	s := config.Config
	if s.APIKey == "" {
		return nil, errors.New(errors.ErrCodeProviderConfig, "api_key not found in provider config").
			WithSuggestion("Set config.api_key, for example to ${OPENAI_API_KEY}")
	}

	p := &OpenAIProvider{
		apiKey:     s.APIKey,
		baseURL:    strings.TrimRight(s.BaseURL, "/"),
		deployment: s.Deployment,
		apiVersion: s.APIVersion,
		client:     newHTTPClient(s.Timeout),
		config:     config,
		model:      s.Model,
		maxTokens:  s.MaxTokens,
	}

	if config.Type == ProviderTypeAzure && p.deployment == "" {
		return nil, errors.New(errors.ErrCodeProviderConfig, "azure provider requires config.deployment")
	}
	if p.azure() {
		if p.baseURL == "" {
			return nil, errors.New(errors.ErrCodeProviderConfig, "azure provider requires config.base_url")
		}
		if p.apiVersion == "" {
			p.apiVersion = defaultAzureAPIVersion
		}
		if p.model == "" {
			p.model = p.deployment
		}
	} else {
		if p.baseURL == "" {
			p.baseURL = defaultOpenAIBaseURL
		}
		if p.model == "" {
			p.model = defaultOpenAIModel
		}
	}
	return p, nil
}

func (p *OpenAIProvider) azure() bool { return p.deployment != "" }

// endpoint returns the chat completions URL
func (p *OpenAIProvider) endpoint() string {
	if p.azure() {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			p.baseURL, url.PathEscape(p.deployment), url.QueryEscape(p.apiVersion))
	}
	return p.baseURL + "/chat/completions"
}

func (p *OpenAIProvider) headers() map[string]string {
	if p.azure() {
		return map[string]string{"api-key": p.apiKey}
	}
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

// Generate implements ProviderClient.Generate
func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	startTime := time.Now()

	var oaiResp openAIResponse
	if err := postJSON(ctx, p.client, p.config.Name, p.endpoint(), p.headers(), p.buildRequest(req), &oaiResp); err != nil {
		return nil, err
	}
	if len(oaiResp.Choices) == 0 {
		return nil, errors.New(errors.ErrCodeProviderAPI, "openai response has no choices")
	}

	choice := oaiResp.Choices[0]
	return &GenerateResponse{
		Content:      choice.Message.Content,
		TokensUsed:   oaiResp.Usage.TotalTokens,
		InputTokens:  oaiResp.Usage.PromptTokens,
		OutputTokens: oaiResp.Usage.CompletionTokens,
		Model:        oaiResp.Model,
		Latency:      time.Since(startTime),
		FinishReason: choice.FinishReason,
		Provider:     p.config.Name,
	}, nil
}

// buildRequest constructs an OpenAI API request from our GenerateRequest
func (p *OpenAIProvider) buildRequest(req *GenerateRequest) *openAIRequest {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	// Azure routes by deployment and ignores the model field.
	if p.azure() {
		model = ""
	}

	messages := make([]openAIMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	out := &openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSON {
		out.ResponseFormat = &openAIResponseFormat{Type: openAIResponseFormatObj}
	}
	return out
}

// GetInfo implements ProviderClient.GetInfo
func (p *OpenAIProvider) GetInfo() *ProviderInfo {
	desc := fmt.Sprintf("OpenAI API provider: %s", p.baseURL)
	if p.azure() {
		desc = fmt.Sprintf("Azure OpenAI deployment %s at %s", p.deployment, p.baseURL)
	}
	return &ProviderInfo{
		Name:        p.config.Name,
		Type:        p.config.Type,
		Model:       p.model,
		Description: desc,
	}
}

// IsAvailable implements ProviderClient.IsAvailable
func (p *OpenAIProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Health implements ProviderClient.Health
func (p *OpenAIProvider) Health(ctx context.Context) error {
	u := p.baseURL + "/models"
	if p.azure() {
		u = fmt.Sprintf("%s/openai/models?api-version=%s", p.baseURL, p.apiVersion)
	}
	return getStatus(ctx, p.client, p.config.Name, u, p.headers())
}

// Close implements ProviderClient.Close
func (p *OpenAIProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
