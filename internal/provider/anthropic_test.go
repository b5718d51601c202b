package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/felixgeelhaar/plansmith/internal/errors"
)

func TestNewAnthropicProvider(t *testing.T) {
	tests := []struct {
		name    string
		config  *ProviderConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: &ProviderConfig{
				Name:   "anthropic",
				Type:   ProviderTypeAnthropic,
				Config: Settings{APIKey: "test-key"},
			},
		},
		{
			name: "missing api key",
			config: &ProviderConfig{
				Name: "anthropic",
				Type: ProviderTypeAnthropic,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewAnthropicProvider(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewAnthropicProvider() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && provider == nil {
				t.Error("NewAnthropicProvider() returned nil provider without error")
			}
		})
	}
}

func TestAnthropicProvider_Generate(t *testing.T) {
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("unexpected api key header: %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("unexpected version header: %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.System != "You are a planner." {
			t.Errorf("unexpected system prompt: %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.MaxTokens != defaultAnthropicMaxTokens {
			t.Errorf("unexpected max tokens: %d", req.MaxTokens)
		}

		resp := anthropicResponse{
			ID:    "msg_123",
			Type:  "message",
			Role:  "assistant",
			Model: "claude-3-5-haiku-latest",
			Content: []anthropicContent{
				{Type: "text", Text: `{"label":`},
				{Type: "text", Text: `"Low"}`},
			},
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 12, OutputTokens: 8},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))

	provider, err := NewAnthropicProvider(&ProviderConfig{
		Name:   "anthropic",
		Type:   ProviderTypeAnthropic,
		Config: Settings{APIKey: "test-key", BaseURL: server.URL},
	})
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	resp, err := provider.Generate(context.Background(), &GenerateRequest{
		Prompt:       "Estimate",
		SystemPrompt: "You are a planner.",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != `{"label":"Low"}` {
		t.Errorf("unexpected content: %s", resp.Content)
	}
	if resp.TokensUsed != 20 {
		t.Errorf("unexpected tokens used: %d", resp.TokensUsed)
	}
	if resp.FinishReason != "end_turn" {
		t.Errorf("unexpected finish reason: %s", resp.FinishReason)
	}
}

func TestAnthropicProvider_Generate_Error(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantCode   errors.ErrorCode
	}{
		{
			name:       "http 401 unauthorized",
			statusCode: http.StatusUnauthorized,
			body:       `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			wantCode:   errors.ErrCodeProviderAuth,
		},
		{
			name:       "http 529 overloaded",
			statusCode: 529,
			body:       `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			wantCode:   errors.ErrCodeProviderAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))

			provider, _ := NewAnthropicProvider(&ProviderConfig{
				Name:   "anthropic",
				Config: Settings{APIKey: "test-key", BaseURL: server.URL},
			})

			_, err := provider.Generate(context.Background(), &GenerateRequest{Prompt: "test"})
			if !errors.HasCode(err, tt.wantCode) {
				t.Errorf("Generate() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestAnthropicProvider_Generate_EmptyContent(t *testing.T) {
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"tool_use"}]}`))
	}))

	provider, _ := NewAnthropicProvider(&ProviderConfig{
		Name:   "anthropic",
		Config: Settings{APIKey: "test-key", BaseURL: server.URL},
	})
	if _, err := provider.Generate(context.Background(), &GenerateRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for response without text")
	}
}

func TestAnthropicProvider_GetInfo(t *testing.T) {
	provider, _ := NewAnthropicProvider(&ProviderConfig{
		Name:   "anthropic",
		Type:   ProviderTypeAnthropic,
		Config: Settings{APIKey: "test-key", Model: "claude-sonnet-4-5"},
	})

	info := provider.GetInfo()
	if info.Name != "anthropic" || info.Type != ProviderTypeAnthropic {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Model != "claude-sonnet-4-5" {
		t.Errorf("unexpected model: %s", info.Model)
	}
}

func TestAnthropicProvider_Health(t *testing.T) {
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") == "" {
			t.Error("health check must authenticate")
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))

	provider, _ := NewAnthropicProvider(&ProviderConfig{
		Name:   "anthropic",
		Config: Settings{APIKey: "test-key", BaseURL: server.URL},
	})
	if err := provider.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
	if !provider.IsAvailable() {
		t.Error("provider with api key should be available")
	}
	if err := provider.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
