package provider

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/plansmith/internal/errors"
)

func TestLoadFromConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      *ProviderConfig
		wantErr     bool
		errContains string
		wantLoaded  bool
	}{
		{
			name:        "empty provider name",
			config:      &ProviderConfig{Type: ProviderTypeOpenAI, Enabled: true},
			wantErr:     true,
			errContains: "name is required",
		},
		{
			name:   "disabled provider",
			config: &ProviderConfig{Name: "openai", Type: ProviderTypeOpenAI},
		},
		{
			name:        "unknown type",
			config:      &ProviderConfig{Name: "grpc", Type: "grpc", Enabled: true},
			wantErr:     true,
			errContains: "invalid provider type",
		},
		{
			name:        "missing api key",
			config:      &ProviderConfig{Name: "openai", Type: ProviderTypeOpenAI, Enabled: true},
			wantErr:     true,
			errContains: "api_key",
		},
		{
			name: "openai",
			config: &ProviderConfig{
				Name:    "openai",
				Type:    ProviderTypeOpenAI,
				Enabled: true,
				Config:  Settings{APIKey: "k"},
			},
			wantLoaded: true,
		},
		{
			name: "anthropic",
			config: &ProviderConfig{
				Name:    "claude",
				Type:    ProviderTypeAnthropic,
				Enabled: true,
				Config:  Settings{APIKey: "k"},
			},
			wantLoaded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			err := registry.LoadFromConfig(tt.config)

			if tt.wantErr {
				if err == nil {
					t.Fatal("LoadFromConfig() expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("LoadFromConfig() error = %v, want error containing %q", err, tt.errContains)
				}
				if !errors.HasCode(err, errors.ErrCodeProviderConfig) {
					t.Errorf("LoadFromConfig() error code = %v, want %s", err, errors.ErrCodeProviderConfig)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFromConfig() unexpected error = %v", err)
			}
			if got := len(registry.List()) == 1; got != tt.wantLoaded {
				t.Errorf("loaded = %v, want %v", got, tt.wantLoaded)
			}
		})
	}
}

type mockProvider struct {
	name     string
	closed   bool
	closeErr error
}

func (m *mockProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	return &GenerateResponse{Content: "mock", Provider: m.name}, nil
}

func (m *mockProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{Name: m.name, Type: ProviderTypeOpenAI}
}

func (m *mockProvider) IsAvailable() bool {
	return true
}

func (m *mockProvider) Health(ctx context.Context) error {
	return nil
}

func (m *mockProvider) Close() error {
	m.closed = true
	return m.closeErr
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	config := &ProviderConfig{Name: "mock", Type: ProviderTypeOpenAI}

	if err := registry.Register("mock", &mockProvider{name: "mock"}, config); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register("mock", &mockProvider{name: "mock"}, config); err == nil {
		t.Error("Register() expected error for duplicate name")
	}

	p, err := registry.Get("mock")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.GetInfo().Name != "mock" {
		t.Errorf("Get() returned %s", p.GetInfo().Name)
	}
}

func TestRegistry_Get_NotFound(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register("openai", &mockProvider{name: "openai"}, &ProviderConfig{Name: "openai"})

	_, err := registry.Get("gemini")
	if !errors.HasCode(err, errors.ErrCodeProviderNotFound) {
		t.Fatalf("Get() error = %v, want not found", err)
	}
	if !strings.Contains(err.Error(), "[openai]") {
		t.Errorf("not found error should list available providers: %v", err)
	}
}

func TestRegistry_GetConfig(t *testing.T) {
	registry := NewRegistry()
	config := &ProviderConfig{Name: "mock", Type: ProviderTypeAnthropic, Config: Settings{Model: "m"}}
	_ = registry.Register("mock", &mockProvider{name: "mock"}, config)

	got, err := registry.GetConfig("mock")
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}
	if got.Config.Model != "m" {
		t.Errorf("GetConfig() model = %s", got.Config.Model)
	}
	if _, err := registry.GetConfig("missing"); err == nil {
		t.Error("GetConfig() expected error for missing provider")
	}
}

func TestRegistry_List_Sorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_ = registry.Register(name, &mockProvider{name: name}, &ProviderConfig{Name: name})
	}

	got := registry.List()
	want := []string{"alpha", "mid", "zeta"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestRegistry_Remove(t *testing.T) {
	registry := NewRegistry()
	mock := &mockProvider{name: "mock"}
	_ = registry.Register("mock", mock, &ProviderConfig{Name: "mock"})

	if err := registry.Remove("mock"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !mock.closed {
		t.Error("Remove() should close the provider")
	}
	if _, err := registry.Get("mock"); err == nil {
		t.Error("provider still registered after Remove()")
	}
	if err := registry.Remove("mock"); err == nil {
		t.Error("Remove() expected error for missing provider")
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	registry := NewRegistry()
	a := &mockProvider{name: "a"}
	b := &mockProvider{name: "b", closeErr: fmt.Errorf("boom")}
	_ = registry.Register("a", a, &ProviderConfig{Name: "a"})
	_ = registry.Register("b", b, &ProviderConfig{Name: "b"})

	err := registry.CloseAll()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("CloseAll() error = %v, want close error", err)
	}
	if !a.closed || !b.closed {
		t.Error("CloseAll() should close every provider")
	}
	if len(registry.List()) != 0 {
		t.Errorf("registry not empty after CloseAll(): %v", registry.List())
	}
}
