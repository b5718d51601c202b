package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/plansmith/internal/errors"
)

// ProvidersConfig represents a providers.yaml file or the providers section
// of the main config
type ProvidersConfig struct {
	Providers []ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// LoadProvidersConfig loads provider configuration from a YAML file.
// Environment variables referenced as ${VAR} are expanded before parsing.
func LoadProvidersConfig(path string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	configStr := os.ExpandEnv(string(data))

	var config ProvidersConfig
	if err := yaml.Unmarshal([]byte(configStr), &config); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "yaml", err)
	}

	if err := ValidateProvidersConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// ValidateProvidersConfig validates a providers configuration
func ValidateProvidersConfig(config *ProvidersConfig) error {
	if len(config.Providers) == 0 {
		return errors.New(errors.ErrCodeProviderConfig, "no providers configured")
	}

	hasEnabled := false
	seen := make(map[string]bool, len(config.Providers))
	for i := range config.Providers {
		p := &config.Providers[i]
		if err := ValidateProviderConfig(p); err != nil {
			return fmt.Errorf("provider %d (%s): %w", i, p.Name, err)
		}
		if seen[p.Name] {
			return errors.New(errors.ErrCodeProviderConfig, fmt.Sprintf("duplicate provider name: %s", p.Name))
		}
		seen[p.Name] = true
		hasEnabled = hasEnabled || p.Enabled
	}

	if !hasEnabled {
		return errors.New(errors.ErrCodeProviderConfig, "at least one provider must be enabled")
	}
	return nil
}

// ValidateProviderConfig validates a single provider configuration
func ValidateProviderConfig(config *ProviderConfig) error {
	if config.Name == "" {
		return errors.New(errors.ErrCodeProviderConfig, "name is required")
	}
	if config.Type == "" {
		return errors.New(errors.ErrCodeProviderConfig, "type is required")
	}

	switch config.Type {
	case ProviderTypeOpenAI, ProviderTypeAnthropic:
	case ProviderTypeAzure:
		if config.Config.Deployment == "" {
			return errors.New(errors.ErrCodeProviderConfig, "azure providers require config.deployment")
		}
		if config.Config.BaseURL == "" {
			return errors.New(errors.ErrCodeProviderConfig, "azure providers require config.base_url")
		}
	default:
		return errors.New(errors.ErrCodeProviderConfig,
			fmt.Sprintf("invalid provider type: %s (must be openai, azure, or anthropic)", config.Type))
	}

	if config.Config.MaxTokens < 0 {
		return errors.New(errors.ErrCodeProviderConfig, "max_tokens must be non-negative")
	}
	if config.Config.Timeout < 0 {
		return errors.New(errors.ErrCodeProviderConfig, "timeout must be non-negative")
	}
	return nil
}

// DefaultProvidersConfig returns providers for the well-known API key
// variables. A provider is enabled when its key is set.
func DefaultProvidersConfig() *ProvidersConfig {
	return &ProvidersConfig{
		Providers: []ProviderConfig{
			{
				Name:    "openai",
				Type:    ProviderTypeOpenAI,
				Enabled: IsEnvVarSet("OPENAI_API_KEY"),
				Config:  Settings{APIKey: "${OPENAI_API_KEY}", Model: defaultOpenAIModel},
			},
			{
				Name:    "anthropic",
				Type:    ProviderTypeAnthropic,
				Enabled: IsEnvVarSet("ANTHROPIC_API_KEY"),
				Config:  Settings{APIKey: "${ANTHROPIC_API_KEY}", Model: defaultAnthropicModel},
			},
		},
	}
}

// LoadRegistryFromProvidersConfig expands environment references and loads
// every enabled provider into a new registry
func LoadRegistryFromProvidersConfig(config *ProvidersConfig) (*Registry, error) {
	registry := NewRegistry()
	for i := range config.Providers {
		pc := config.Providers[i]
		pc.Expand(nil)
		if err := registry.LoadFromConfig(&pc); err != nil {
			_ = registry.CloseAll()
			return nil, fmt.Errorf("load provider %s: %w", pc.Name, err)
		}
	}
	return registry, nil
}

// IsEnvVarSet reports whether an environment variable is set and non-empty
func IsEnvVarSet(name string) bool {
	return os.Getenv(name) != ""
}
