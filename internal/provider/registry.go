package provider

import (
	stderrors "errors"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/plansmith/internal/errors"
)

// ProviderRegistry defines the interface for managing language model
// providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry
	Register(name string, provider ProviderClient, config *ProviderConfig) error

	// Get retrieves a provider by name
	Get(name string) (ProviderClient, error)

	// GetConfig retrieves a provider's configuration
	GetConfig(name string) (*ProviderConfig, error)

	// List returns all registered provider names
	List() []string

	// Remove removes a provider from the registry and closes it
	Remove(name string) error

	// CloseAll closes all registered providers
	CloseAll() error

	// LoadFromConfig loads a provider from configuration
	LoadFromConfig(config *ProviderConfig) error
}

// Registry manages all loaded providers and implements ProviderRegistry interface
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ProviderClient
	configs   map[string]*ProviderConfig
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]ProviderClient),
		configs:   make(map[string]*ProviderConfig),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(name string, provider ProviderClient, config *ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return errors.New(errors.ErrCodeProviderConfig, fmt.Sprintf("provider %s already registered", name))
	}

	r.providers[name] = provider
	r.configs[name] = config
	return nil
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (ProviderClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, r.notFound(name)
	}
	return provider, nil
}

// GetConfig retrieves a provider's configuration
func (r *Registry) GetConfig(name string) (*ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, exists := r.configs[name]
	if !exists {
		return nil, r.notFound(name)
	}
	return config, nil
}

// notFound must be called with the lock held
func (r *Registry) notFound(name string) error {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)

	err := errors.New(errors.ErrCodeProviderNotFound, fmt.Sprintf("provider %s not found", name))
	if len(names) > 0 {
		err = err.WithSuggestion(fmt.Sprintf("Available providers: %v", names))
	} else {
		err = err.WithSuggestion("Add an enabled provider to the providers list in the config file")
	}
	return err
}

// List returns all registered provider names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove removes a provider from the registry and closes it
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[name]
	if !exists {
		return r.notFound(name)
	}

	if err := provider.Close(); err != nil {
		return fmt.Errorf("failed to close provider %s: %w", name, err)
	}

	delete(r.providers, name)
	delete(r.configs, name)
	return nil
}

// CloseAll closes all registered providers
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, provider := range r.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %s: %w", name, err))
		}
	}

	r.providers = make(map[string]ProviderClient)
	r.configs = make(map[string]*ProviderConfig)

	return stderrors.Join(errs...)
}

// LoadFromConfig builds a provider from configuration and registers it.
// Disabled providers are skipped.
func (r *Registry) LoadFromConfig(config *ProviderConfig) error {
	if err := ValidateProviderConfig(config); err != nil {
		return err
	}
	if !config.Enabled {
		return nil
	}

	var provider ProviderClient
	var err error

	switch config.Type {
	case ProviderTypeOpenAI, ProviderTypeAzure:
		provider, err = NewOpenAIProvider(config)
	case ProviderTypeAnthropic:
		provider, err = NewAnthropicProvider(config)
	default:
		return errors.New(errors.ErrCodeProviderConfig, fmt.Sprintf("unknown provider type: %s", config.Type))
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeProviderConfig, fmt.Sprintf("failed to create provider %s", config.Name), err)
	}

	return r.Register(config.Name, provider, config)
}

// Compile-time verification that Registry implements ProviderRegistry
var _ ProviderRegistry = (*Registry)(nil)
