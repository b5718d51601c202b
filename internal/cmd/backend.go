package cmd

import (
	"fmt"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/capability/heuristic"
	"github.com/felixgeelhaar/plansmith/internal/capability/llm"
	"github.com/felixgeelhaar/plansmith/internal/config"
	"github.com/felixgeelhaar/plansmith/internal/errors"
	"github.com/felixgeelhaar/plansmith/internal/provider"
)

// backend is the generation capability chosen by configuration together
// with the provider clients behind it
type backend struct {
	capability.Capability
	name      string
	providers []provider.ProviderClient
	registry  *provider.Registry
}

// Close releases provider connections
func (b *backend) Close() error {
	if b.registry == nil {
		return nil
	}
	return b.registry.CloseAll()
}

func newBackend(cfg *config.Config) (*backend, error) {
	switch cfg.Backend.Name {
	case config.BackendHeuristic:
		return &backend{Capability: heuristic.New(), name: config.BackendHeuristic}, nil
	case config.BackendLLM:
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown backend %q", cfg.Backend.Name)).
			WithSuggestion("Use --backend heuristic or --backend llm")
	}

	registry, err := provider.LoadRegistryFromProvidersConfig(cfg.ProvidersConfig())
	if err != nil {
		return nil, err
	}

	name := cfg.Backend.Provider
	if name == "" {
		names := registry.List()
		if len(names) == 0 {
			_ = registry.CloseAll()
			return nil, errors.New(errors.ErrCodeProviderNotFound, "no enabled providers").
				WithSuggestion("Enable a provider in the providers section of plansmith.yaml")
		}
		name = names[0]
	}
	client, err := registry.Get(name)
	if err != nil {
		_ = registry.CloseAll()
		return nil, err
	}

	var opts []llm.Option
	if cfg.Backend.Model != "" {
		opts = append(opts, llm.WithModel(cfg.Backend.Model))
	}
	if cfg.Backend.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(cfg.Backend.MaxTokens))
	}

	var clients []provider.ProviderClient
	for _, n := range registry.List() {
		if c, err := registry.Get(n); err == nil {
			clients = append(clients, c)
		}
	}

	return &backend{
		Capability: llm.New(client, opts...),
		name:       config.BackendLLM + "/" + name,
		providers:  clients,
		registry:   registry,
	}, nil
}
