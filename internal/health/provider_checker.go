package health

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/plansmith/internal/provider"
)

// ProviderChecker checks the language model providers behind the llm backend.
type ProviderChecker struct {
	providers []provider.ProviderClient
}

// NewProviderChecker creates a checker over the given providers.
func NewProviderChecker(providers ...provider.ProviderClient) *ProviderChecker {
	return &ProviderChecker{providers: providers}
}

// Name returns the name of this health check.
func (c *ProviderChecker) Name() string {
	return "llm-providers"
}

// Check calls IsAvailable and Health on every provider. It is healthy when
// all respond, degraded when some do and unhealthy when none do.
func (c *ProviderChecker) Check(ctx context.Context) *Result {
	if len(c.providers) == 0 {
		return Unhealthy("no providers configured").
			WithDetail("provider_count", 0).
			WithDetail("suggestion", "Add a providers section or use the heuristic backend")
	}

	healthy := 0
	details := make(map[string]any, len(c.providers))
	for _, p := range c.providers {
		info := p.GetInfo()
		entry := map[string]any{
			"type":  string(info.Type),
			"model": info.Model,
		}
		details[info.Name] = entry

		if !p.IsAvailable() {
			entry["available"] = false
			continue
		}
		entry["available"] = true
		if err := p.Health(ctx); err != nil {
			entry["error"] = err.Error()
			continue
		}
		entry["healthy"] = true
		healthy++
	}

	total := len(c.providers)
	var result *Result
	switch {
	case healthy == 0:
		result = Unhealthy(fmt.Sprintf("no healthy providers (0/%d)", total))
	case healthy < total:
		result = Degraded(fmt.Sprintf("some providers unhealthy (%d/%d)", healthy, total))
	default:
		result = Healthy(fmt.Sprintf("all providers healthy (%d/%d)", healthy, total))
	}
	return result.
		WithDetail("healthy_providers", healthy).
		WithDetail("providers", details)
}
