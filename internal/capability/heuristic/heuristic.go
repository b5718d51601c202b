// Package heuristic is an offline, deterministic generation backend. It
// drives every pipeline stage from keyword tables, so plans can be produced
// without network access and tests get stable output.
package heuristic

import (
	"context"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/capability"
)

// Engine implements capability.Capability with keyword heuristics.
type Engine struct {
	// MaxRisks caps the risks attached to one estimate
	MaxRisks int
}

var _ capability.Capability = (*Engine)(nil)

// New returns an engine with default settings
func New() *Engine {
	return &Engine{MaxRisks: 6}
}

// Name identifies the backend in logs and metrics
func (e *Engine) Name() string { return "heuristic" }

// keywords is a compiled case-insensitive word matcher
type keywords struct {
	re *regexp.Regexp
}

// words builds a matcher for whole words or phrases. A trailing * turns a
// word into a prefix match ("integrat*" matches "integration").
func words(list ...string) keywords {
	parts := make([]string, len(list))
	for i, w := range list {
		if strings.HasSuffix(w, "*") {
			parts[i] = regexp.QuoteMeta(strings.TrimSuffix(w, "*")) + `\w*`
		} else {
			parts[i] = regexp.QuoteMeta(w)
		}
	}
	return keywords{re: regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)}
}

func (k keywords) in(text string) bool { return k.re.MatchString(text) }

func (k keywords) count(text string) int { return len(k.re.FindAllStringIndex(text, -1)) }

// featureText joins everything the backend knows about a feature
func featureText(f capability.FeatureRef) string {
	parts := []string{f.Name, f.Description}
	parts = append(parts, f.Constraints...)
	parts = append(parts, f.Goals...)
	return strings.Join(parts, "\n")
}

// alive reports the context error, if any, so long loops stop early
func alive(ctx context.Context) error {
	return ctx.Err()
}
