package heuristic

import (
	"context"
	"fmt"
	"math"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/domain"
)

// driver adds points to an estimate when its keywords occur
type driver struct {
	name   string
	kw     keywords
	points float64
	// perMatch scales points by the number of matches, capped at max
	perMatch bool
	max      float64
}

var (
	screensKW     = words("form*", "screen*", "page*", "view*", "dashboard*", "widget*", "modal*", "ui", "frontend")
	endpointsKW   = words("endpoint*", "api*", "webhook*", "rest", "graphql", "grpc")
	dataKW        = words("schema*", "table*", "migration*", "database*", "db", "postgres", "sql", "persist*", "store", "storage")
	authKW        = words("auth*", "login", "log in", "sign in", "sign-in", "role*", "rbac", "permission*", "admin*", "password*", "sso", "oauth")
	integrationKW = words("integrat*", "stripe", "slack", "oauth", "webhook*", "s3", "gcs", "email*", "sms", "payment*", "third-party", "external")
	perfKW        = words("fast", "realtime", "real-time", "latency", "p95", "p99", "performance", "sla")
	scaleKW       = words("concurren*", "simultaneous*", "scale", "scaling", "throughput", "high availability")
	rigorKW       = words("unit test*", "coverage", "acceptance criteria", "audit*", "compliance")
	unknownKW     = words("unknown", "tbd", "clarify", "assum*", "maybe", "possibly")
	uploadKW      = words("upload*", "file*", "attachment*", "pdf", "image*", "video*")
	a11yKW        = words("accessibility", "accessible", "a11y", "aria", "wcag", "keyboard")
)

var drivers = []driver{
	{name: "UI screens", kw: screensKW, points: 0.7, perMatch: true, max: 2.8},
	{name: "API endpoints", kw: endpointsKW, points: 0.6, perMatch: true, max: 2.4},
	{name: "data model changes", kw: dataKW, points: 1.2},
	{name: "auth or roles", kw: authKW, points: 0.8},
	{name: "external integrations", kw: integrationKW, points: 0.8, perMatch: true, max: 2.0},
	{name: "performance target", kw: perfKW, points: 0.6},
	{name: "concurrency", kw: scaleKW, points: 0.4},
	{name: "testing rigor", kw: rigorKW, points: 0.3},
	{name: "open questions", kw: unknownKW, points: 0.3, perMatch: true, max: 1.2},
	{name: "file handling", kw: uploadKW, points: 0.5},
}

// risk is a keyword-triggered risk statement
type risk struct {
	kw         keywords
	text       string
	mitigation string
}

var risks = []risk{
	{integrationKW, "External API instability or rate limits can block critical paths",
		"Add retries with backoff and sandbox keys; mock the API in tests"},
	{authKW, "Authorization gaps could leak data or allow privilege escalation",
		"Centralize permission checks; add negative tests for unprivileged users"},
	{dataKW, "Schema migration mismatch could break queries in production",
		"Write reversible migrations and roll them out in phases"},
	{perfKW, "Tight performance target may require caching or queueing",
		"Profile early; cache hot paths or move work to a queue"},
	{scaleKW, "Concurrency hotspots may cause races or throughput bottlenecks",
		"Make writes idempotent and load test the hot paths"},
	{uploadKW, "Large file handling may cause timeouts and storage growth",
		"Set size limits, stream uploads and add lifecycle policies"},
	{a11yKW, "Accessibility gaps carry usability and legal risk",
		"Cover keyboard navigation and run automated accessibility checks in CI"},
	{unknownKW, "Ambiguous scope may cause rework",
		"Time-box discovery and confirm assumptions with stakeholders"},
}

const (
	fallbackRisk       = "Scope may grow once implementation details are known"
	fallbackMitigation = "Revisit the estimate after the first task lands"
)

// Estimate scores the feature text and maps points to person-days:
// 0.5 + 0.6 per point, rounded to the nearest half day, with a range of
// 20% either side.
func (e *Engine) Estimate(ctx context.Context, req capability.EstimateRequest) (*capability.EstimateResponse, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}

	text := featureText(req.Feature)
	points, reasons := score(text)
	center := 0.5 + 0.6*points
	days := math.Max(0.5, math.Round(center*2)/2)
	label := domain.LabelForEffort(days)

	out := &capability.EstimateResponse{
		Label:      string(label),
		EffortDays: days,
		MinDays:    math.Min(days, math.Max(0.25, round1(center*0.8))),
		MaxDays:    math.Max(days, round1(center*1.2)),
		Confidence: string(confidence(text)),
		Drivers:    reasons,
	}
	mitigations := make(map[string]string)
	for _, r := range risks {
		if len(out.Risks) >= e.MaxRisks {
			break
		}
		if r.kw.in(text) {
			out.Risks = append(out.Risks, r.text)
			mitigations[r.text] = r.mitigation
		}
	}
	if len(out.Risks) == 0 && label.RequiresRisks() {
		out.Risks = []string{fallbackRisk}
		mitigations[fallbackRisk] = fallbackMitigation
	}
	if len(mitigations) > 0 {
		out.Mitigations = mitigations
	}
	return out, nil
}

// score sums driver points, starting from a baseline of 1, and names each
// driver that contributed
func score(text string) (float64, []string) {
	total := 1.0
	var reasons []string
	for _, d := range drivers {
		pts := 0.0
		if !d.perMatch {
			if d.kw.in(text) {
				pts = d.points
			}
		} else if n := d.kw.count(text); n > 0 {
			pts = math.Min(d.points*float64(n), d.max)
		}
		if pts > 0 {
			total += pts
			reasons = append(reasons, fmt.Sprintf("+%g %s", round1(pts), d.name))
		}
	}
	return total, reasons
}

// confidence drops with open questions and external integrations
func confidence(text string) domain.Confidence {
	unknowns := unknownKW.count(text)
	external := integrationKW.in(text)
	switch {
	case unknowns >= 3 || unknowns >= 2 && external:
		return domain.ConfidenceLow
	case unknowns == 0 && !external:
		return domain.ConfidenceHigh
	default:
		return domain.ConfidenceMedium
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
