package heuristic

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/plansmith/internal/capability"
)

type section int

const (
	sectionOther section = iota
	sectionFeatures
	sectionConstraints
	sectionSuccess
	sectionStakeholders
)

var (
	headingFeatures     = words("feature*", "scope", "deliverable*", "requirement*", "user stor*")
	headingConstraints  = words("constraint*", "limitation*", "non-functional", "nonfunctional", "compliance")
	headingSuccess      = words("success", "acceptance", "criteria", "definition of done", "metric*", "goal*", "objective*")
	headingStakeholders = words("stakeholder*", "audience", "persona*")

	bulletRe = regexp.MustCompile(`^\s*(?:[-*•–—]\s+|\(?\d+\)?[.)]\s+)(.*)$`)

	genericHeadings = map[string]bool{
		"project": true, "context": true, "overview": true, "background": true,
		"goal": true, "goals": true, "objective": true, "summary": true,
	}

	constraintKinds = []struct {
		kind string
		kw   keywords
	}{
		{"compliance", words("gdpr", "ccpa", "hipaa", "soc2", "soc 2", "iso 27001", "pci", "pci-dss")},
		{"security", words("security", "secure", "oauth", "sso", "saml", "jwt", "encrypt*", "secret*", "pii", "rbac")},
		{"accessibility", words("accessibility", "accessible", "wcag", "a11y", "aria", "screen reader*")},
		{"performance", words("performance", "latency", "throughput", "p95", "p99", "fast", "realtime", "real-time", "concurrent")},
		{"platform", words("ios", "android", "mobile", "browser*", "azure", "aws", "gcp", "kubernetes", "on-prem", "postgres", "mysql", "react")},
		{"budget", words("budget", "cost", "deadline", "week*", "month*", "quarter", "sprint*")},
	}
	modalRe = regexp.MustCompile(`(?i)\b(must|should|shall|required|cannot|never)\b`)

	timelineRe = regexp.MustCompile(`(?i)(deadline|due date|deliver by|by\s+\w+\s+\d{1,2}|within\s+\d+\s?(days?|weeks?|months?)|\bin\s+\d+\s?(days?|weeks?|months?)\b|\bq[1-4]\b|sprint)`)
	authRe     = regexp.MustCompile(`(?i)\b(auth\w*|login|log in|sign[- ]?in|sso|oauth|jwt|saml|rbac|password)\b`)
	storageRe  = regexp.MustCompile(`(?i)\b(db|database|postgres|mysql|sqlite|dynamo\w*|mongo\w*|storage|store[sd]?|persist\w*)\b`)
	successRe  = regexp.MustCompile(`(?i)\b(acceptance|success|done|criteria|kpis?|metrics?)\b`)
)

// Parse splits the text into sections, turns feature lines into features and
// classifies the rest as constraints and goals.
func (e *Engine) Parse(ctx context.Context, req capability.ParseRequest) (*capability.ParseResponse, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}

	lines := splitLines(req.Text)
	sections := sectionize(lines)

	featureLines := sections[sectionFeatures]
	if len(featureLines) == 0 {
		featureLines = sections[sectionOther]
	}

	out := &capability.ParseResponse{}
	seen := make(map[string]bool)
	for _, ln := range featureLines {
		text := stripBullet(ln)
		if genericHeadings[strings.ToLower(strings.Trim(text, " :."))] {
			continue
		}
		// Lines that are pure constraints do not describe scope.
		if kind := constraintKind(text); kind != "" && sections[sectionFeatures] == nil && !imperative(text) {
			out.Constraints = append(out.Constraints, text)
			continue
		}
		name, desc := featureName(text)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out.Features = append(out.Features, capability.ParsedFeature{
			Name:        name,
			Description: desc,
			Constraints: inlineConstraints(text),
		})
	}

	for _, ln := range sections[sectionConstraints] {
		out.Constraints = append(out.Constraints, stripBullet(ln))
	}
	for _, ln := range sections[sectionSuccess] {
		out.Goals = append(out.Goals, stripBullet(ln))
	}

	out.OpenQuestions, out.Assumptions = unknowns(req.Text)
	return out, nil
}

func splitLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// isHeading reports whether a line looks like a section title rather than
// content: a markdown heading, colon terminated, or all upper case.
func isHeading(ln string) bool {
	if strings.HasPrefix(ln, "#") || strings.HasSuffix(ln, ":") {
		return true
	}
	return !bulletRe.MatchString(ln) && isUpper(ln)
}

func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func sectionize(lines []string) map[section][]string {
	out := make(map[section][]string)
	current := sectionOther
	for _, ln := range lines {
		if isHeading(ln) {
			head := strings.TrimLeft(ln, "# ")
			switch {
			case headingFeatures.in(head):
				current = sectionFeatures
				continue
			case headingConstraints.in(head):
				current = sectionConstraints
				continue
			case headingSuccess.in(head):
				current = sectionSuccess
				continue
			case headingStakeholders.in(head):
				current = sectionStakeholders
				continue
			case strings.HasPrefix(ln, "#") || strings.HasSuffix(ln, ":"):
				current = sectionOther
				continue
			}
		}
		out[current] = append(out[current], ln)
	}
	return out
}

func stripBullet(ln string) string {
	if m := bulletRe.FindStringSubmatch(ln); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(ln)
}

var clauseRe = regexp.MustCompile(`[,;]|\band\b`)

var imperativeRe = regexp.MustCompile(`(?i)^(build|create|add|implement|support|allow|enable|integrate|collect|store|display|send|export|import|track|log|notify|authenticate|authorize|provide|let|show|upload)\b`)

func imperative(text string) bool { return imperativeRe.MatchString(text) }

const maxFeatureName = 80

// featureName trims punctuation and splits long lines into a short name and
// the full text as description.
func featureName(text string) (name, desc string) {
	text = strings.TrimRight(strings.TrimSpace(text), ".:;")
	if before, after, ok := strings.Cut(text, ": "); ok && len(before) <= maxFeatureName && len(strings.Fields(before)) <= 8 {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	if len(text) <= maxFeatureName {
		return text, ""
	}
	cut := strings.LastIndex(text[:maxFeatureName], " ")
	if cut <= 0 {
		cut = maxFeatureName
	}
	return strings.TrimSpace(text[:cut]), text
}

func constraintKind(text string) string {
	for _, ck := range constraintKinds {
		if ck.kw.in(text) {
			return ck.kind
		}
	}
	if modalRe.MatchString(text) {
		return "general"
	}
	return ""
}

// inlineConstraints pulls clauses such as "must load in under 1s" out of a
// feature line.
func inlineConstraints(text string) []string {
	var out []string
	for _, clause := range clauseRe.Split(text, -1) {
		clause = strings.TrimSpace(clause)
		if clause != "" && modalRe.MatchString(clause) {
			out = append(out, clause)
		}
	}
	return out
}

// unknowns lists open questions the text leaves unanswered, each with the
// assumption the plan makes in its place.
func unknowns(text string) (questions, assumptions []string) {
	if !timelineRe.MatchString(text) {
		questions = append(questions, "What is the timeline or deadline?")
		assumptions = append(assumptions, "No fixed deadline; phases are sequenced by dependency only.")
	}
	if !authRe.MatchString(text) {
		questions = append(questions, "Are there authentication or authorization requirements?")
		assumptions = append(assumptions, "Existing authentication is reused; no new roles are introduced.")
	}
	if !storageRe.MatchString(text) {
		questions = append(questions, "Which data store should be used?")
		assumptions = append(assumptions, "The project's existing data store is used.")
	}
	if !successRe.MatchString(text) {
		questions = append(questions, "How will success be measured?")
		assumptions = append(assumptions, "Success means every acceptance criterion passes.")
	}
	return questions, assumptions
}
