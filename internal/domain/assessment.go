package domain

import (
	"fmt"
	"strings"
)

// Confidence rates how far an estimate can be trusted
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence maps a raw value onto the enumeration, ignoring case.
// An empty value stays empty.
func ParseConfidence(raw string) (Confidence, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch c := Confidence(raw); c {
	case "", ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return c, nil
	default:
		return "", fmt.Errorf("invalid confidence %q: must be low, medium, or high", raw)
	}
}

// CriterionKind says which aspect of a task a criterion covers
type CriterionKind string

const (
	CriterionHappyPath     CriterionKind = "happy_path"
	CriterionValidation    CriterionKind = "validation"
	CriterionAuthorization CriterionKind = "authorization"
	CriterionErrorState    CriterionKind = "error_state"
	CriterionNonFunctional CriterionKind = "nonfunctional"
	CriterionEdgeCase      CriterionKind = "edge_case"
)

// CriterionKinds lists every kind in the order criteria are usually written
func CriterionKinds() []CriterionKind {
	return []CriterionKind{CriterionHappyPath, CriterionValidation, CriterionAuthorization, CriterionErrorState, CriterionNonFunctional, CriterionEdgeCase}
}

// ParseCriterionKind accepts the snake_case names, ignoring case and
// treating dashes and spaces as underscores. An empty value stays empty.
func ParseCriterionKind(raw string) (CriterionKind, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	if norm == "" {
		return "", nil
	}
	for _, k := range CriterionKinds() {
		if norm == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid criterion kind %q", raw)
}

// EffortRangeContains reports whether min <= days <= max. A zero range
// means none was given and always holds.
func EffortRangeContains(minDays, maxDays, days float64) bool {
	if minDays == 0 && maxDays == 0 {
		return true
	}
	return minDays > 0 && minDays <= days && days <= maxDays
}
