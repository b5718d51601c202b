package domain

import (
	"fmt"
	"strings"
)

// ComplexityLabel is the closed set of complexity ratings a feature can carry.
// This is a value object; free-form labels never validate.
type ComplexityLabel string

const (
	ComplexityLow    ComplexityLabel = "Low"
	ComplexityMedium ComplexityLabel = "Medium"
	ComplexityHigh   ComplexityLabel = "High"
)

// ComplexityLabels lists the valid labels from least to most complex.
func ComplexityLabels() []ComplexityLabel {
	return []ComplexityLabel{ComplexityLow, ComplexityMedium, ComplexityHigh}
}

// ParseComplexityLabel maps a raw label onto the enumeration. Matching
// ignores case and surrounding whitespace, so "medium " is Medium, but
// anything outside the three values is rejected.
func ParseComplexityLabel(raw string) (ComplexityLabel, error) {
	for _, l := range ComplexityLabels() {
		if strings.EqualFold(strings.TrimSpace(raw), string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("invalid complexity label %q: must be Low, Medium, or High", raw)
}

// Validate checks that the label is exactly one of the enumeration values
func (c ComplexityLabel) Validate() error {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return nil
	default:
		return fmt.Errorf("invalid complexity label %q: must be Low, Medium, or High", string(c))
	}
}

// String returns the string representation
func (c ComplexityLabel) String() string {
	return string(c)
}

// RequiresRisks reports whether an estimate with this label must list at
// least one risk.
func (c ComplexityLabel) RequiresRisks() bool {
	return c == ComplexityMedium || c == ComplexityHigh
}

// IsHigherThan checks if this label is more complex than another
func (c ComplexityLabel) IsHigherThan(other ComplexityLabel) bool {
	return complexityRank(c) > complexityRank(other)
}

func complexityRank(c ComplexityLabel) int {
	switch c {
	case ComplexityLow:
		return 1
	case ComplexityMedium:
		return 2
	case ComplexityHigh:
		return 3
	default:
		return 0
	}
}

// LabelForEffort buckets an effort figure in person-days.
func LabelForEffort(days float64) ComplexityLabel {
	switch {
	case days <= 2:
		return ComplexityLow
	case days <= 5:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}
