package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Plan entity identifiers are a one-letter kind prefix followed by a
// 1-based ordinal: F3, T12, P1. Criteria nest under their task: T12-AC2.
const (
	KindFeature = "F"
	KindTask    = "T"
	KindPhase   = "P"

	criterionInfix = "-AC"
)

var (
	ordinalIDPattern   = regexp.MustCompile(`^[FTP][1-9][0-9]*$`)
	criterionIDPattern = regexp.MustCompile(`^T[1-9][0-9]*-AC[1-9][0-9]*$`)
)

// FeatureID returns the identifier of the n-th feature (1-based).
func FeatureID(n int) string { return KindFeature + strconv.Itoa(n) }

// TaskID returns the identifier of the n-th task (1-based).
func TaskID(n int) string { return KindTask + strconv.Itoa(n) }

// PhaseID returns the identifier of the n-th phase (1-based).
func PhaseID(n int) string { return KindPhase + strconv.Itoa(n) }

// CriterionID returns the identifier of the n-th criterion of a task.
func CriterionID(taskID string, n int) string {
	return taskID + criterionInfix + strconv.Itoa(n)
}

// ValidateID checks an entity identifier against its expected kind prefix.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", kindName(kind))
	}
	if !ordinalIDPattern.MatchString(id) || !strings.HasPrefix(id, kind) {
		return fmt.Errorf("%s ID %q must look like %s1, %s2, ...", kindName(kind), id, kind, kind)
	}
	return nil
}

// ValidateCriterionID checks a criterion identifier and that it belongs to taskID.
func ValidateCriterionID(taskID, id string) error {
	if !criterionIDPattern.MatchString(id) {
		return fmt.Errorf("criterion ID %q must look like T1-AC1", id)
	}
	if !strings.HasPrefix(id, taskID+criterionInfix) {
		return fmt.Errorf("criterion ID %q does not belong to task %s", id, taskID)
	}
	return nil
}

// Ordinal extracts the numeric part of an F/T/P identifier, or 0 if the
// identifier is malformed.
func Ordinal(id string) int {
	if !ordinalIDPattern.MatchString(id) {
		return 0
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil {
		return 0
	}
	return n
}

func kindName(kind string) string {
	switch kind {
	case KindFeature:
		return "feature"
	case KindTask:
		return "task"
	case KindPhase:
		return "phase"
	default:
		return "entity"
	}
}
