package heuristic

import (
	"context"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/plansmith/internal/capability"
	"github.com/felixgeelhaar/plansmith/internal/domain"
)

var (
	formKW    = words("form*", "submit*", "field*", "input*", "login", "sign in", "sign-in", "register*", "signup", "sign up")
	statusKW  = words("status", "approve*", "close", "reopen", "workflow", "state")
	perfLimit = regexp.MustCompile(`(?i)(<|≤|<=|under|within)\s*\d+(\.\d+)?\s*(ms|s|sec|seconds?)\b`)
)

// Criteria assembles scenarios from the task and feature text: a happy
// path and a validation failure always, then authorization, persistence,
// performance, accessibility and error handling when they apply. Each
// scenario carries its kind.
func (e *Engine) Criteria(ctx context.Context, req capability.CriteriaRequest) (*capability.CriteriaResponse, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}

	taskText := req.Task.Title + "\n" + req.Task.Description
	text := taskText + "\n" + featureText(req.Feature)
	subject := strings.ToLower(actionOf(req.Task.Title))

	var list []capability.Scenario
	list = append(list, happyPath(text, subject), validation(text))
	if authKW.in(text) {
		list = append(list, capability.Scenario{
			Kind:  string(domain.CriterionAuthorization),
			Given: "a user without the required permission",
			When:  "they call the restricted action directly",
			Then:  "the request is denied and no restricted data is returned",
		})
	}
	if dataKW.in(taskText) {
		list = append(list, capability.Scenario{
			Kind:  string(domain.CriterionEdgeCase),
			Given: "the " + subject + " has completed successfully",
			When:  "the data is read back after a restart",
			Then:  "the stored values match what was submitted",
		})
	}
	if target := perfLimit.FindString(text); target != "" {
		list = append(list, capability.Scenario{
			Kind:  string(domain.CriterionNonFunctional),
			Given: "typical production load",
			When:  "the " + subject + " runs",
			Then:  "it responds " + strings.TrimSpace(target) + " at the 95th percentile",
		})
	} else if perfKW.in(text) || scaleKW.in(text) {
		list = append(list, capability.Scenario{
			Kind:  string(domain.CriterionNonFunctional),
			Given: "the expected peak number of concurrent users",
			When:  "they use the " + subject + " at the same time",
			Then:  "responses stay within the agreed latency budget and no request fails",
		})
	}
	if a11yKW.in(text) {
		list = append(list, capability.Scenario{
			Kind:  string(domain.CriterionNonFunctional),
			Given: "a keyboard-only user with a screen reader",
			When:  "they complete the " + subject,
			Then:  "focus order is logical and every state change is announced",
		})
	}
	list = append(list, capability.Scenario{
		Kind:  string(domain.CriterionErrorState),
		Given: "a dependency of the " + subject + " is unavailable",
		When:  "the action is attempted",
		Then:  "a clear error is shown and no partial changes are kept",
	})

	limit := req.MaxCriteria
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return &capability.CriteriaResponse{Criteria: list}, nil
}

func happyPath(text, subject string) capability.Scenario {
	switch {
	case uploadKW.in(text):
		return capability.Scenario{
			Kind:  string(domain.CriterionHappyPath),
			Given: "a signed-in user with a valid file selected",
			When:  "they start the upload",
			Then:  "the file is stored and the new entry appears in the list",
		}
	case formKW.in(text):
		return capability.Scenario{
			Kind:  string(domain.CriterionHappyPath),
			Given: "a user on the form with every required field filled in correctly",
			When:  "they submit it",
			Then:  "the data is saved and a success state is shown",
		}
	case statusKW.in(text):
		return capability.Scenario{
			Kind:  string(domain.CriterionHappyPath),
			Given: "a staff user viewing an item",
			When:  "they change its status",
			Then:  "the new status is saved and reflected in filters and counts",
		}
	default:
		return capability.Scenario{
			Kind:  string(domain.CriterionHappyPath),
			Given: "all prerequisites for the " + subject + " are met",
			When:  "the primary action is performed",
			Then:  "it completes and a clear confirmation is returned",
		}
	}
}

func validation(text string) capability.Scenario {
	if formKW.in(text) {
		return capability.Scenario{
			Kind:  string(domain.CriterionValidation),
			Given: "a required field is empty or too long",
			When:  "the user submits",
			Then:  "submission is blocked and an inline error explains what to fix",
		}
	}
	return capability.Scenario{
		Kind:  string(domain.CriterionValidation),
		Given: "an input is missing or malformed",
		When:  "the action is triggered",
		Then:  "a validation error is returned and nothing is changed",
	}
}

// actionOf strips the feature prefix from a task title
func actionOf(title string) string {
	if _, action, ok := strings.Cut(title, ": "); ok {
		return action
	}
	return title
}
