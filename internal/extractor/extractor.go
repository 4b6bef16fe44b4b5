// Package extractor folds user utterances into the requirements record using
// per-field substring heuristics. It is lossy by nature: targetUsers, timeline
// and budget keep only the latest matching utterance, while features grows by
// concatenation and is never cleared.
package extractor

import (
	"strings"

	"requirements-agent/internal/domain"
)

var (
	userTriggers     = []string{"user", "customer"}
	featureTriggers  = []string{"feature", "function"}
	timelineTriggers = []string{"week", "month", "year", "deadline", "launch"}
	budgetTriggers   = []string{"$", "budget", "cost"}
)

// Extract returns prior updated with what utterance reveals. prior is not
// modified. The classification is accepted for symmetry with the analyzer
// pipeline; the current rules only look at the raw text. Fields filled by
// clarification questions are never touched here.
func Extract(utterance string, _ domain.Classification, prior domain.Requirements) domain.Requirements {
	next := prior.Clone()
	lower := strings.ToLower(utterance)

	if containsAny(lower, userTriggers) {
		next[domain.FieldTargetUsers] = utterance
	}
	if containsAny(lower, featureTriggers) {
		if existing, ok := next.Text(domain.FieldFeatures); ok && existing != "" {
			next[domain.FieldFeatures] = existing + " " + utterance
		} else {
			next[domain.FieldFeatures] = utterance
		}
	}
	if containsAny(lower, timelineTriggers) {
		next[domain.FieldTimeline] = utterance
	}
	if containsAny(lower, budgetTriggers) {
		next[domain.FieldBudget] = utterance
	}
	return next
}

func containsAny(s string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
