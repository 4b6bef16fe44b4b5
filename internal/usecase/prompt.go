package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"requirements-agent/internal/domain"
)

type promptInput struct {
	userInput    string
	context      domain.ProjectContext
	phase        domain.Phase
	requirements domain.Requirements
}

// coreFields are the topics every conversation should eventually cover.
var coreFields = []string{
	domain.FieldTargetUsers,
	domain.FieldFeatures,
	domain.FieldTimeline,
	domain.FieldBudget,
}

func buildPromptMessages(in promptInput) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: buildInstructionPrompt(in.phase)},
		{Role: "system", Content: buildStatePrompt(in)},
		{Role: "user", Content: in.userInput},
	}
}

func buildInstructionPrompt(phase domain.Phase) string {
	return strings.Join([]string{
		"Role:",
		"You are a friendly requirements analyst helping a non-technical person describe software they want built.",
		"",
		"Behavior Rules:",
		"1) Use plain language and avoid jargon unless the user used it first.",
		"2) Ask exactly one question per reply.",
		"3) Keep replies under 80 words.",
		"4) Build on what the user already said; never ask for information that is already known.",
		"",
		"Current Stage:",
		phaseGuidance(phase),
	}, "\n")
}

func phaseGuidance(phase domain.Phase) string {
	switch phase {
	case domain.PhaseDiscovery:
		return "Discovery. Learn who the users are, the main features, the timeline and the budget. Focus on whatever is still unknown."
	case domain.PhaseClarification:
		return "Clarification. Most basics are known. Ask about the look and feel, device features, hosting or performance expectations."
	case domain.PhaseSummary:
		return "Summary. Briefly recap what was gathered and tell the user they can download the requirements document."
	default:
		return "Introduction. Welcome the user and find out what kind of system they have in mind."
	}
}

func buildStatePrompt(in promptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session phase: %s\n", in.phase)

	projectType := string(in.context.ProjectType)
	if projectType == "" {
		projectType = "unknown"
	}
	fmt.Fprintf(&b, "Detected project type: %s\n", projectType)
	if len(in.context.TechnicalTerms) > 0 {
		fmt.Fprintf(&b, "Technical terms mentioned: %s\n", strings.Join(in.context.TechnicalTerms, ", "))
	}
	if concerns := clueCategories(in.context.ContextClues); len(concerns) > 0 {
		fmt.Fprintf(&b, "Concerns raised: %s\n", strings.Join(concerns, ", "))
	}
	if missing := missingFields(in.requirements); len(missing) > 0 {
		fmt.Fprintf(&b, "Still unknown: %s\n", strings.Join(missing, ", "))
	}

	reqs := in.requirements
	if reqs == nil {
		reqs = domain.Requirements{}
	}
	raw, err := json.MarshalIndent(reqs, "", "  ")
	if err != nil {
		raw = []byte("{}")
	}
	fmt.Fprintf(&b, "Requirements gathered so far:\n%s", raw)
	return b.String()
}

func clueCategories(clues []domain.ContextClue) []string {
	var out []string
	seen := make(map[string]struct{}, len(clues))
	for _, c := range clues {
		if _, ok := seen[c.Category]; ok {
			continue
		}
		seen[c.Category] = struct{}{}
		out = append(out, c.Category)
	}
	return out
}

func missingFields(rec domain.Requirements) []string {
	var out []string
	for _, f := range coreFields {
		if _, ok := rec[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}
