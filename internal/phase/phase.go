// Package phase advances the conversation through its stages. Phases only
// move forward; summary is terminal.
package phase

import "requirements-agent/internal/domain"

// ClarificationThreshold is the requirement count that must be exceeded
// before discovery gives way to clarification.
const ClarificationThreshold = 5

// Next evaluates one transition from current. At most one step is taken per
// call, matching one evaluation per conversation turn. There is no automatic
// trigger for summary; see Finish.
func Next(current domain.Phase, pc domain.ProjectContext, rec domain.Requirements) domain.Phase {
	switch current {
	case domain.PhaseIntroduction:
		if pc.ProjectType != "" {
			return domain.PhaseDiscovery
		}
	case domain.PhaseDiscovery:
		if len(rec) > ClarificationThreshold {
			return domain.PhaseClarification
		}
	}
	return current
}

// Finish moves a session to summary on explicit user request. Calling it on a
// session already in summary is a no-op.
func Finish(domain.Phase) domain.Phase {
	return domain.PhaseSummary
}
