package domain

import "fmt"

// Phase is the coarse stage of the guided conversation.
type Phase string

const (
	PhaseIntroduction  Phase = "introduction"
	PhaseDiscovery     Phase = "discovery"
	PhaseClarification Phase = "clarification"
	PhaseSummary       Phase = "summary"
)

var phaseOrder = map[Phase]int{
	PhaseIntroduction:  0,
	PhaseDiscovery:     1,
	PhaseClarification: 2,
	PhaseSummary:       3,
}

// Rank returns the position of p in the phase ordering, or -1 if p is unknown.
func (p Phase) Rank() int {
	r, ok := phaseOrder[p]
	if !ok {
		return -1
	}
	return r
}

// Before reports whether p strictly precedes other.
func (p Phase) Before(other Phase) bool {
	return p.Rank() < other.Rank()
}

// ParsePhase validates s as a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if p.Rank() < 0 {
		return "", fmt.Errorf("domain: unknown phase %q", s)
	}
	return p, nil
}
