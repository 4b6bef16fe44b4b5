// Package session runs the guided conversation: each user turn is
// classified, folded into the requirements record, answered through the
// response gateway and used to re-evaluate the session phase.
package session

import (
	"time"

	"requirements-agent/internal/domain"
)

// State is everything known about one conversation. It is passed by value
// between the service and the store; Clone before sharing.
type State struct {
	ID           string                `json:"id"`
	Phase        domain.Phase          `json:"phase"`
	Context      domain.ProjectContext `json:"projectContext"`
	Requirements domain.Requirements   `json:"requirements"`
	History      []domain.Message      `json:"history"`
	Version      int64                 `json:"version"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Context.TechnicalTerms = append([]string{}, s.Context.TechnicalTerms...)
	out.Context.ContextClues = append([]domain.ContextClue{}, s.Context.ContextClues...)
	out.Requirements = s.Requirements.Clone()
	out.History = make([]domain.Message, len(s.History))
	for i, m := range s.History {
		if m.Classification != nil {
			c := *m.Classification
			c.ContextClues = append([]domain.ContextClue{}, c.ContextClues...)
			c.TechnicalTerms = append([]string{}, c.TechnicalTerms...)
			m.Classification = &c
		}
		out.History[i] = m
	}
	return out
}
