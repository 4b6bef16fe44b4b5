// Package analyzer classifies user utterances against the keyword knowledge
// base. Matching is plain substring search on the lower-cased text: there is
// no stemming, negation handling or word-boundary check.
package analyzer

import (
	"strings"

	"requirements-agent/internal/domain"
	"requirements-agent/internal/knowledge"
)

// Analyzer is stateless apart from its read-only knowledge base and is safe
// for concurrent use.
type Analyzer struct {
	kb *knowledge.Base
}

// New returns an Analyzer over kb, or over the embedded default when kb is nil.
func New(kb *knowledge.Base) *Analyzer {
	if kb == nil {
		kb = knowledge.Default()
	}
	return &Analyzer{kb: kb}
}

// Analyze classifies utterance. When keywords from several project types
// match, the type listed last in the knowledge base wins.
func (a *Analyzer) Analyze(utterance string) domain.Classification {
	lower := strings.ToLower(utterance)
	out := domain.Classification{
		ContextClues:   []domain.ContextClue{},
		TechnicalTerms: []string{},
	}

	for _, e := range a.kb.ProjectTypes {
		if containsAny(lower, e.Keywords) {
			out.ProjectType = e.Type
		}
	}

	var sentences []string
	for _, c := range a.kb.ContextClues {
		for _, kw := range c.Keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			if sentences == nil {
				sentences = splitSentences(utterance)
			}
			out.ContextClues = append(out.ContextClues, domain.ContextClue{
				Category: c.Category,
				Keyword:  kw,
				Context:  sentenceWith(sentences, kw),
			})
		}
	}

	for _, term := range a.kb.TechnicalTerms {
		if strings.Contains(lower, term) {
			out.TechnicalTerms = append(out.TechnicalTerms, term)
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func splitSentences(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
}

// sentenceWith returns the first sentence containing kw, trimmed, or "" when
// the keyword only matches across a sentence boundary.
func sentenceWith(sentences []string, kw string) string {
	for _, s := range sentences {
		if strings.Contains(strings.ToLower(s), kw) {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
