// Package knowledge holds the static keyword tables that drive utterance
// classification and the clarification questions asked per project type.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"requirements-agent/internal/domain"
)

//go:embed keywords.yaml
var defaultYAML string

// ProjectTypeEntry maps a project type to its trigger keywords.
type ProjectTypeEntry struct {
	Type     domain.ProjectType `yaml:"type"`
	Keywords []string           `yaml:"keywords"`
}

// ClueCategory maps a non-functional concern to its trigger keywords.
type ClueCategory struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Clarification is a follow-up question that fills one requirement field.
// An empty ProjectTypes list means the question applies to every type.
type Clarification struct {
	Field        string               `yaml:"field" json:"field"`
	Question     string               `yaml:"question" json:"question"`
	ProjectTypes []domain.ProjectType `yaml:"projectTypes" json:"-"`
}

// Base is the full set of keyword tables. Slices keep the file's order.
type Base struct {
	ProjectTypes   []ProjectTypeEntry `yaml:"projectTypes"`
	ContextClues   []ClueCategory     `yaml:"contextClues"`
	TechnicalTerms []string           `yaml:"technicalTerms"`
	Clarifications []Clarification    `yaml:"clarifications"`
}

var (
	defaultOnce sync.Once
	defaultBase *Base
)

// Default returns the embedded knowledge base. It is parsed once and must
// not be modified by callers.
func Default() *Base {
	defaultOnce.Do(func() {
		b, err := Load(strings.NewReader(defaultYAML))
		if err != nil {
			panic("knowledge: embedded keywords.yaml is invalid: " + err.Error())
		}
		defaultBase = b
	})
	return defaultBase
}

// Load parses and validates a knowledge base document. Keywords are
// lower-cased so matching can run against a lower-cased utterance.
func Load(r io.Reader) (*Base, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var b Base
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("knowledge: empty document")
		}
		return nil, fmt.Errorf("knowledge: decode: %w", err)
	}
	if err := b.normalize(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *Base) normalize() error {
	if len(b.ProjectTypes) == 0 {
		return errors.New("knowledge: at least one project type is required")
	}
	for i := range b.ProjectTypes {
		e := &b.ProjectTypes[i]
		if strings.TrimSpace(string(e.Type)) == "" {
			return fmt.Errorf("knowledge: project type #%d has no name", i)
		}
		kw, err := lowerKeywords(e.Keywords)
		if err != nil {
			return fmt.Errorf("knowledge: project type %q: %w", e.Type, err)
		}
		e.Keywords = kw
	}
	for i := range b.ContextClues {
		c := &b.ContextClues[i]
		if strings.TrimSpace(c.Category) == "" {
			return fmt.Errorf("knowledge: clue category #%d has no name", i)
		}
		kw, err := lowerKeywords(c.Keywords)
		if err != nil {
			return fmt.Errorf("knowledge: clue category %q: %w", c.Category, err)
		}
		c.Keywords = kw
	}
	if len(b.TechnicalTerms) > 0 {
		terms, err := lowerKeywords(b.TechnicalTerms)
		if err != nil {
			return fmt.Errorf("knowledge: technical terms: %w", err)
		}
		b.TechnicalTerms = terms
	}
	for i, c := range b.Clarifications {
		if strings.TrimSpace(c.Field) == "" || strings.TrimSpace(c.Question) == "" {
			return fmt.Errorf("knowledge: clarification #%d needs a field and a question", i)
		}
	}
	return nil
}

func lowerKeywords(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, errors.New("keyword list is empty")
	}
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return nil, errors.New("blank keyword")
		}
		out = append(out, k)
	}
	return out, nil
}

// ClarificationsFor returns the questions relevant to pt. With an empty pt
// only the questions that apply to every project type are returned.
func (b *Base) ClarificationsFor(pt domain.ProjectType) []Clarification {
	var out []Clarification
	for _, c := range b.Clarifications {
		if len(c.ProjectTypes) == 0 {
			out = append(out, c)
			continue
		}
		for _, t := range c.ProjectTypes {
			if t == pt {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// IsClarificationField reports whether field is filled by a clarification
// question rather than by keyword extraction.
func (b *Base) IsClarificationField(field string) bool {
	for _, c := range b.Clarifications {
		if c.Field == field {
			return true
		}
	}
	return false
}
