package domain

// ProjectType is the coarse classification of the system a user describes.
type ProjectType string

const (
	ProjectTypeWeb    ProjectType = "web application"
	ProjectTypeMobile ProjectType = "mobile application"
	ProjectTypeAPI    ProjectType = "api/microservice"
	ProjectTypeData   ProjectType = "data/analytics"
)

// ContextClue is a keyword hit in a non-functional category together with the
// sentence it was found in. Context is empty when no single sentence holds
// the keyword.
type ContextClue struct {
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
	Context  string `json:"context"`
}

// Classification is the per-utterance result of keyword analysis.
type Classification struct {
	ProjectType    ProjectType   `json:"detectedProjectType,omitempty"`
	ContextClues   []ContextClue `json:"contextClues"`
	TechnicalTerms []string      `json:"technicalTerms"`
}

// IsEmpty reports whether nothing was detected.
func (c Classification) IsEmpty() bool {
	return c.ProjectType == "" && len(c.ContextClues) == 0 && len(c.TechnicalTerms) == 0
}

// ProjectContext accumulates classifications across a conversation.
type ProjectContext struct {
	ProjectType    ProjectType   `json:"projectType,omitempty"`
	TechnicalTerms []string      `json:"technicalTerms"`
	ContextClues   []ContextClue `json:"contextClues"`
}

// NewProjectContext returns an empty context with non-nil collections.
func NewProjectContext() ProjectContext {
	return ProjectContext{
		TechnicalTerms: []string{},
		ContextClues:   []ContextClue{},
	}
}

// Merge folds c into a copy of p. The first detected project type is kept:
// later detections, including empty ones, never replace it. Technical terms
// are unioned in first-seen order and clues are appended.
func (p ProjectContext) Merge(c Classification) ProjectContext {
	out := ProjectContext{
		ProjectType:    p.ProjectType,
		TechnicalTerms: make([]string, 0, len(p.TechnicalTerms)+len(c.TechnicalTerms)),
		ContextClues:   make([]ContextClue, 0, len(p.ContextClues)+len(c.ContextClues)),
	}
	if out.ProjectType == "" {
		out.ProjectType = c.ProjectType
	}

	seen := make(map[string]struct{}, len(p.TechnicalTerms))
	for _, terms := range [][]string{p.TechnicalTerms, c.TechnicalTerms} {
		for _, t := range terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out.TechnicalTerms = append(out.TechnicalTerms, t)
		}
	}
	out.ContextClues = append(out.ContextClues, p.ContextClues...)
	out.ContextClues = append(out.ContextClues, c.ContextClues...)
	return out
}
