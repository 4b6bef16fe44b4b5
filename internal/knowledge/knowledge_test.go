package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"requirements-agent/internal/domain"
)

func TestDefault_LoadsEmbeddedTables(t *testing.T) {
	b := Default()
	require.NotNil(t, b)

	var types []domain.ProjectType
	for _, e := range b.ProjectTypes {
		types = append(types, e.Type)
	}
	require.Equal(t, []domain.ProjectType{
		domain.ProjectTypeWeb,
		domain.ProjectTypeMobile,
		domain.ProjectTypeAPI,
		domain.ProjectTypeData,
	}, types)

	var categories []string
	for _, c := range b.ContextClues {
		categories = append(categories, c.Category)
	}
	require.Equal(t, []string{"urgency", "budget", "scale", "compliance", "integration"}, categories)
	require.Contains(t, b.TechnicalTerms, "api")
	require.Same(t, b, Default())
}

func TestLoad_LowercasesKeywords(t *testing.T) {
	b, err := Load(strings.NewReader(`
projectTypes:
  - type: web application
    keywords: [" Web App "]
technicalTerms: [GraphQL]
`))
	require.NoError(t, err)
	require.Equal(t, []string{"web app"}, b.ProjectTypes[0].Keywords)
	require.Equal(t, []string{"graphql"}, b.TechnicalTerms)
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty", doc: ``, want: "empty document"},
		{name: "no project types", doc: `technicalTerms: [api]`, want: "at least one project type"},
		{name: "unnamed type", doc: "projectTypes:\n  - keywords: [a]", want: "has no name"},
		{name: "no keywords", doc: "projectTypes:\n  - type: x", want: "keyword list is empty"},
		{name: "blank keyword", doc: "projectTypes:\n  - type: x\n    keywords: [\" \"]", want: "blank keyword"},
		{name: "unknown field", doc: "projectTypes:\n  - type: x\n    keywords: [a]\nbogus: 1", want: "decode"},
		{name: "bad clarification", doc: "projectTypes:\n  - type: x\n    keywords: [a]\nclarifications:\n  - field: hosting", want: "needs a field and a question"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.doc))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestClarificationsFor(t *testing.T) {
	b := Default()

	fields := func(cs []Clarification) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Field)
		}
		return out
	}

	require.Equal(t, []string{"userInterface", "deviceFeatures", "hosting", "performance"},
		fields(b.ClarificationsFor(domain.ProjectTypeMobile)))
	require.Equal(t, []string{"hosting", "performance"},
		fields(b.ClarificationsFor(domain.ProjectTypeAPI)))
	require.Equal(t, []string{"hosting", "performance"}, fields(b.ClarificationsFor("")))
}

func TestIsClarificationField(t *testing.T) {
	b := Default()
	require.True(t, b.IsClarificationField(domain.FieldHosting))
	require.True(t, b.IsClarificationField(domain.FieldDeviceFeatures))
	require.False(t, b.IsClarificationField(domain.FieldBudget))
}
