// Package document renders the accumulated requirements as a Markdown report.
package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"requirements-agent/internal/domain"
)

const defaultTitle = "Project Requirements"

var nextSteps = []string{
	"Review this document with your development team or vendor.",
	"Prioritize the features needed for a first release.",
	"Confirm the timeline and budget against the agreed scope.",
	"Produce wireframes or a clickable prototype to validate the design.",
	"Schedule a follow-up conversation to resolve open questions.",
}

var amountPattern = regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d+)?)\s?([kKmM])?\b`)

// Render builds the report. Field values are written verbatim; only
// non-empty string fields get a section.
func Render(pc domain.ProjectContext, rec domain.Requirements, phase domain.Phase) string {
	var b strings.Builder

	title := defaultTitle
	if pc.ProjectType != "" {
		title = titleCase(string(pc.ProjectType)) + " Requirements"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## Project Overview\n\n")
	if pc.ProjectType != "" {
		fmt.Fprintf(&b, "- Project type: %s\n", titleCase(string(pc.ProjectType)))
	} else {
		b.WriteString("- Project type: not yet determined\n")
	}
	fmt.Fprintf(&b, "- Conversation stage: %s\n\n", phase)

	for _, field := range rec.Keys() {
		text, ok := rec.Text(field)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", Heading(field), text)
		if field == domain.FieldBudget {
			if amount, ok := ParseAmount(text); ok {
				fmt.Fprintf(&b, "Estimated amount: $%s\n\n", amount.StringFixed(2))
			}
		}
	}

	if len(pc.TechnicalTerms) > 0 {
		b.WriteString("## Technical Considerations\n\n")
		for _, term := range pc.TechnicalTerms {
			fmt.Fprintf(&b, "- %s\n", term)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Next Steps\n\n")
	for i, step := range nextSteps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return b.String()
}

// Filename returns the export file name for a document generated at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("ai-generated-requirements-%d.md", t.UnixMilli())
}

// Heading turns a camelCase field name into a title, e.g. targetUsers ->
// "Target Users".
func Heading(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte(' ')
			b.WriteRune(r)
		case r == '_' || r == '-':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseAmount finds the first dollar amount in s. A trailing k or m
// multiplies by a thousand or a million.
func ParseAmount(s string) (decimal.Decimal, bool) {
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		d = d.Mul(decimal.NewFromInt(1_000))
	case "m":
		d = d.Mul(decimal.NewFromInt(1_000_000))
	}
	return d, true
}

func titleCase(s string) string {
	runes := []rune(s)
	upper := true
	for i, r := range runes {
		if upper {
			runes[i] = unicode.ToUpper(r)
		}
		upper = r == ' ' || r == '/'
	}
	return string(runes)
}
