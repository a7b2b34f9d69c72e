package app

import (
	"fmt"
	"strings"

	"lessonforge/pkg/domain"
)

// BuildMarkdown renders the canonical lesson document. The section ordering
// (Objectives, Plan, body sections in plan order, Quality) is a
// compatibility contract for downstream renderers; identical inputs yield
// byte-identical output.
func BuildMarkdown(title string, objectives []string, plan []domain.PlanItem, sections []domain.Section, quality domain.QualityReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## Objectives\n\n")
	for _, objective := range objectives {
		fmt.Fprintf(&b, "- %s\n", objective)
	}
	b.WriteString("\n")

	b.WriteString("## Plan\n\n")
	for i, item := range plan {
		if len(item.KeyPoints) > 0 {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, item.Title, strings.Join(item.KeyPoints, "; "))
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item.Title)
		}
	}
	b.WriteString("\n")

	for _, section := range sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", section.Title, strings.TrimSpace(section.BodyText))
	}

	b.WriteString("## Quality\n\n")
	fmt.Fprintf(&b, "- Readability score: %.1f (%s)\n", quality.Score, quality.Level)
	fmt.Fprintf(&b, "- Word count: %d\n", quality.WordCount)
	fmt.Fprintf(&b, "- Audience appropriate: %t\n", quality.AudienceAppropriate)

	return b.String()
}
