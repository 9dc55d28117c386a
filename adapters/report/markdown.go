// Package report renders validation reports as markdown, with optional HTML
// conversion for web-facing collaborators.
package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"

	"cmsig/domain/correlation"
	"cmsig/domain/signal"
	"cmsig/domain/validation"
	"cmsig/ports"
)

// MarkdownRenderer renders an analysis run as a markdown document.
type MarkdownRenderer struct{}

var _ ports.ReportRenderer = (*MarkdownRenderer)(nil)

// NewMarkdownRenderer creates a new markdown renderer
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// Render produces the markdown report.
func (r *MarkdownRenderer) Render(report *validation.Report, correlations correlation.Batch, patterns signal.PatternMap) ([]byte, error) {
	var b strings.Builder

	verdict := "FAILED"
	if report.OverallPassed {
		verdict = "PASSED"
	}
	fmt.Fprintf(&b, "# Validation Report %s\n\n", report.RunID)
	if !report.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&b, "**Verdict: %s** | Grade %s | Quality %.2f | %d/%d patterns retained (filter efficiency %.0f%%)\n\n",
		verdict,
		report.Summary.QualityGrade,
		report.Summary.QualityScore,
		report.Summary.FinalPatterns,
		report.Summary.InitialPatterns,
		report.Summary.FilterEfficiency*100,
	)

	b.WriteString("## Stages\n\n")
	b.WriteString("| Stage | Passed | Score | Validated | Filtered |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, stage := range report.Stages {
		fmt.Fprintf(&b, "| %s | %v | %.2f | %d | %d |\n",
			stage.Stage, stage.Passed, stage.Score, stage.PatternsValidated, stage.PatternsFiltered)
	}
	b.WriteString("\n")

	for _, stage := range report.Stages {
		if len(stage.Warnings) == 0 && len(stage.Errors) == 0 && len(stage.Recommendations) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", stage.Stage)
		for _, e := range stage.Errors {
			fmt.Fprintf(&b, "- **error** (%s): %s\n", e.Category, e.Message)
		}
		for _, warning := range stage.Warnings {
			fmt.Fprintf(&b, "- warning: %s\n", warning)
		}
		for _, rec := range stage.Recommendations {
			fmt.Fprintf(&b, "- recommendation: %s\n", rec)
		}
		b.WriteString("\n")
	}

	if len(correlations) > 0 {
		b.WriteString("## Validated Correlations\n\n")
		b.WriteString("| Pattern | Freq | Occ | Top CMS | Posterior | Specificity | Confidence |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, key := range correlations.Keys() {
			if _, ok := patterns[key]; !ok {
				continue
			}
			corr := correlations[key]
			topCMS, posterior := corr.TopCMS()
			fmt.Fprintf(&b, "| %s | %.3f | %d | %s | %.3f | %.2f (%s) | %s |\n",
				key, corr.Frequency, corr.Occurrences, topCMS, posterior,
				corr.Specificity.Score, corr.Specificity.Method, corr.Confidence)
		}
		b.WriteString("\n")
	}

	return []byte(b.String()), nil
}

// RenderHTML converts the markdown report to HTML.
func (r *MarkdownRenderer) RenderHTML(report *validation.Report, correlations correlation.Batch, patterns signal.PatternMap) ([]byte, error) {
	md, err := r.Render(report, correlations, patterns)
	if err != nil {
		return nil, err
	}
	return markdown.ToHTML(md, nil, nil), nil
}
