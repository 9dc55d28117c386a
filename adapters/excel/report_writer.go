// Package excel exports validation reports as workbooks for offline review.
package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"cmsig/domain/correlation"
	"cmsig/domain/signal"
	"cmsig/domain/validation"
)

// ReportWriter renders a validation run into an xlsx workbook with a
// summary sheet, a per-stage sheet and a correlations sheet.
type ReportWriter struct{}

// NewReportWriter creates a new report writer
func NewReportWriter() *ReportWriter {
	return &ReportWriter{}
}

// Write saves the workbook at path.
func (w *ReportWriter) Write(path string, report *validation.Report, correlations correlation.Batch, patterns signal.PatternMap) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeSummary(f, report); err != nil {
		return err
	}
	if err := w.writeStages(f, report); err != nil {
		return err
	}
	if err := w.writeCorrelations(f, correlations, patterns); err != nil {
		return err
	}

	// Drop the default sheet so Summary opens first.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func (w *ReportWriter) writeSummary(f *excelize.File, report *validation.Report) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	rows := [][]interface{}{
		{"Run ID", report.RunID.String()},
		{"Generated At", report.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Overall Passed", report.OverallPassed},
		{"Completed Stages", report.CompletedStages},
		{"Initial Patterns", report.Summary.InitialPatterns},
		{"Final Patterns", report.Summary.FinalPatterns},
		{"Filter Efficiency", report.Summary.FilterEfficiency},
		{"Quality Score", report.Summary.QualityScore},
		{"Quality Grade", report.Summary.QualityGrade},
		{"Duration", report.Duration.String()},
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	return nil
}

func (w *ReportWriter) writeStages(f *excelize.File, report *validation.Report) error {
	const sheet = "Stages"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	header := []interface{}{"Stage", "Passed", "Score", "Validated", "Filtered", "Warnings", "Errors", "Recommendations"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write stage header: %w", err)
	}

	for i, stage := range report.Stages {
		row := []interface{}{
			string(stage.Stage),
			stage.Passed,
			stage.Score,
			stage.PatternsValidated,
			stage.PatternsFiltered,
			len(stage.Warnings),
			len(stage.Errors),
			len(stage.Recommendations),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write stage row: %w", err)
		}
	}
	return nil
}

func (w *ReportWriter) writeCorrelations(f *excelize.File, correlations correlation.Batch, patterns signal.PatternMap) error {
	const sheet = "Correlations"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	header := []interface{}{"Pattern", "Frequency", "Occurrences", "Top CMS", "P(CMS|pattern)", "Specificity", "Method", "Bias-Adjusted", "Confidence"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write correlation header: %w", err)
	}

	rowNum := 2
	for _, key := range correlations.Keys() {
		corr := correlations[key]
		if _, ok := patterns[key]; !ok {
			continue
		}
		topCMS, posterior := corr.TopCMS()
		row := []interface{}{
			key.String(),
			corr.Frequency,
			corr.Occurrences,
			string(topCMS),
			posterior,
			corr.Specificity.Score,
			string(corr.Specificity.Method),
			corr.BiasAdjustedFrequency,
			string(corr.Confidence),
		}
		cell := fmt.Sprintf("A%d", rowNum)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write correlation row: %w", err)
		}
		rowNum++
	}
	return nil
}
