package ports

import (
	"cmsig/domain/correlation"
	"cmsig/domain/signal"
	"cmsig/domain/validation"
)

// ReportRenderer formats a validation report plus its supporting data for a
// human or a file. Renderers never change the verdict; they only present it.
type ReportRenderer interface {
	Render(report *validation.Report, correlations correlation.Batch, patterns signal.PatternMap) ([]byte, error)
}
