package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies validation failures by how the pipeline must react.
type ErrorCategory string

const (
	// CategoryCritical halts usefulness of the whole run (e.g. sample size
	// below the absolute floor). Non-recoverable.
	CategoryCritical ErrorCategory = "critical_failure"
	// CategoryMathematical marks a computed quantity that violates one of
	// its own invariants. Recoverable.
	CategoryMathematical ErrorCategory = "mathematical_inconsistency"
	// CategoryStatistical marks power/significance/skew findings. Informational.
	CategoryStatistical ErrorCategory = "statistical"
	// CategoryDataQuality marks suspicious frequency extremes or unbalanced sampling.
	CategoryDataQuality ErrorCategory = "data_quality"
)

// Domain errors - centralized error definitions
var (
	ErrEmptyStore       = errors.New("signal store is empty")
	ErrSampleTooSmall   = errors.New("sample size below absolute minimum")
	ErrMalformedPattern = errors.New("malformed signal pattern")
	ErrUnknownStage     = errors.New("unknown pipeline stage")
	ErrNoDistribution   = errors.New("cms distribution unavailable")

	// Mathematical inconsistency errors
	ErrProbabilityRange   = errors.New("probability outside [0,1]")
	ErrProbabilitySum     = errors.New("conditional probabilities do not sum to one")
	ErrCountConservation  = errors.New("per-cms counts do not match overall occurrences")
	ErrCountExceedsTotal  = errors.New("count exceeds its own total")
	ErrFrequencyMismatch  = errors.New("frequency does not match count/total")
	ErrBayesInconsistency = errors.New("bayesian identity violated")
)

// NewInconsistencyError reports an invariant violation with the specific
// pattern/CMS pair and the numeric discrepancy.
func NewInconsistencyError(sentinel error, pattern, cms string, got, want float64) error {
	if cms == "" {
		return fmt.Errorf("%w: pattern %s: got %.6f, want %.6f", sentinel, pattern, got, want)
	}
	return fmt.Errorf("%w: pattern %s, cms %s: got %.6f, want %.6f", sentinel, pattern, cms, got, want)
}

// NewMalformedPatternError rejects an input pattern instead of coercing it.
func NewMalformedPatternError(pattern, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedPattern, pattern, reason)
}

// NewSampleSizeError reports a breach of the absolute sample-size floor.
func NewSampleSizeError(totalSites, floor int) error {
	return fmt.Errorf("%w: %d sites, need at least %d", ErrSampleTooSmall, totalSites, floor)
}

// Error checking helpers
func IsCritical(err error) bool {
	return errors.Is(err, ErrSampleTooSmall)
}

func IsMathematical(err error) bool {
	return errors.Is(err, ErrProbabilityRange) ||
		errors.Is(err, ErrProbabilitySum) ||
		errors.Is(err, ErrCountConservation) ||
		errors.Is(err, ErrCountExceedsTotal) ||
		errors.Is(err, ErrFrequencyMismatch) ||
		errors.Is(err, ErrBayesInconsistency)
}

// Categorize maps an error to its pipeline category.
func Categorize(err error) ErrorCategory {
	switch {
	case IsCritical(err):
		return CategoryCritical
	case IsMathematical(err):
		return CategoryMathematical
	case errors.Is(err, ErrMalformedPattern):
		return CategoryDataQuality
	default:
		return CategoryStatistical
	}
}
