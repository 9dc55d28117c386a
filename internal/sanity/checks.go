// Package sanity audits a correlation batch for internal mathematical
// contradictions before any correlation may drive detection rules. The six
// checks are pure and order-independent; the suite passes only if all six
// pass, and warnings from every check are pooled for the final report.
package sanity

import (
	"fmt"
	"math"
	"sort"

	"cmsig/domain/correlation"
	"cmsig/domain/signal"
)

// Fixed tolerances. Not configurable, so test expectations stay reproducible.
const (
	// sumTolerance is the absolute slack allowed on sum(P(CMS|pattern)).
	sumTolerance = 0.01
	// bayesRelTolerance is the relative error allowed on the Bayesian identity.
	bayesRelTolerance = 0.05
	// supportCorrelation / supportOccurrences define the high-confidence,
	// low-evidence warning zone.
	supportCorrelation = 0.7
	supportOccurrences = 30
)

// CheckResult is the outcome of one consistency algorithm.
type CheckResult struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Message  string   `json:"message"`
	Warnings []string `json:"warnings,omitempty"`
}

// SuiteResult aggregates all six checks.
type SuiteResult struct {
	Passed   bool          `json:"passed"`
	Checks   []CheckResult `json:"checks"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Run executes all six checks over the batch. totalSites is needed for the
// Bayesian identity, which compares against the CMS priors.
func Run(batch correlation.Batch, totalSites int) SuiteResult {
	checks := []CheckResult{
		CheckCorrelationSums(batch),
		CheckRanges(batch),
		CheckSupport(batch),
		CheckBayesianConsistency(batch, totalSites),
		CheckCountConservation(batch),
		CheckImpossibilities(batch),
	}

	result := SuiteResult{Passed: true, Checks: checks}
	for _, c := range checks {
		if !c.Passed {
			result.Passed = false
		}
		result.Warnings = append(result.Warnings, c.Warnings...)
	}
	return result
}

// CheckCorrelationSums verifies sum(P(CMS|pattern)) is 1 within 1% absolute
// tolerance for every pattern. A violation is a hard failure naming the
// offending pattern.
func CheckCorrelationSums(batch correlation.Batch) CheckResult {
	result := CheckResult{Name: "correlation_sum", Passed: true, Message: "all conditional probabilities sum to 1"}
	for _, key := range batch.Keys() {
		corr := batch[key]
		if len(corr.CMSGivenPattern) == 0 {
			continue
		}
		sum := 0.0
		for _, cond := range corr.CMSGivenPattern {
			sum += cond.Probability
		}
		if math.Abs(sum-1.0) > sumTolerance {
			result.Passed = false
			result.Message = fmt.Sprintf("correlation sum check failed for pattern %s: probabilities sum to %.4f, expected 1.0", key, sum)
			return result
		}
	}
	return result
}

// CheckRanges verifies every conditional probability lies in [0,1]. Any
// negative or >1 value is a hard failure.
func CheckRanges(batch correlation.Batch) CheckResult {
	result := CheckResult{Name: "range", Passed: true, Message: "all probabilities within [0,1]"}
	for _, key := range batch.Keys() {
		corr := batch[key]
		for _, cms := range sortedCMS(corr) {
			p := corr.CMSGivenPattern[cms].Probability
			if p < 0 {
				result.Passed = false
				result.Message = fmt.Sprintf("Negative correlation for pattern %s, cms %s: %.4f", key, cms, p)
				return result
			}
			if p > 1 {
				result.Passed = false
				result.Message = fmt.Sprintf("Correlation > 100%% for pattern %s, cms %s: %.4f", key, cms, p)
				return result
			}
		}
	}
	return result
}

// CheckSupport warns (never fails) when a strong correlation rests on thin
// evidence: probability above 0.7 backed by fewer than 30 occurrences.
func CheckSupport(batch correlation.Batch) CheckResult {
	result := CheckResult{Name: "support", Passed: true, Message: "correlation support adequate"}
	for _, key := range batch.Keys() {
		corr := batch[key]
		for _, cms := range sortedCMS(corr) {
			cond := corr.CMSGivenPattern[cms]
			if cond.Probability > supportCorrelation && corr.Occurrences < supportOccurrences {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"pattern %s: correlation %.2f with %s backed by only %d occurrences",
					key, cond.Probability, cms, corr.Occurrences))
			}
		}
	}
	if len(result.Warnings) > 0 {
		result.Message = fmt.Sprintf("%d correlations have high confidence but low evidence", len(result.Warnings))
	}
	return result
}

// CheckBayesianConsistency verifies P(CMS|pattern)*P(pattern) equals
// P(pattern|CMS)*P(CMS) within 5% relative error for every (pattern, CMS)
// pair. Violations are warnings only: they typically indicate benign
// rounding, not corruption.
func CheckBayesianConsistency(batch correlation.Batch, totalSites int) CheckResult {
	result := CheckResult{Name: "bayesian_consistency", Passed: true, Message: "bayesian identity holds"}
	if totalSites == 0 {
		return result
	}
	for _, key := range batch.Keys() {
		corr := batch[key]
		for _, cms := range sortedCMS(corr) {
			cond := corr.CMSGivenPattern[cms]
			perCMS, ok := corr.PerCMS[cms]
			if !ok || perCMS.TotalSitesForCMS == 0 {
				continue
			}
			prior := float64(perCMS.TotalSitesForCMS) / float64(totalSites)

			lhs := cond.Probability * corr.Frequency
			rhs := perCMS.Frequency * prior
			if rhs == 0 && lhs == 0 {
				continue
			}
			denom := math.Max(math.Abs(lhs), math.Abs(rhs))
			if math.Abs(lhs-rhs)/denom > bayesRelTolerance {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"pattern %s, cms %s: P(cms|pattern)*P(pattern)=%.6f but P(pattern|cms)*P(cms)=%.6f",
					key, cms, lhs, rhs))
			}
		}
	}
	if len(result.Warnings) > 0 {
		result.Message = fmt.Sprintf("%d (pattern, cms) pairs deviate from the bayesian identity", len(result.Warnings))
	}
	return result
}

// CheckCountConservation verifies the per-CMS counts for each pattern sum
// exactly to that pattern's overall occurrence count. Any mismatch is a hard
// failure.
func CheckCountConservation(batch correlation.Batch) CheckResult {
	result := CheckResult{Name: "count_conservation", Passed: true, Message: "per-cms counts conserved"}
	for _, key := range batch.Keys() {
		corr := batch[key]
		if len(corr.CMSGivenPattern) == 0 {
			continue
		}
		sum := 0
		for _, cond := range corr.CMSGivenPattern {
			sum += cond.Count
		}
		if sum != corr.Occurrences {
			result.Passed = false
			result.Message = fmt.Sprintf("Count mismatch for pattern %s: per-cms counts sum to %d, overall occurrences %d", key, sum, corr.Occurrences)
			return result
		}
	}
	return result
}

// CheckImpossibilities catches outright impossible numbers: a per-CMS count
// above the pattern's overall occurrences, or any frequency outside [0,1].
func CheckImpossibilities(batch correlation.Batch) CheckResult {
	result := CheckResult{Name: "impossibility", Passed: true, Message: "no mathematical impossibilities"}
	for _, key := range batch.Keys() {
		corr := batch[key]
		if corr.Frequency < 0 || corr.Frequency > 1 {
			result.Passed = false
			result.Message = fmt.Sprintf("impossible overall frequency %.4f for pattern %s", corr.Frequency, key)
			return result
		}
		for _, cms := range sortedCMS(corr) {
			if count := corr.CMSGivenPattern[cms].Count; count > corr.Occurrences {
				result.Passed = false
				result.Message = fmt.Sprintf("impossible count for pattern %s: cms %s has %d occurrences, pattern total is %d", key, cms, count, corr.Occurrences)
				return result
			}
			if f := corr.PerCMS[cms].Frequency; f < 0 || f > 1 {
				result.Passed = false
				result.Message = fmt.Sprintf("impossible per-cms frequency %.4f for pattern %s, cms %s", f, key, cms)
				return result
			}
		}
	}
	return result
}

func sortedCMS(corr *correlation.Correlation) []signal.CMSLabel {
	labels := make([]signal.CMSLabel, 0, len(corr.CMSGivenPattern))
	for cms := range corr.CMSGivenPattern {
		labels = append(labels, cms)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}
