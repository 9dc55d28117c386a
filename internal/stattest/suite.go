package stattest

import (
	"fmt"

	domcorr "cmsig/domain/correlation"
	"cmsig/domain/signal"
)

// Method names a significance test.
type Method string

const (
	MethodChiSquare     Method = "chi_square"
	MethodFisherExact   Method = "fisher_exact"
	MethodNotApplicable Method = "not-applicable"
)

// Recommendation is the suite's verdict on using a correlation as evidence.
type Recommendation string

const (
	RecommendUse     Recommendation = "use"
	RecommendCaution Recommendation = "caution"
	RecommendReject  Recommendation = "reject"
)

// SelectionThresholds gate the chi-square/Fisher choice. Empirical constants
// preserved from field experience; override per suite if needed.
type SelectionThresholds struct {
	MinCellCount  int // every cell must reach this for chi-square
	MinTotalSites int // dataset floor for chi-square
}

// DefaultSelectionThresholds returns the standard gates.
func DefaultSelectionThresholds() SelectionThresholds {
	return SelectionThresholds{MinCellCount: 5, MinTotalSites: 50}
}

// SignificanceResult is the outcome of testing one pattern's association
// with its most probable CMS.
type SignificanceResult struct {
	Pattern   string  `json:"pattern"`
	TargetCMS string  `json:"target_cms"`
	Method    Method  `json:"method"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Reason    string  `json:"reason,omitempty"`

	ChiSquare *ChiSquareResult `json:"chi_square,omitempty"`
	Fisher    *FisherResult    `json:"fisher,omitempty"`

	Recommendation Recommendation `json:"recommendation"`
}

// Suite selects and runs the right hypothesis test per correlation.
type Suite struct {
	thresholds SelectionThresholds
}

// NewSuite creates a suite with the default selection thresholds.
func NewSuite() *Suite {
	return &Suite{thresholds: DefaultSelectionThresholds()}
}

// NewSuiteWithThresholds creates a suite with custom gates.
func NewSuiteWithThresholds(t SelectionThresholds) *Suite {
	return &Suite{thresholds: t}
}

// TestSignificance builds the 2x2 contingency table for the pattern against
// its most probable CMS and runs the appropriate test: chi-square with Yates
// when every cell is large enough and the dataset clears the floor, Fisher's
// exact test otherwise. Degenerate tables get an explicit not-applicable
// verdict instead of a defaulted p-value.
func (s *Suite) TestSignificance(patternName string, corr *domcorr.Correlation, dist signal.Distribution, totalSites int) SignificanceResult {
	result := SignificanceResult{
		Pattern:        patternName,
		Method:         MethodNotApplicable,
		PValue:         1,
		Recommendation: RecommendReject,
	}

	targetCMS, _ := corr.TopCMS()
	if targetCMS == "" {
		result.Reason = "no conditional probabilities available"
		return result
	}
	result.TargetCMS = string(targetCMS)

	targetStat, ok := dist[targetCMS]
	if !ok {
		result.Reason = fmt.Sprintf("cms %s missing from distribution", targetCMS)
		return result
	}

	table := BuildTable(
		corr.CMSGivenPattern[targetCMS].Count,
		corr.Occurrences,
		targetStat.Count,
		totalSites,
	)
	if table.Degenerate() {
		result.Reason = "degenerate contingency table (zero row or column)"
		return result
	}

	if table.MinCell() >= s.thresholds.MinCellCount && totalSites >= s.thresholds.MinTotalSites {
		chi := ChiSquare(table)
		result.Method = MethodChiSquare
		result.Statistic = chi.Statistic
		result.PValue = chi.PValue
		result.ChiSquare = &chi
	} else {
		fisher := FisherExact(table)
		result.Method = MethodFisherExact
		result.Statistic = fisher.OddsRatio
		result.PValue = fisher.PValue
		result.Fisher = &fisher
	}

	result.Recommendation = s.recommend(result.PValue, corr, totalSites)
	return result
}

// recommend grades the evidence: "use" needs strong significance and high
// specificity, "caution" covers significant results on marginal samples.
func (s *Suite) recommend(pValue float64, corr *domcorr.Correlation, totalSites int) Recommendation {
	highSpecificity := corr.Specificity.Score >= 0.7
	marginalSample := corr.Occurrences < 30 || totalSites < s.thresholds.MinTotalSites

	switch {
	case pValue < 0.01 && highSpecificity && !marginalSample:
		return RecommendUse
	case pValue < 0.05:
		return RecommendCaution
	default:
		return RecommendReject
	}
}
