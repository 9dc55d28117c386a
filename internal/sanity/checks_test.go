package sanity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cmsig/domain/core"
	"cmsig/domain/correlation"
	"cmsig/domain/signal"
)

// consistentCorrelation builds a correlation for a pattern seen inA times in
// CMS A (of totalA sites) and inB times in CMS B (of totalB sites).
func consistentCorrelation(key string, inA, totalA, inB, totalB int) *correlation.Correlation {
	occ := inA + inB
	total := totalA + totalB
	return &correlation.Correlation{
		Pattern:     core.PatternKey(key),
		Frequency:   float64(occ) / float64(total),
		Occurrences: occ,
		PerCMS: map[signal.CMSLabel]correlation.CMSFrequency{
			"WordPress": {Frequency: float64(inA) / float64(totalA), Occurrences: inA, TotalSitesForCMS: totalA},
			"Drupal":    {Frequency: float64(inB) / float64(totalB), Occurrences: inB, TotalSitesForCMS: totalB},
		},
		CMSGivenPattern: map[signal.CMSLabel]correlation.ConditionalProbability{
			"WordPress": {Probability: float64(inA) / float64(occ), Count: inA},
			"Drupal":    {Probability: float64(inB) / float64(occ), Count: inB},
		},
	}
}

func cleanBatch() correlation.Batch {
	return correlation.Batch{
		"meta_generator_wordpress": consistentCorrelation("meta_generator_wordpress", 45, 60, 5, 40),
		"js_drupal_settings":       consistentCorrelation("js_drupal_settings", 2, 60, 30, 40),
	}
}

func TestRunCleanBatchPasses(t *testing.T) {
	result := Run(cleanBatch(), 100)

	assert.True(t, result.Passed)
	assert.Len(t, result.Checks, 6)
	for _, check := range result.Checks {
		assert.True(t, check.Passed, "check %s failed: %s", check.Name, check.Message)
	}
	assert.Empty(t, result.Warnings)
}

func TestCheckCorrelationSumsViolation(t *testing.T) {
	batch := cleanBatch()
	corr := batch["meta_generator_wordpress"]
	corr.CMSGivenPattern["WordPress"] = correlation.ConditionalProbability{Probability: 0.5, Count: 45}

	result := CheckCorrelationSums(batch)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "correlation sum")
	assert.Contains(t, result.Message, "meta_generator_wordpress")
}

func TestCheckRangesNegativeProbability(t *testing.T) {
	batch := cleanBatch()
	corr := batch["js_drupal_settings"]
	corr.CMSGivenPattern["Drupal"] = correlation.ConditionalProbability{Probability: -0.1, Count: 30}

	result := CheckRanges(batch)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "Negative correlation")
}

func TestCheckRangesProbabilityAboveOne(t *testing.T) {
	batch := cleanBatch()
	corr := batch["js_drupal_settings"]
	corr.CMSGivenPattern["Drupal"] = correlation.ConditionalProbability{Probability: 1.2, Count: 30}

	result := CheckRanges(batch)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "Correlation > 100%")
}

func TestCheckSupportWarnsOnThinEvidence(t *testing.T) {
	// 9 of 10 occurrences in one CMS: probability 0.9 on 10 occurrences.
	batch := correlation.Batch{
		"robots_wp_admin": consistentCorrelation("robots_wp_admin", 9, 60, 1, 40),
	}

	result := CheckSupport(batch)

	assert.True(t, result.Passed, "support issues warn, never fail")
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "robots_wp_admin")
}

func TestCheckSupportQuietOnStrongEvidence(t *testing.T) {
	batch := correlation.Batch{
		"meta_generator_wordpress": consistentCorrelation("meta_generator_wordpress", 45, 60, 5, 40),
	}

	result := CheckSupport(batch)

	assert.True(t, result.Passed)
	assert.Empty(t, result.Warnings)
}

func TestCheckBayesianConsistencyWarnsOnDrift(t *testing.T) {
	batch := cleanBatch()
	corr := batch["meta_generator_wordpress"]
	// Inflate the overall frequency so the identity breaks by more than 5%.
	corr.Frequency *= 1.2

	result := CheckBayesianConsistency(batch, 100)

	assert.True(t, result.Passed, "bayesian drift warns, never fails")
	assert.NotEmpty(t, result.Warnings)
}

func TestCheckBayesianConsistencyHoldsOnCleanData(t *testing.T) {
	result := CheckBayesianConsistency(cleanBatch(), 100)

	assert.True(t, result.Passed)
	assert.Empty(t, result.Warnings)
}

func TestCheckCountConservationViolation(t *testing.T) {
	batch := cleanBatch()
	corr := batch["js_drupal_settings"]
	corr.CMSGivenPattern["Drupal"] = correlation.ConditionalProbability{
		Probability: corr.CMSGivenPattern["Drupal"].Probability,
		Count:       corr.CMSGivenPattern["Drupal"].Count + 3,
	}

	result := CheckCountConservation(batch)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "Count mismatch")
	assert.Contains(t, result.Message, "js_drupal_settings")
}

func TestCheckImpossibilitiesPerCMSCountExceedsTotal(t *testing.T) {
	batch := cleanBatch()
	corr := batch["meta_generator_wordpress"]
	corr.CMSGivenPattern["WordPress"] = correlation.ConditionalProbability{Probability: 0.9, Count: corr.Occurrences + 5}

	result := CheckImpossibilities(batch)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "impossible count")
}

func TestCheckImpossibilitiesBadFrequency(t *testing.T) {
	batch := cleanBatch()
	batch["meta_generator_wordpress"].Frequency = 1.5

	result := CheckImpossibilities(batch)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "impossible overall frequency")
}

func TestRunPoolsWarnings(t *testing.T) {
	batch := correlation.Batch{
		"robots_wp_admin": consistentCorrelation("robots_wp_admin", 9, 60, 1, 40),
	}

	result := Run(batch, 100)

	assert.True(t, result.Passed)
	assert.NotEmpty(t, result.Warnings)
}

func TestRunEmptyBatch(t *testing.T) {
	result := Run(correlation.Batch{}, 0)

	assert.True(t, result.Passed)
	assert.Len(t, result.Checks, 6)
}
