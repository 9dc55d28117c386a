package pipeline

import (
	"fmt"

	"cmsig/domain/core"
	"cmsig/domain/validation"
	"cmsig/internal/stattest"
)

// stageFrequency drops patterns below the minimum occurrence count and warns
// about frequency extremes at both ends: near-zero frequencies on a handful
// of sites are likely noise, near-universal ones are likely collection
// artifacts rather than CMS evidence.
func (p *Pipeline) stageFrequency(in Input, vctx *validation.Context) validation.StageResult {
	result := validation.StageResult{Passed: true, Metrics: map[string]float64{}}

	initial := len(vctx.Patterns)
	minOccurrences := in.Options.MinOccurrences

	for _, key := range sortedKeys(vctx.Patterns) {
		pattern := vctx.Patterns[key]

		if pattern.SiteCount < minOccurrences {
			vctx.Remove(key)
			result.PatternsFiltered++
			continue
		}
		if pattern.Frequency < p.cfg.FrequencyThreshold && pattern.SiteCount < noiseSiteFloor {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"pattern %s: frequency %.4f on only %d sites, likely noise", key, pattern.Frequency, pattern.SiteCount))
		}
		if pattern.Frequency > artifactFrequency {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"pattern %s: frequency %.4f exceeds %.0f%%, likely a collection artifact", key, pattern.Frequency, artifactFrequency*100))
		}
	}

	result.PatternsValidated = len(vctx.Patterns)
	result.Score = 1
	if initial > 0 {
		filterRate := float64(result.PatternsFiltered) / float64(initial)
		result.Score = 1 - filterRate
		result.Metrics["filter_rate"] = filterRate
		if filterRate > filterRateWarning {
			result.Recommendations = append(result.Recommendations, fmt.Sprintf(
				"relax the minimum occurrence threshold: %.0f%% of patterns were filtered at min_occurrences=%d",
				filterRate*100, minOccurrences))
		}
	}
	result.Metrics["min_occurrences"] = float64(minOccurrences)
	return result
}

// stageSampleSize enforces the dataset-size floors. A breach of the absolute
// floor is the only non-recoverable failure in the pipeline.
func (p *Pipeline) stageSampleSize(in Input, vctx *validation.Context) validation.StageResult {
	result := validation.StageResult{
		Passed:            true,
		PatternsValidated: len(vctx.Patterns),
		Metrics:           map[string]float64{"total_sites": float64(in.TotalSites)},
	}

	if in.TotalSites < absoluteMinSites {
		result.Passed = false
		result.Score = 0
		result.Errors = append(result.Errors, validation.StageError{
			Category:    core.CategoryCritical,
			Message:     core.NewSampleSizeError(in.TotalSites, absoluteMinSites).Error(),
			Recoverable: false,
		})
		return result
	}

	if in.TotalSites < p.cfg.SampleSizeThreshold {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"only %d sites collected, %d recommended for stable statistics",
			in.TotalSites, p.cfg.SampleSizeThreshold))
	}

	power := stattest.StatisticalPower(in.TotalSites, minDetectableFrequency)
	result.Metrics["observed_power"] = power.ObservedPower
	result.Metrics["required_sample_size"] = float64(power.RequiredSampleSize)

	if power.ObservedPower < powerFloor {
		result.Recommendations = append(result.Recommendations, fmt.Sprintf(
			"collect more sites: power %.2f for a %.0f%% frequency difference, %d sites would reach %.1f",
			power.ObservedPower, minDetectableFrequency*100, power.RequiredSampleSize, powerFloor))
	}

	coverage := float64(in.TotalSites) / float64(p.cfg.SampleSizeThreshold)
	if coverage > 1 {
		coverage = 1
	}
	result.Score = power.ObservedPower
	if coverage > result.Score {
		result.Score = coverage
	}
	return result
}
