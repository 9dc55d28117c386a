package pipeline

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	gonumstat "gonum.org/v1/gonum/stat"

	"cmsig/domain/core"
	"cmsig/domain/validation"
	"cmsig/internal/correlation"
)

// stageDistribution examines the shape of the pattern-frequency distribution
// itself: heavy skew or clustered outliers usually mean the collector saw an
// unrepresentative slice of the web.
func (p *Pipeline) stageDistribution(in Input, vctx *validation.Context) validation.StageResult {
	result := validation.StageResult{
		Passed:            true,
		PatternsValidated: len(vctx.Patterns),
		Metrics:           map[string]float64{},
	}

	keys := sortedKeys(vctx.Patterns)
	freqs := make([]float64, len(keys))
	for i, key := range keys {
		freqs[i] = vctx.Patterns[key].Frequency
	}
	if len(freqs) == 0 {
		result.Score = 1
		return result
	}

	mean, _ := stats.Mean(freqs)
	stdDev, _ := stats.StandardDeviation(freqs)
	minFreq, _ := stats.Min(freqs)
	maxFreq, _ := stats.Max(freqs)

	score := 1.0

	if len(freqs) >= 3 && stdDev > 0 {
		skewness := gonumstat.Skew(freqs, nil)
		kurtosis := gonumstat.ExKurtosis(freqs, nil)
		result.Metrics["skewness"] = skewness
		result.Metrics["kurtosis"] = kurtosis

		if math.Abs(skewness) > skewnessLimit {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"pattern-frequency distribution heavily skewed (skewness %.2f)", skewness))
			score -= 0.3
		}

		outliers := 0
		for i, key := range keys {
			z := math.Abs(freqs[i]-mean) / stdDev
			if z > outlierZScore {
				outliers++
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"pattern %s: frequency %.4f is a z=%.2f outlier against the pattern set", key, freqs[i], z))
				vctx.Flag(key, validation.PatternFlag{
					Type:       validation.FlagOutlier,
					Severity:   core.CategoryStatistical,
					Reason:     "frequency outlier against the pattern set",
					Confidence: 0.5,
					Details:    map[string]float64{"z_score": z},
				})
			}
		}
		result.Metrics["outlier_count"] = float64(outliers)
		penalty := 0.05 * float64(outliers)
		if penalty > 0.3 {
			penalty = 0.3
		}
		score -= penalty
	}

	// Wider frequency coverage means the pattern set spans both rare and
	// common signals, which is what detection rules want.
	coverage := maxFreq - minFreq
	result.Metrics["frequency_range"] = coverage
	score += 0.1 * coverage

	if score < 0.1 {
		score = 0.1
	}
	if score > 1 {
		score = 1
	}
	result.Score = score
	return result
}

// stageCorrelation audits the correlations against the dataset shape: an
// unbalanced CMS distribution makes every posterior suspect, and a
// near-perfect pattern/CMS correlation usually means the signal is circular
// (derived from the label) rather than evidence for it.
func (p *Pipeline) stageCorrelation(in Input, vctx *validation.Context) validation.StageResult {
	result := validation.StageResult{
		Passed:            true,
		PatternsValidated: len(vctx.Patterns),
		Metrics:           map[string]float64{},
	}

	balance := distributionBalance(in)
	hhi := correlation.HHI(in.Distribution, in.TotalSites)
	result.Metrics["cms_balance"] = balance
	result.Metrics["hhi"] = hhi

	if balance < balanceFloor {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"cms distribution balance %.2f below %.2f, sampling looks unrepresentative", balance, balanceFloor))
	}
	if hhi > concentrationCeiling {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"cms distribution concentrated (hhi %.2f), correlations inherit dataset skew", hhi))
	}

	score := balance
	for _, key := range sortedKeys(vctx.Patterns) {
		corr, ok := in.Correlations[key]
		if !ok {
			continue
		}
		cms, posterior := corr.TopCMS()
		if posterior > circularCorrelation {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"pattern %s: correlation %.3f with %s, possible artifact or circular signal", key, posterior, cms))
			vctx.Flag(key, validation.PatternFlag{
				Type:       validation.FlagSuspicious,
				Severity:   core.CategoryDataQuality,
				Reason:     "near-perfect correlation, possible artifact or circular signal",
				Confidence: posterior,
			})
			score -= 0.05
		}
	}

	if score < 0.1 {
		score = 0.1
	}
	result.Score = score
	return result
}

// distributionBalance is the normalized Shannon entropy of the CMS shares:
// 1 for a perfectly even distribution, 0 when one CMS dominates entirely.
func distributionBalance(in Input) float64 {
	if in.TotalSites == 0 || len(in.Distribution) <= 1 {
		return 0
	}
	entropy := 0.0
	for _, stat := range in.Distribution {
		share := float64(stat.Count) / float64(in.TotalSites)
		if share > 0 {
			entropy -= share * math.Log2(share)
		}
	}
	return entropy / math.Log2(float64(len(in.Distribution)))
}
