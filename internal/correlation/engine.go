// Package correlation derives per-pattern CMS association statistics from
// the aggregated signal store: conditional frequencies, Bayesian posteriors,
// concentration and specificity scores, and bias-corrected frequencies.
package correlation

import (
	"math"

	"github.com/montanaflynn/stats"

	"cmsig/domain/core"
	domcorr "cmsig/domain/correlation"
	"cmsig/domain/signal"
)

// Thresholds are the empirically chosen engine constants. They are preserved
// from field experience rather than derived; override per engine if needed.
type Thresholds struct {
	// DiscriminativeMinSites gates the entropy-based specificity score.
	// Below it, entropy estimates are unstable on small per-CMS samples and
	// the coefficient-of-variation fallback is used instead.
	DiscriminativeMinSites int

	// Confidence tier boundaries.
	HighSpecificity float64
	LowSpecificity  float64
	HighOccurrences int
	LowOccurrences  int
}

// DefaultThresholds returns the standard engine constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DiscriminativeMinSites: 30,
		HighSpecificity:        0.7,
		LowSpecificity:         0.3,
		HighOccurrences:        30,
		LowOccurrences:         10,
	}
}

// Engine computes correlation batches. Safe for concurrent use; it holds no
// mutable state.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates an engine with the default thresholds.
func NewEngine() *Engine {
	return &Engine{thresholds: DefaultThresholds()}
}

// NewEngineWithThresholds creates an engine with custom constants.
func NewEngineWithThresholds(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Compute derives a correlation record for every pattern. Malformed patterns
// are rejected with an error rather than silently coerced.
func (e *Engine) Compute(patterns signal.PatternMap, dist signal.Distribution, totalSites int) (domcorr.Batch, error) {
	batch := make(domcorr.Batch, len(patterns))
	if totalSites == 0 || len(patterns) == 0 {
		return batch, nil
	}
	if len(dist) == 0 {
		return nil, core.ErrNoDistribution
	}
	if err := dist.Validate(totalSites); err != nil {
		return nil, err
	}

	labels := dist.Labels()

	for key, pattern := range patterns {
		if err := pattern.Validate(totalSites); err != nil {
			return nil, err
		}

		corr := &domcorr.Correlation{
			Pattern:         key,
			Frequency:       pattern.Frequency,
			Occurrences:     pattern.SiteCount,
			PerCMS:          make(map[signal.CMSLabel]domcorr.CMSFrequency, len(labels)),
			CMSGivenPattern: make(map[signal.CMSLabel]domcorr.ConditionalProbability, len(labels)),
		}

		for _, cms := range labels {
			stat := dist[cms]
			inCMS := overlap(pattern.Sites, stat.Sites)

			freq := 0.0
			if stat.Count > 0 {
				freq = float64(inCMS) / float64(stat.Count)
			}
			corr.PerCMS[cms] = domcorr.CMSFrequency{
				Frequency:        freq,
				Occurrences:      inCMS,
				TotalSitesForCMS: stat.Count,
			}

			// Posterior P(CMS|pattern), not a frequency: occurrences of the
			// pattern inside this CMS over the pattern's total occurrences.
			posterior := 0.0
			if pattern.SiteCount > 0 {
				posterior = float64(inCMS) / float64(pattern.SiteCount)
			}
			corr.CMSGivenPattern[cms] = domcorr.ConditionalProbability{
				Probability: posterior,
				Count:       inCMS,
			}
		}

		corr.Specificity = e.specificity(corr, totalSites)
		corr.BiasAdjustedFrequency = biasAdjustedFrequency(corr)
		corr.Confidence = e.confidence(corr)

		batch[key] = corr
	}

	return batch, nil
}

// HHI is the Herfindahl-Hirschman concentration index of the CMS
// distribution: the sum of squared dataset shares. High values flag dataset
// skew, not any individual pattern.
func HHI(dist signal.Distribution, totalSites int) float64 {
	if totalSites == 0 {
		return 0
	}
	hhi := 0.0
	for _, stat := range dist {
		share := float64(stat.Count) / float64(totalSites)
		hhi += share * share
	}
	return hhi
}

// specificity scores how uniquely the pattern identifies one CMS.
func (e *Engine) specificity(corr *domcorr.Correlation, totalSites int) domcorr.Specificity {
	if totalSites >= e.thresholds.DiscriminativeMinSites {
		return domcorr.Specificity{
			Score:  discriminativeScore(corr),
			Method: domcorr.MethodDiscriminative,
		}
	}
	return domcorr.Specificity{
		Score:  coefficientVariationScore(corr),
		Method: domcorr.MethodCoefficientVariation,
	}
}

// discriminativeScore is 1 minus the normalized Shannon entropy of the
// posterior distribution: 1 when the pattern points at a single CMS, 0 when
// it is spread evenly.
func discriminativeScore(corr *domcorr.Correlation) float64 {
	categories := len(corr.CMSGivenPattern)
	if categories <= 1 {
		return 1.0
	}

	entropy := 0.0
	for _, cond := range corr.CMSGivenPattern {
		if cond.Probability > 0 {
			entropy -= cond.Probability * math.Log2(cond.Probability)
		}
	}
	maxEntropy := math.Log2(float64(categories))
	if maxEntropy == 0 {
		return 1.0
	}
	return clamp01(1.0 - entropy/maxEntropy)
}

// coefficientVariationScore is the small-sample fallback: spread of the
// per-CMS frequencies relative to their mean, clamped to [0,1].
func coefficientVariationScore(corr *domcorr.Correlation) float64 {
	freqs := make([]float64, 0, len(corr.PerCMS))
	for _, rec := range corr.PerCMS {
		freqs = append(freqs, rec.Frequency)
	}
	if len(freqs) < 2 {
		return 0
	}

	mean, err := stats.Mean(freqs)
	if err != nil || mean == 0 {
		return 0
	}
	stdDev, err := stats.StandardDeviation(freqs)
	if err != nil {
		return 0
	}
	return clamp01(stdDev / mean)
}

// biasAdjustedFrequency counteracts CMS-distribution skew. The raw overall
// frequency is sum(share_cms * freq_cms); an over-represented CMS inflates
// it for any pattern correlated with that CMS. Reweighting each CMS by the
// inverse of its share yields the frequency the pattern would show on a
// balanced dataset: the plain mean of the per-CMS frequencies.
func biasAdjustedFrequency(corr *domcorr.Correlation) float64 {
	observed := 0
	sum := 0.0
	for _, rec := range corr.PerCMS {
		if rec.TotalSitesForCMS == 0 {
			continue
		}
		sum += rec.Frequency
		observed++
	}
	if observed == 0 {
		return 0
	}
	return clamp01(sum / float64(observed))
}

func (e *Engine) confidence(corr *domcorr.Correlation) domcorr.Confidence {
	score := corr.Specificity.Score
	occ := corr.Occurrences
	switch {
	case score >= e.thresholds.HighSpecificity && occ >= e.thresholds.HighOccurrences:
		return domcorr.ConfidenceHigh
	case score < e.thresholds.LowSpecificity || occ < e.thresholds.LowOccurrences:
		return domcorr.ConfidenceLow
	default:
		return domcorr.ConfidenceMedium
	}
}

func overlap(a, b map[core.SiteID]bool) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for id := range a {
		if b[id] {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
