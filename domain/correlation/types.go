package correlation

import (
	"sort"

	"cmsig/domain/core"
	"cmsig/domain/signal"
)

// SpecificityMethod tags which estimator produced a specificity score.
type SpecificityMethod string

const (
	// MethodDiscriminative is the entropy-based score, used once the dataset
	// is large enough for stable entropy estimates.
	MethodDiscriminative SpecificityMethod = "discriminative"
	// MethodCoefficientVariation is the small-sample fallback.
	MethodCoefficientVariation SpecificityMethod = "coefficient_variation"
)

// Confidence grades how much a correlation should be trusted as evidence.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Weight maps a confidence tier onto [0,1] for score aggregation.
func (c Confidence) Weight() float64 {
	switch c {
	case ConfidenceHigh:
		return 0.9
	case ConfidenceMedium:
		return 0.6
	default:
		return 0.25
	}
}

// CMSFrequency records how often a pattern appears within one CMS's sites.
type CMSFrequency struct {
	Frequency        float64 `json:"frequency"`
	Occurrences      int     `json:"occurrences"`
	TotalSitesForCMS int     `json:"total_sites_for_cms"`
}

// ConditionalProbability records the Bayesian posterior P(CMS | pattern).
type ConditionalProbability struct {
	Probability float64 `json:"probability"`
	Count       int     `json:"count"`
}

// Specificity is a platform-specificity score with its estimation method.
type Specificity struct {
	Score  float64           `json:"score"`
	Method SpecificityMethod `json:"method"`
}

// Correlation is the full statistical profile of one signal pattern against
// the CMS distribution.
type Correlation struct {
	Pattern     core.PatternKey `json:"pattern"`
	Frequency   float64         `json:"frequency"`
	Occurrences int             `json:"occurrences"`

	PerCMS          map[signal.CMSLabel]CMSFrequency           `json:"per_cms"`
	CMSGivenPattern map[signal.CMSLabel]ConditionalProbability `json:"cms_given_pattern"`

	Specificity           Specificity `json:"platform_specificity"`
	BiasAdjustedFrequency float64     `json:"bias_adjusted_frequency"`
	Confidence            Confidence  `json:"recommendation_confidence"`
}

// TopCMS returns the CMS with the highest posterior and that posterior.
// Ties break lexicographically so results are reproducible.
func (c *Correlation) TopCMS() (signal.CMSLabel, float64) {
	best := signal.CMSLabel("")
	bestProb := -1.0
	labels := make([]signal.CMSLabel, 0, len(c.CMSGivenPattern))
	for cms := range c.CMSGivenPattern {
		labels = append(labels, cms)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	for _, cms := range labels {
		if p := c.CMSGivenPattern[cms].Probability; p > bestProb {
			best, bestProb = cms, p
		}
	}
	if bestProb < 0 {
		bestProb = 0
	}
	return best, bestProb
}

// Batch is the correlation output keyed by pattern.
type Batch map[core.PatternKey]*Correlation

// Keys returns the batch's pattern keys in deterministic order.
func (b Batch) Keys() []core.PatternKey {
	keys := make([]core.PatternKey, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
