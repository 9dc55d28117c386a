package correlation

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmsig/domain/core"
	domcorr "cmsig/domain/correlation"
	"cmsig/domain/signal"
)

// buildStore creates a store with counts[cms] sites per label. Sites listed
// in carriers (by index within their CMS bucket) carry the given signal key.
func buildStore(t *testing.T, counts map[signal.CMSLabel]int, key string, carriers map[signal.CMSLabel]int) *signal.Store {
	t.Helper()

	var observations []signal.SiteObservation
	labels := make([]signal.CMSLabel, 0, len(counts))
	for cms := range counts {
		labels = append(labels, cms)
	}
	// Map iteration order does not matter for the store, but keep the site
	// numbering stable per label for readable failures.
	for _, cms := range labels {
		for i := 0; i < counts[cms]; i++ {
			obs := signal.SiteObservation{
				SiteID: makeSiteID(cms, i),
				CMS:    cms,
			}
			if carriers != nil && i < carriers[cms] {
				obs.MetaSignals = []string{key}
			}
			observations = append(observations, obs)
		}
	}
	return signal.NewStore(observations)
}

func makeSiteID(cms signal.CMSLabel, i int) core.SiteID {
	return core.SiteID(fmt.Sprintf("%s-%03d", cms, i))
}

func TestHHIKnownDistribution(t *testing.T) {
	store := buildStore(t, map[signal.CMSLabel]int{
		"WordPress": 50,
		"Drupal":    30,
		"Unknown":   20,
	}, "", nil)
	dist := signal.BuildDistribution(store)

	hhi := HHI(dist, store.TotalSites)
	assert.InDelta(t, 0.38, hhi, 0.01)
}

func TestHHIEmptyStore(t *testing.T) {
	assert.Equal(t, 0.0, HHI(signal.Distribution{}, 0))
}

func TestComputePosteriorSumsToOne(t *testing.T) {
	store := buildStore(t, map[signal.CMSLabel]int{
		"WordPress": 50,
		"Drupal":    30,
		"Unknown":   20,
	}, "meta_generator_wordpress", map[signal.CMSLabel]int{
		"WordPress": 40,
		"Drupal":    3,
	})
	patterns := signal.CollectPatterns(store, signal.DefaultAnalysisOptions())
	dist := signal.BuildDistribution(store)

	batch, err := NewEngine().Compute(patterns, dist, store.TotalSites)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	for _, corr := range batch {
		sum := 0.0
		for _, cond := range corr.CMSGivenPattern {
			sum += cond.Probability
		}
		assert.InDelta(t, 1.0, sum, 0.01, "posterior probabilities must sum to 1 for %s", corr.Pattern)
	}
}

func TestComputeFrequencyIdentity(t *testing.T) {
	store := buildStore(t, map[signal.CMSLabel]int{
		"WordPress": 60,
		"Joomla":    40,
	}, "header_x_powered_by_wordpress", map[signal.CMSLabel]int{
		"WordPress": 33,
	})
	patterns := signal.CollectPatterns(store, signal.DefaultAnalysisOptions())
	dist := signal.BuildDistribution(store)

	batch, err := NewEngine().Compute(patterns, dist, store.TotalSites)
	require.NoError(t, err)

	for _, corr := range batch {
		want := float64(corr.Occurrences) / float64(store.TotalSites)
		assert.InDelta(t, want, corr.Frequency, signal.FrequencyTolerance)
	}
}

func TestSpecificityMethodSelection(t *testing.T) {
	tests := []struct {
		name       string
		totalSites int
		wantMethod domcorr.SpecificityMethod
	}{
		{"large sample uses discriminative", 100, domcorr.MethodDiscriminative},
		{"boundary uses discriminative", 30, domcorr.MethodDiscriminative},
		{"small sample falls back to cv", 20, domcorr.MethodCoefficientVariation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			half := tt.totalSites / 2
			store := buildStore(t, map[signal.CMSLabel]int{
				"WordPress": half,
				"Drupal":    tt.totalSites - half,
			}, "js_wp_embed", map[signal.CMSLabel]int{
				"WordPress": half,
			})
			patterns := signal.CollectPatterns(store, signal.DefaultAnalysisOptions())
			dist := signal.BuildDistribution(store)

			batch, err := NewEngine().Compute(patterns, dist, store.TotalSites)
			require.NoError(t, err)

			for _, corr := range batch {
				assert.Equal(t, tt.wantMethod, corr.Specificity.Method)
				assert.GreaterOrEqual(t, corr.Specificity.Score, 0.0)
				assert.LessOrEqual(t, corr.Specificity.Score, 1.0)
			}
		})
	}
}

func TestDiscriminativeScorePerfectlySpecific(t *testing.T) {
	store := buildStore(t, map[signal.CMSLabel]int{
		"WordPress": 50,
		"Drupal":    50,
	}, "meta_generator_wordpress", map[signal.CMSLabel]int{
		"WordPress": 40,
	})
	patterns := signal.CollectPatterns(store, signal.DefaultAnalysisOptions())
	dist := signal.BuildDistribution(store)

	batch, err := NewEngine().Compute(patterns, dist, store.TotalSites)
	require.NoError(t, err)

	for _, corr := range batch {
		// Every occurrence sits in one CMS: zero entropy, full specificity.
		assert.InDelta(t, 1.0, corr.Specificity.Score, 1e-9)
		top, posterior := corr.TopCMS()
		assert.Equal(t, signal.CMSLabel("WordPress"), top)
		assert.InDelta(t, 1.0, posterior, 1e-9)
	}
}

func TestDiscriminativeScoreEvenSpread(t *testing.T) {
	store := buildStore(t, map[signal.CMSLabel]int{
		"WordPress": 50,
		"Drupal":    50,
	}, "css_generic_reset", map[signal.CMSLabel]int{
		"WordPress": 20,
		"Drupal":    20,
	})
	patterns := signal.CollectPatterns(store, signal.DefaultAnalysisOptions())
	dist := signal.BuildDistribution(store)

	batch, err := NewEngine().Compute(patterns, dist, store.TotalSites)
	require.NoError(t, err)

	for _, corr := range batch {
		// Posteriors of 0.5/0.5 reach maximum entropy.
		assert.InDelta(t, 0.0, corr.Specificity.Score, 1e-9)
	}
}

func TestBiasAdjustedFrequencyCountersSkew(t *testing.T) {
	// WordPress dominates the dataset 80/20; a pattern at 80% within
	// WordPress and 20% within Drupal should adjust to the balanced mean.
	store := buildStore(t, map[signal.CMSLabel]int{
		"WordPress": 80,
		"Drupal":    20,
	}, "url_wp_content", map[signal.CMSLabel]int{
		"WordPress": 64,
		"Drupal":    4,
	})
	patterns := signal.CollectPatterns(store, signal.DefaultAnalysisOptions())
	dist := signal.BuildDistribution(store)

	batch, err := NewEngine().Compute(patterns, dist, store.TotalSites)
	require.NoError(t, err)

	for _, corr := range batch {
		assert.InDelta(t, 0.68, corr.Frequency, signal.FrequencyTolerance)
		assert.InDelta(t, 0.5, corr.BiasAdjustedFrequency, 1e-9)
	}
}

func TestConfidenceTiers(t *testing.T) {
	tests := []struct {
		name     string
		total    map[signal.CMSLabel]int
		carriers map[signal.CMSLabel]int
		want     domcorr.Confidence
	}{
		{
			name:     "specific and well supported",
			total:    map[signal.CMSLabel]int{"WordPress": 60, "Drupal": 40},
			carriers: map[signal.CMSLabel]int{"WordPress": 45},
			want:     domcorr.ConfidenceHigh,
		},
		{
			name:     "too few occurrences",
			total:    map[signal.CMSLabel]int{"WordPress": 60, "Drupal": 40},
			carriers: map[signal.CMSLabel]int{"WordPress": 5},
			want:     domcorr.ConfidenceLow,
		},
		{
			name:     "unspecific",
			total:    map[signal.CMSLabel]int{"WordPress": 50, "Drupal": 50},
			carriers: map[signal.CMSLabel]int{"WordPress": 20, "Drupal": 20},
			want:     domcorr.ConfidenceLow,
		},
		{
			name:     "specific but thin support",
			total:    map[signal.CMSLabel]int{"WordPress": 60, "Drupal": 40},
			carriers: map[signal.CMSLabel]int{"WordPress": 15},
			want:     domcorr.ConfidenceMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := buildStore(t, tt.total, "robots_wp_admin", tt.carriers)
			patterns := signal.CollectPatterns(store, signal.DefaultAnalysisOptions())
			dist := signal.BuildDistribution(store)

			batch, err := NewEngine().Compute(patterns, dist, store.TotalSites)
			require.NoError(t, err)
			require.Len(t, batch, 1)
			for _, corr := range batch {
				assert.Equal(t, tt.want, corr.Confidence)
			}
		})
	}
}

func TestComputeRejectsFrequencyDrift(t *testing.T) {
	store := buildStore(t, map[signal.CMSLabel]int{"WordPress": 50, "Drupal": 50}, "js_drupal_settings", map[signal.CMSLabel]int{"Drupal": 30})
	patterns := signal.CollectPatterns(store, signal.DefaultAnalysisOptions())
	dist := signal.BuildDistribution(store)

	for _, p := range patterns {
		p.Frequency += 0.05
	}
	_, err := NewEngine().Compute(patterns, dist, store.TotalSites)
	assert.Error(t, err)
}

func TestComputeEmptyInputs(t *testing.T) {
	batch, err := NewEngine().Compute(signal.PatternMap{}, signal.Distribution{}, 0)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestComputeRequiresDistribution(t *testing.T) {
	patterns := signal.PatternMap{
		"meta_generator_wordpress": &signal.Pattern{Key: "meta_generator_wordpress", SiteCount: 10, Frequency: 0.1},
	}

	_, err := NewEngine().Compute(patterns, signal.Distribution{}, 100)
	assert.ErrorIs(t, err, core.ErrNoDistribution)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.2))
	assert.Equal(t, 1.0, clamp01(1.7))
	assert.Equal(t, 0.4, clamp01(0.4))
	assert.False(t, math.IsNaN(clamp01(0)))
}
