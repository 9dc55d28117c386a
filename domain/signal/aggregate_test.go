package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmsig/domain/core"
)

func fixtureStore() *Store {
	return NewStore([]SiteObservation{
		{SiteID: "site-a", CMS: "WordPress", MetaSignals: []string{"meta_generator_wordpress"}, HeaderSignals: []string{"header_api_wordpress"}},
		{SiteID: "site-b", CMS: "WordPress", MetaSignals: []string{"meta_generator_wordpress"}},
		{SiteID: "site-c", CMS: "Drupal", ScriptSignals: []string{"js_settings_drupal"}},
		{SiteID: "site-d", CMS: ""},
	})
}

func TestCollectPatterns(t *testing.T) {
	patterns := CollectPatterns(fixtureStore(), DefaultAnalysisOptions())

	require.Len(t, patterns, 3)

	generator := patterns[core.PatternKey("meta_generator_wordpress")]
	require.NotNil(t, generator)
	assert.Equal(t, 2, generator.SiteCount)
	assert.InDelta(t, 0.5, generator.Frequency, FrequencyTolerance)
	assert.Equal(t, []string{"site-a", "site-b"}, generator.Examples)

	for _, p := range patterns {
		assert.NoError(t, p.Validate(4))
	}
}

func TestCollectPatternsWithoutExamples(t *testing.T) {
	opts := DefaultAnalysisOptions()
	opts.IncludeExamples = false

	patterns := CollectPatterns(fixtureStore(), opts)
	for _, p := range patterns {
		assert.Empty(t, p.Examples)
	}
}

func TestCollectPatternsExampleCap(t *testing.T) {
	observations := make([]SiteObservation, 10)
	for i := range observations {
		observations[i] = SiteObservation{
			SiteID:      core.SiteID(string(rune('a' + i))),
			CMS:         "WordPress",
			MetaSignals: []string{"meta_generator_wordpress"},
		}
	}
	patterns := CollectPatterns(NewStore(observations), DefaultAnalysisOptions())

	generator := patterns[core.PatternKey("meta_generator_wordpress")]
	require.NotNil(t, generator)
	assert.Len(t, generator.Examples, MaxPatternExamples)
}

func TestCollectPatternsEmptyStore(t *testing.T) {
	assert.Empty(t, CollectPatterns(NewStore(nil), DefaultAnalysisOptions()))
}

func TestBuildDistributionConservesCounts(t *testing.T) {
	store := fixtureStore()
	dist := BuildDistribution(store)

	assert.NoError(t, dist.Validate(store.TotalSites))
	assert.Equal(t, 2, dist["WordPress"].Count)
	assert.Equal(t, 1, dist["Drupal"].Count)
	assert.Equal(t, 1, dist[CMSUnknown].Count)
	assert.InDelta(t, 50.0, dist["WordPress"].Percentage, 1e-9)
}

func TestDistributionLabelsSorted(t *testing.T) {
	dist := BuildDistribution(fixtureStore())

	assert.Equal(t, []CMSLabel{"Drupal", CMSUnknown, "WordPress"}, dist.Labels())
}
