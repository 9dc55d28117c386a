package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmsig/domain/core"
	"cmsig/domain/signal"
	"cmsig/domain/validation"
	"cmsig/internal/testkit"
)

func TestRunEndToEnd(t *testing.T) {
	store := testkit.Generate(testkit.DefaultConfig())
	service := NewAnalysisService()

	result, err := service.Run(context.Background(), store, signal.DefaultAnalysisOptions(), validation.DefaultConfig())
	require.NoError(t, err)

	assert.True(t, result.Report.OverallPassed)
	assert.NotEmpty(t, result.Patterns)
	assert.Len(t, result.Correlations, len(result.Patterns))
	assert.Len(t, result.Significance, len(result.Patterns))

	// The strongest planted signal must come out highly specific.
	planted := core.PatternKey("meta_generator_wordpress")
	corr, ok := result.Correlations[planted]
	require.True(t, ok, "planted pattern must survive validation")
	top, posterior := corr.TopCMS()
	assert.Equal(t, signal.CMSLabel("WordPress"), top)
	assert.Greater(t, posterior, 0.8)
	assert.Greater(t, corr.Specificity.Score, 0.5)

	sig, ok := result.Significance[planted]
	require.True(t, ok)
	assert.Less(t, sig.PValue, 0.01)

	// Compliance auditing only runs under semantic filtering.
	assert.Nil(t, result.Compliance)
}

func TestRunNilStore(t *testing.T) {
	_, err := NewAnalysisService().Run(context.Background(), nil, signal.DefaultAnalysisOptions(), validation.DefaultConfig())
	assert.ErrorIs(t, err, core.ErrEmptyStore)
}

func TestRunEmptyStore(t *testing.T) {
	store := signal.NewStore(nil)

	result, err := NewAnalysisService().Run(context.Background(), store, signal.DefaultAnalysisOptions(), validation.DefaultConfig())
	require.NoError(t, err)

	assert.True(t, result.Report.OverallPassed)
	assert.Empty(t, result.Patterns)
	assert.Empty(t, result.Correlations)
	assert.Equal(t, 0, result.Report.Summary.InitialPatterns)
	assert.Equal(t, 0, result.Report.Summary.FinalPatterns)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnalysisService().Run(ctx, testkit.Generate(testkit.DefaultConfig()), signal.DefaultAnalysisOptions(), validation.DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSkipSignificance(t *testing.T) {
	cfg := validation.DefaultConfig()
	cfg.SkipSignificanceTesting = true

	result, err := NewAnalysisService().Run(context.Background(), testkit.Generate(testkit.DefaultConfig()), signal.DefaultAnalysisOptions(), cfg)
	require.NoError(t, err)

	assert.Empty(t, result.Significance)
	assert.NotEmpty(t, result.Correlations)
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	opts := signal.DefaultAnalysisOptions()
	cfg := validation.DefaultConfig()
	store := testkit.Generate(testkit.DefaultConfig())
	service := NewAnalysisService()

	first, err := service.Run(context.Background(), store, opts, cfg)
	require.NoError(t, err)
	second, err := service.Run(context.Background(), store, opts, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Report.OverallPassed, second.Report.OverallPassed)
	assert.Equal(t, first.Report.Summary, second.Report.Summary)
	require.Len(t, second.Correlations, len(first.Correlations))
	for key, corr := range first.Correlations {
		other, ok := second.Correlations[key]
		require.True(t, ok, "pattern %s missing from second run", key)
		assert.Equal(t, corr.Frequency, other.Frequency)
		assert.Equal(t, corr.Specificity, other.Specificity)
		assert.Equal(t, corr.Confidence, other.Confidence)
	}
}

func TestNormalizeKeysMergesCollisions(t *testing.T) {
	observations := []signal.SiteObservation{
		{SiteID: "site-a", CMS: "WordPress", MetaSignals: []string{"url_wp_content_path"}},
		{SiteID: "site-b", CMS: "WordPress", MetaSignals: []string{"url_wp_content_path", "url_content_wordpress"}},
		{SiteID: "site-c", CMS: "WordPress", MetaSignals: []string{"url_content_wordpress"}},
		{SiteID: "site-d", CMS: "Drupal"},
	}
	store := signal.NewStore(observations)
	opts := signal.DefaultAnalysisOptions()
	opts.SemanticFiltering = true

	result, err := NewAnalysisService().Run(context.Background(), store, opts, validation.Config{
		Stages: []validation.StageName{validation.StageFrequency},
	})
	require.NoError(t, err)

	// Legacy and canonical spellings collapse into one pattern covering the
	// union of their sites.
	merged, ok := result.Patterns[core.PatternKey("url_content_wordpress")]
	require.True(t, ok)
	assert.Equal(t, 3, merged.SiteCount)
	assert.InDelta(t, 0.75, merged.Frequency, signal.FrequencyTolerance)
	assert.NotContains(t, result.Patterns, core.PatternKey("url_wp_content_path"))

	require.NotNil(t, result.Compliance)
	assert.InDelta(t, 1.0, result.Compliance.Rate, 1e-9)
	assert.Empty(t, result.Compliance.NonCompliant)
}

func TestDominantCMSPrefersMajorityLabel(t *testing.T) {
	observations := []signal.SiteObservation{
		{SiteID: "site-a", CMS: "Drupal", ScriptSignals: []string{"js_global_drupal_settings"}},
		{SiteID: "site-b", CMS: "Drupal", ScriptSignals: []string{"js_global_drupal_settings"}},
		{SiteID: "site-c", CMS: "WordPress", ScriptSignals: []string{"js_global_drupal_settings"}},
	}
	store := signal.NewStore(observations)
	patterns := signal.CollectPatterns(store, signal.DefaultAnalysisOptions())

	pattern := patterns[core.PatternKey("js_global_drupal_settings")]
	require.NotNil(t, pattern)
	assert.Equal(t, signal.CMSLabel("Drupal"), dominantCMS(pattern, store))
}
