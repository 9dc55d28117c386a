// Package app wires the correlation engine, statistical test suite and
// validation pipeline into the end-to-end analysis service consumed by the
// CLI and HTTP adapters.
package app

import (
	"context"
	"log"
	"sort"

	"cmsig/domain/core"
	domcorr "cmsig/domain/correlation"
	"cmsig/domain/signal"
	"cmsig/domain/validation"
	"cmsig/internal/correlation"
	"cmsig/internal/patternkey"
	"cmsig/internal/pipeline"
	"cmsig/internal/stattest"
)

// Result bundles everything a collaborator needs after one analysis run:
// the surviving patterns, their correlations and significance tests, the
// advisory flags, and the authoritative validation report.
type Result struct {
	Patterns     signal.PatternMap                               `json:"patterns"`
	Correlations domcorr.Batch                                   `json:"correlations"`
	Significance map[core.PatternKey]stattest.SignificanceResult `json:"significance"`
	Flags        map[core.PatternKey]validation.PatternFlag      `json:"flags"`
	Compliance   *patternkey.ComplianceReport                    `json:"compliance,omitempty"`
	Report       *validation.Report                              `json:"report"`
}

// AnalysisService runs the correlation-and-validation pipeline over a signal
// store snapshot. Stateless; safe for concurrent use with distinct inputs.
type AnalysisService struct {
	engine *correlation.Engine
	suite  *stattest.Suite
}

// NewAnalysisService creates a service with default engine thresholds.
func NewAnalysisService() *AnalysisService {
	return &AnalysisService{
		engine: correlation.NewEngine(),
		suite:  stattest.NewSuite(),
	}
}

// Run executes the full flow: collect patterns, compute correlations,
// validate, then significance-test the survivors. The same immutable store
// always produces the same result apart from the run ID and timings.
func (s *AnalysisService) Run(ctx context.Context, store *signal.Store, opts signal.AnalysisOptions, cfg validation.Config) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, core.ErrEmptyStore
	}

	patterns := signal.CollectPatterns(store, opts)
	var compliance *patternkey.ComplianceReport
	if opts.SemanticFiltering {
		patterns = normalizeKeys(patterns, store, cfg.DebugMode)
		audit := patternkey.AuditCompliance(patternKeys(patterns))
		compliance = &audit
	}
	dist := signal.BuildDistribution(store)

	correlations, err := s.engine.Compute(patterns, dist, store.TotalSites)
	if err != nil {
		return nil, err
	}

	report, vctx := pipeline.New(cfg).Run(pipeline.Input{
		Patterns:     patterns,
		Distribution: dist,
		Correlations: correlations,
		TotalSites:   store.TotalSites,
		Options:      opts,
	})

	surviving := make(domcorr.Batch, len(vctx.Patterns))
	significance := make(map[core.PatternKey]stattest.SignificanceResult, len(vctx.Patterns))
	for key := range vctx.Patterns {
		corr, ok := correlations[key]
		if !ok {
			continue
		}
		surviving[key] = corr
		if !cfg.SkipSignificanceTesting {
			significance[key] = s.suite.TestSignificance(key.String(), corr, dist, store.TotalSites)
		}
	}

	return &Result{
		Patterns:     vctx.Patterns,
		Correlations: surviving,
		Significance: significance,
		Flags:        vctx.Flags,
		Compliance:   compliance,
		Report:       report,
	}, nil
}

// patternKeys lists the map's keys in deterministic order for auditing.
func patternKeys(patterns signal.PatternMap) []string {
	keys := make([]string, 0, len(patterns))
	for key := range patterns {
		keys = append(keys, key.String())
	}
	sort.Strings(keys)
	return keys
}

// normalizeKeys rewrites pattern keys into the canonical
// {source}_{indicator}_{cms} form. The CMS hint comes from the pattern's
// dominant CMS among its own sites. Keys that collide after normalization
// are merged.
func normalizeKeys(patterns signal.PatternMap, store *signal.Store, debug bool) signal.PatternMap {
	out := make(signal.PatternMap, len(patterns))
	for key, pattern := range patterns {
		cms := dominantCMS(pattern, store)
		normalized := core.PatternKey(patternkey.Normalize(key.String(), string(cms)))
		if existing, ok := out[normalized]; ok {
			merge(existing, pattern)
			continue
		}
		renamed := pattern.Clone()
		renamed.Key = normalized
		out[normalized] = renamed
		if debug && normalized != key {
			log.Printf("[analysis] normalized pattern key %s -> %s", key, normalized)
		}
	}
	for _, pattern := range out {
		if store.TotalSites > 0 {
			pattern.Frequency = float64(pattern.SiteCount) / float64(store.TotalSites)
		}
	}
	return out
}

func dominantCMS(pattern *signal.Pattern, store *signal.Store) signal.CMSLabel {
	counts := make(map[signal.CMSLabel]int)
	for siteID := range pattern.Sites {
		if obs, ok := store.Sites[siteID]; ok {
			counts[obs.CMS]++
		}
	}
	best := signal.CMSUnknown
	bestCount := -1
	for _, cms := range sortedLabels(counts) {
		if counts[cms] > bestCount {
			best, bestCount = cms, counts[cms]
		}
	}
	return best
}

func sortedLabels(counts map[signal.CMSLabel]int) []signal.CMSLabel {
	labels := make([]signal.CMSLabel, 0, len(counts))
	for cms := range counts {
		labels = append(labels, cms)
	}
	// Deterministic tie-breaking keeps runs reproducible.
	for i := 1; i < len(labels); i++ {
		for j := i; j > 0 && labels[j] < labels[j-1]; j-- {
			labels[j], labels[j-1] = labels[j-1], labels[j]
		}
	}
	return labels
}

func merge(dst, src *signal.Pattern) {
	for siteID := range src.Sites {
		if !dst.Sites[siteID] {
			dst.Sites[siteID] = true
			dst.SiteCount++
		}
	}
	for _, example := range src.Examples {
		if len(dst.Examples) >= signal.MaxPatternExamples {
			break
		}
		dst.Examples = append(dst.Examples, example)
	}
}
