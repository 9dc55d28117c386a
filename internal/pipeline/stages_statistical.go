package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"cmsig/domain/core"
	domcorr "cmsig/domain/correlation"
	"cmsig/domain/validation"
	"cmsig/internal/sanity"
	"cmsig/internal/stattest"
)

// stageSanity runs the six-algorithm consistency audit over the correlations
// of the surviving patterns. Failed checks are recoverable mathematical
// inconsistencies; they fail the stage but carry the exact pattern and
// discrepancy so the operator can trace the corruption.
func (p *Pipeline) stageSanity(in Input, vctx *validation.Context) validation.StageResult {
	result := validation.StageResult{
		Passed:            true,
		PatternsValidated: len(vctx.Patterns),
		Metrics:           map[string]float64{},
	}

	batch := make(domcorr.Batch, len(vctx.Patterns))
	for key := range vctx.Patterns {
		if corr, ok := in.Correlations[key]; ok {
			batch[key] = corr
		}
	}

	suite := sanity.Run(batch, in.TotalSites)
	result.Passed = suite.Passed
	result.Warnings = append(result.Warnings, suite.Warnings...)

	passed := 0
	for _, check := range suite.Checks {
		if check.Passed {
			passed++
			continue
		}
		result.Errors = append(result.Errors, validation.StageError{
			Category:    core.CategoryMathematical,
			Message:     check.Message,
			Recoverable: true,
		})
	}
	result.Score = float64(passed) / float64(len(suite.Checks))
	result.Metrics["checks_passed"] = float64(passed)
	result.Metrics["checks_total"] = float64(len(suite.Checks))
	return result
}

// stageSignificance binomial-tests each surviving pattern against the fixed
// null rate. Non-significant patterns are flagged low-confidence but never
// removed; absence of significance is not evidence of corruption. The
// per-pattern tests are pure functions of immutable inputs, so they run
// concurrently with no ordering requirement.
func (p *Pipeline) stageSignificance(in Input, vctx *validation.Context) validation.StageResult {
	result := validation.StageResult{
		Passed:            true,
		PatternsValidated: len(vctx.Patterns),
		Metrics:           map[string]float64{},
	}

	if p.cfg.SkipSignificanceTesting {
		result.Score = 1
		result.Warnings = append(result.Warnings, "significance testing skipped by configuration")
		return result
	}

	keys := sortedKeys(vctx.Patterns)
	if len(keys) == 0 {
		result.Score = 1
		return result
	}

	tests := make([]stattest.BinomialResult, len(keys))
	var g errgroup.Group
	for i, key := range keys {
		i := i
		pattern := vctx.Patterns[key]
		g.Go(func() error {
			tests[i] = stattest.BinomialTest(pattern.SiteCount, in.TotalSites, significanceNullRate)
			return nil
		})
	}
	// The workers never return errors; Wait is only a join point.
	_ = g.Wait()

	significant := 0
	for i, key := range keys {
		if tests[i].IsSignificant {
			significant++
			continue
		}
		vctx.Flag(key, validation.PatternFlag{
			Type:       validation.FlagLowConfidence,
			Severity:   core.CategoryStatistical,
			Reason:     fmt.Sprintf("not significant against a %.0f%% null rate (p=%.3f)", significanceNullRate*100, tests[i].PValue),
			Confidence: 1 - tests[i].PValue,
			Details:    map[string]float64{"p_value": tests[i].PValue},
		})
	}

	score := float64(significant) / float64(len(keys))
	if score < significanceScoreFloor {
		score = significanceScoreFloor
	}
	result.Score = score
	result.Metrics["tested_count"] = float64(len(keys))
	result.Metrics["significant_count"] = float64(significant)
	return result
}

// contradictionPairs are recommendation phrasings that cannot both be acted
// on. The scan is textual because recommendations are the pipeline's only
// free-text output.
var contradictionPairs = [][2]string{
	{"relax the minimum occurrence threshold", "tighten the minimum occurrence threshold"},
	{"collect more sites", "reduce the site sample"},
}

// stageRecommendation aggregates every recommendation emitted by the prior
// stages, rejects direct contradictions, and scores the batch by the mean
// recommendation confidence of the surviving correlations.
func (p *Pipeline) stageRecommendation(in Input, vctx *validation.Context) validation.StageResult {
	result := validation.StageResult{
		Passed:            true,
		PatternsValidated: len(vctx.Patterns),
		Metrics:           map[string]float64{},
	}

	pooled := vctx.Recommendations()
	joined := strings.Join(pooled, "\n")
	for _, pair := range contradictionPairs {
		if strings.Contains(joined, pair[0]) && strings.Contains(joined, pair[1]) {
			result.Passed = false
			result.Errors = append(result.Errors, validation.StageError{
				Category:    core.CategoryDataQuality,
				Message:     fmt.Sprintf("contradictory recommendations: %q vs %q", pair[0], pair[1]),
				Recoverable: true,
			})
		}
	}

	meanConfidence := 1.0
	if len(vctx.Patterns) > 0 {
		sum := 0.0
		counted := 0
		for _, key := range sortedKeys(vctx.Patterns) {
			if corr, ok := in.Correlations[key]; ok {
				sum += corr.Confidence.Weight()
				counted++
			}
		}
		if counted > 0 {
			meanConfidence = sum / float64(counted)
		}
	}

	result.Score = meanConfidence
	result.Metrics["recommendation_count"] = float64(len(pooled))
	result.Metrics["mean_confidence"] = meanConfidence
	return result
}
