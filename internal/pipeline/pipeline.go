// Package pipeline orchestrates the ordered validation stages that decide
// whether computed correlations are trustworthy enough to drive detection
// rules. Stages run strictly in sequence over an exclusively-owned context;
// the only cross-stage side effects are pattern filtering and the appended
// stage results.
package pipeline

import (
	"fmt"
	"log"
	"sort"
	"time"

	"cmsig/domain/core"
	domcorr "cmsig/domain/correlation"
	"cmsig/domain/signal"
	"cmsig/domain/validation"
	"cmsig/internal/stattest"
)

// Fixed stage constants. Deliberately not environment-configurable so test
// expectations stay reproducible.
const (
	absoluteMinSites       = 5
	noiseSiteFloor         = 5
	artifactFrequency      = 0.95
	skewnessLimit          = 2.0
	outlierZScore          = 2.5
	balanceFloor           = 0.3
	concentrationCeiling   = 0.25
	circularCorrelation    = 0.95
	significanceNullRate   = 0.05
	significanceScoreFloor = 0.3
	minDetectableFrequency = 0.1
	powerFloor             = 0.8
	filterRateWarning      = 0.5
)

// Input is the immutable snapshot a pipeline run consumes.
type Input struct {
	Patterns     signal.PatternMap
	Distribution signal.Distribution
	Correlations domcorr.Batch
	TotalSites   int
	Options      signal.AnalysisOptions
}

type stageFunc func(p *Pipeline, in Input, vctx *validation.Context) validation.StageResult

// stageTable is the enum-keyed dispatch table: stage identifier to pure
// stage function, in place of interface-based dispatch.
var stageTable = map[validation.StageName]stageFunc{
	validation.StageFrequency:      (*Pipeline).stageFrequency,
	validation.StageSampleSize:     (*Pipeline).stageSampleSize,
	validation.StageDistribution:   (*Pipeline).stageDistribution,
	validation.StageCorrelation:    (*Pipeline).stageCorrelation,
	validation.StageSanity:         (*Pipeline).stageSanity,
	validation.StageSignificance:   (*Pipeline).stageSignificance,
	validation.StageRecommendation: (*Pipeline).stageRecommendation,
}

// Pipeline executes a configured subset of validation stages.
type Pipeline struct {
	cfg   validation.Config
	suite *stattest.Suite
}

// New creates a pipeline for the given configuration. An empty stage list
// falls back to the full default order.
func New(cfg validation.Config) *Pipeline {
	if len(cfg.Stages) == 0 {
		cfg.Stages = validation.DefaultStageOrder()
	}
	if cfg.FrequencyThreshold == 0 {
		cfg.FrequencyThreshold = 0.01
	}
	if cfg.SampleSizeThreshold == 0 {
		cfg.SampleSizeThreshold = 30
	}
	return &Pipeline{cfg: cfg, suite: stattest.NewSuite()}
}

// Run executes the configured stages and assembles the validation report.
// The returned context holds the surviving pattern set and all flags; the
// caller owns both exclusively.
func (p *Pipeline) Run(in Input) (*validation.Report, *validation.Context) {
	start := time.Now()
	vctx := validation.NewContext(in.Patterns)

	report := &validation.Report{
		RunID:       core.RunID(core.NewID()),
		GeneratedAt: core.Now(),
	}

	// Nothing to validate is a clean no-op, not a failure.
	if in.TotalSites == 0 && len(in.Patterns) == 0 {
		report.OverallPassed = true
		report.Summary = validation.Summary{QualityGrade: validation.GradeForScore(1)}
		report.Duration = time.Since(start)
		return report, vctx
	}

	stopped := false
	allPassed := true

	for _, name := range p.cfg.Stages {
		fn, ok := stageTable[name]
		if !ok {
			vctx.Append(validation.StageResult{
				Stage:  name,
				Passed: false,
				Errors: []validation.StageError{{
					Category:    core.CategoryDataQuality,
					Message:     fmt.Sprintf("%v: %s", core.ErrUnknownStage, name),
					Recoverable: true,
				}},
			})
			allPassed = false
			report.CompletedStages++
			if p.cfg.StopOnError {
				stopped = true
				break
			}
			continue
		}

		result := p.runStage(fn, name, in, vctx)
		vctx.Append(result)
		report.CompletedStages++

		if p.cfg.DebugMode {
			log.Printf("[pipeline] stage=%s passed=%v score=%.2f validated=%d filtered=%d",
				result.Stage, result.Passed, result.Score, result.PatternsValidated, result.PatternsFiltered)
		}

		if !result.Passed {
			allPassed = false
			if result.HasNonRecoverable() || p.cfg.StopOnError {
				stopped = true
				break
			}
		}
	}

	if stopped && report.CompletedStages < len(p.cfg.Stages) {
		allPassed = false
	}

	report.Stages = vctx.Stages
	report.OverallPassed = allPassed && !stopped
	report.Summary = p.summarize(vctx)
	report.Duration = time.Since(start)
	return report, vctx
}

// runStage invokes one stage and converts any internal failure into an error
// entry; no panic escapes a stage undetected.
func (p *Pipeline) runStage(fn stageFunc, name validation.StageName, in Input, vctx *validation.Context) (result validation.StageResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = validation.StageResult{
				Stage:  name,
				Passed: false,
				Errors: []validation.StageError{{
					Category:    core.CategoryMathematical,
					Message:     fmt.Sprintf("internal stage failure: %v", r),
					Recoverable: true,
				}},
				PatternsValidated: len(vctx.Patterns),
			}
		}
		result.Duration = time.Since(start)
	}()

	result = fn(p, in, vctx)
	result.Stage = name
	return result
}

func (p *Pipeline) summarize(vctx *validation.Context) validation.Summary {
	summary := validation.Summary{
		InitialPatterns: vctx.InitialPatterns,
		FinalPatterns:   len(vctx.Patterns),
	}
	if summary.InitialPatterns > 0 {
		summary.FilterEfficiency = 1 - float64(summary.FinalPatterns)/float64(summary.InitialPatterns)
	}
	if len(vctx.Stages) > 0 {
		sum := 0.0
		for _, stage := range vctx.Stages {
			sum += stage.Score
		}
		summary.QualityScore = sum / float64(len(vctx.Stages))
	}
	summary.QualityGrade = validation.GradeForScore(summary.QualityScore)
	return summary
}

// sortedKeys returns the context's surviving pattern keys in stable order.
func sortedKeys(patterns signal.PatternMap) []core.PatternKey {
	keys := make([]core.PatternKey, 0, len(patterns))
	for k := range patterns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
