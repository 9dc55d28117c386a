package validation

import (
	"time"

	"cmsig/domain/core"
	"cmsig/domain/signal"
)

// StageName identifies one pipeline stage.
type StageName string

const (
	StageFrequency      StageName = "frequency"
	StageSampleSize     StageName = "sample_size"
	StageDistribution   StageName = "distribution"
	StageCorrelation    StageName = "correlation"
	StageSanity         StageName = "sanity"
	StageSignificance   StageName = "significance"
	StageRecommendation StageName = "recommendation"
)

// DefaultStageOrder is the canonical full pipeline.
func DefaultStageOrder() []StageName {
	return []StageName{
		StageFrequency,
		StageSampleSize,
		StageDistribution,
		StageCorrelation,
		StageSanity,
		StageSignificance,
		StageRecommendation,
	}
}

// StageError is one failure recorded by a stage. Recoverable errors fail the
// stage but do not halt the pipeline unless StopOnError is set.
type StageError struct {
	Category    core.ErrorCategory `json:"category"`
	Message     string             `json:"message"`
	Recoverable bool               `json:"recoverable"`
}

// StageResult is the immutable outcome of one stage run.
type StageResult struct {
	Stage             StageName          `json:"stage"`
	Passed            bool               `json:"passed"`
	Score             float64            `json:"score"`
	PatternsValidated int                `json:"patterns_validated"`
	PatternsFiltered  int                `json:"patterns_filtered"`
	Warnings          []string           `json:"warnings,omitempty"`
	Errors            []StageError       `json:"errors,omitempty"`
	Recommendations   []string           `json:"recommendations,omitempty"`
	Metrics           map[string]float64 `json:"metrics,omitempty"`
	Duration          time.Duration      `json:"duration"`
}

// HasNonRecoverable reports whether the stage hit a critical failure.
func (r *StageResult) HasNonRecoverable() bool {
	for _, e := range r.Errors {
		if !e.Recoverable {
			return true
		}
	}
	return false
}

// FlagType classifies why a pattern was flagged rather than removed.
type FlagType string

const (
	FlagLowConfidence FlagType = "low_confidence"
	FlagOutlier       FlagType = "outlier"
	FlagSuspicious    FlagType = "suspicious"
)

// PatternFlag annotates a surviving pattern with a concern. Flags are
// advisory; flagged patterns stay in the validated set.
type PatternFlag struct {
	Type       FlagType           `json:"type"`
	Severity   core.ErrorCategory `json:"severity"`
	Reason     string             `json:"reason"`
	Confidence float64            `json:"confidence"`
	Details    map[string]float64 `json:"details,omitempty"`
}

// Context is the pipeline-scoped mutable state. It is owned by exactly one
// pipeline run: stages receive it, may delete entries from Patterns
// (filtering, never silent loss of the distribution), and append their
// StageResult. It must never be shared across concurrent runs.
type Context struct {
	Patterns signal.PatternMap
	Flags    map[core.PatternKey]PatternFlag
	Stages   []StageResult

	InitialPatterns int
}

// NewContext takes exclusive ownership of a deep copy of the input patterns.
func NewContext(patterns signal.PatternMap) *Context {
	owned := patterns.Clone()
	return &Context{
		Patterns:        owned,
		Flags:           make(map[core.PatternKey]PatternFlag),
		Stages:          nil,
		InitialPatterns: len(owned),
	}
}

// Remove filters a pattern out of the live set.
func (c *Context) Remove(key core.PatternKey) {
	delete(c.Patterns, key)
}

// Flag records an advisory flag for a pattern.
func (c *Context) Flag(key core.PatternKey, flag PatternFlag) {
	c.Flags[key] = flag
}

// Append records a completed stage result.
func (c *Context) Append(result StageResult) {
	c.Stages = append(c.Stages, result)
}

// Recommendations pools every recommendation emitted so far, in stage order.
func (c *Context) Recommendations() []string {
	var out []string
	for _, stage := range c.Stages {
		out = append(out, stage.Recommendations...)
	}
	return out
}

// Summary aggregates the report-level numbers.
type Summary struct {
	InitialPatterns  int     `json:"initial_patterns"`
	FinalPatterns    int     `json:"final_patterns"`
	FilterEfficiency float64 `json:"filter_efficiency"`
	QualityScore     float64 `json:"quality_score"`
	QualityGrade     string  `json:"quality_grade"`
}

// Report is the terminal artifact of a pipeline run.
type Report struct {
	RunID           core.RunID     `json:"run_id"`
	GeneratedAt     core.Timestamp `json:"generated_at"`
	OverallPassed   bool           `json:"overall_passed"`
	Stages          []StageResult  `json:"stages"`
	CompletedStages int            `json:"completed_stages"`
	Summary         Summary        `json:"summary"`
	Duration        time.Duration  `json:"duration"`
}

// GradeForScore maps a mean stage score onto an A-F quality grade.
func GradeForScore(score float64) string {
	switch {
	case score >= 0.9:
		return "A"
	case score >= 0.8:
		return "B"
	case score >= 0.7:
		return "C"
	case score >= 0.6:
		return "D"
	case score >= 0.5:
		return "E"
	default:
		return "F"
	}
}

// Config selects and tunes the pipeline stages.
type Config struct {
	Stages                  []StageName `json:"stages"`
	FrequencyThreshold      float64     `json:"frequency_threshold"`
	SampleSizeThreshold     int         `json:"sample_size_threshold"`
	SkipSignificanceTesting bool        `json:"skip_significance_testing"`
	StopOnError             bool        `json:"stop_on_error"`
	DebugMode               bool        `json:"debug_mode"`
}

// DefaultConfig runs the full stage order with the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Stages:              DefaultStageOrder(),
		FrequencyThreshold:  0.01,
		SampleSizeThreshold: 30,
	}
}
