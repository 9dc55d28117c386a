package signal

import (
	"math"

	"cmsig/domain/core"
)

// FrequencyTolerance bounds the allowed drift between a pattern's stored
// frequency and siteCount/totalSites.
const FrequencyTolerance = 1e-3

// CMSLabel identifies a content management system. Sites whose CMS could not
// be determined carry CMSUnknown; they still count toward totals.
type CMSLabel string

const CMSUnknown CMSLabel = "Unknown"

// SiteObservation holds the collector's view of one site: its detected CMS
// label and the signal keys observed in its headers, meta tags and scripts.
type SiteObservation struct {
	SiteID        core.SiteID `json:"site_id"`
	CMS           CMSLabel    `json:"cms"`
	HeaderSignals []string    `json:"header_signals"`
	MetaSignals   []string    `json:"meta_signals"`
	ScriptSignals []string    `json:"script_signals"`
}

// Signals returns all signal keys of the observation, deduplicated.
func (o *SiteObservation) Signals() []string {
	seen := make(map[string]bool, len(o.HeaderSignals)+len(o.MetaSignals)+len(o.ScriptSignals))
	out := make([]string, 0, len(seen))
	for _, group := range [][]string{o.HeaderSignals, o.MetaSignals, o.ScriptSignals} {
		for _, key := range group {
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// Store is the aggregated signal store: the immutable per-run snapshot of
// every observed site. TotalSites is kept explicit so collaborators can hand
// over pre-aggregated data; it must equal the number of observed sites.
type Store struct {
	Sites      map[core.SiteID]*SiteObservation `json:"sites"`
	TotalSites int                              `json:"total_sites"`
}

// NewStore builds a store snapshot from raw observations. Observations
// without a CMS label are kept and bucketed under CMSUnknown.
func NewStore(observations []SiteObservation) *Store {
	s := &Store{Sites: make(map[core.SiteID]*SiteObservation, len(observations))}
	for i := range observations {
		o := observations[i]
		if o.SiteID.String() == "" {
			continue
		}
		if o.CMS == "" {
			o.CMS = CMSUnknown
		}
		s.Sites[o.SiteID] = &o
	}
	s.TotalSites = len(s.Sites)
	return s
}

// IsEmpty reports whether there is nothing to analyze.
func (s *Store) IsEmpty() bool {
	return s == nil || s.TotalSites == 0 || len(s.Sites) == 0
}

// Pattern is one observable signal aggregated across the store.
type Pattern struct {
	Key       core.PatternKey      `json:"key"`
	SiteCount int                  `json:"site_count"`
	Frequency float64              `json:"frequency"`
	Sites     map[core.SiteID]bool `json:"-"`
	Examples  []string             `json:"examples,omitempty"`
}

// MaxPatternExamples bounds the example list carried by a pattern.
const MaxPatternExamples = 3

// Validate enforces the pattern invariants against the store total.
func (p *Pattern) Validate(totalSites int) error {
	if p.Key.String() == "" {
		return core.NewMalformedPatternError("(empty)", "missing key")
	}
	if p.SiteCount < 0 {
		return core.NewMalformedPatternError(p.Key.String(), "negative site count")
	}
	if p.SiteCount > totalSites {
		return core.NewInconsistencyError(core.ErrCountExceedsTotal, p.Key.String(), "",
			float64(p.SiteCount), float64(totalSites))
	}
	if totalSites > 0 {
		want := float64(p.SiteCount) / float64(totalSites)
		if math.Abs(p.Frequency-want) > FrequencyTolerance {
			return core.NewInconsistencyError(core.ErrFrequencyMismatch, p.Key.String(), "",
				p.Frequency, want)
		}
	}
	return nil
}

// Clone returns a deep copy so pipeline stages can own their pattern set.
func (p *Pattern) Clone() *Pattern {
	cp := &Pattern{
		Key:       p.Key,
		SiteCount: p.SiteCount,
		Frequency: p.Frequency,
	}
	if p.Sites != nil {
		cp.Sites = make(map[core.SiteID]bool, len(p.Sites))
		for id := range p.Sites {
			cp.Sites[id] = true
		}
	}
	if len(p.Examples) > 0 {
		cp.Examples = append([]string(nil), p.Examples...)
	}
	return cp
}

// PatternMap is the live mapping of patterns under validation.
type PatternMap map[core.PatternKey]*Pattern

// Clone deep-copies the map for exclusive-ownership handoff.
func (m PatternMap) Clone() PatternMap {
	out := make(PatternMap, len(m))
	for key, p := range m {
		out[key] = p.Clone()
	}
	return out
}

// CMSStat holds one CMS bucket of the distribution.
type CMSStat struct {
	Count      int                  `json:"count"`
	Percentage float64              `json:"percentage"`
	Sites      map[core.SiteID]bool `json:"-"`
}

// Distribution maps CMS label (including CMSUnknown) to its bucket.
// Invariant: bucket counts sum to totalSites exactly.
type Distribution map[CMSLabel]*CMSStat

// Validate checks the exact count-conservation invariant.
func (d Distribution) Validate(totalSites int) error {
	sum := 0
	for _, stat := range d {
		sum += stat.Count
	}
	if sum != totalSites {
		return core.NewInconsistencyError(core.ErrCountConservation, "cms_distribution", "",
			float64(sum), float64(totalSites))
	}
	return nil
}

// Share returns a CMS's fraction of the dataset.
func (d Distribution) Share(cms CMSLabel, totalSites int) float64 {
	if totalSites == 0 {
		return 0
	}
	stat, ok := d[cms]
	if !ok {
		return 0
	}
	return float64(stat.Count) / float64(totalSites)
}

// AnalysisOptions control pattern collection.
type AnalysisOptions struct {
	MinOccurrences    int  `json:"min_occurrences"`
	IncludeExamples   bool `json:"include_examples"`
	MaxExamples       int  `json:"max_examples"`
	SemanticFiltering bool `json:"semantic_filtering"`
}

// DefaultAnalysisOptions mirrors the collector defaults.
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		MinOccurrences:  1,
		IncludeExamples: true,
		MaxExamples:     MaxPatternExamples,
	}
}
