package signal

import (
	"sort"

	"cmsig/domain/core"
)

// CollectPatterns aggregates the store's per-site signal sets into the
// pattern map the correlation engine consumes. Patterns below
// opts.MinOccurrences are not dropped here; that is the frequency stage's
// job. Examples are bounded by opts.MaxExamples (capped at
// MaxPatternExamples).
func CollectPatterns(store *Store, opts AnalysisOptions) PatternMap {
	patterns := make(PatternMap)
	if store.IsEmpty() {
		return patterns
	}

	maxExamples := opts.MaxExamples
	if maxExamples <= 0 || maxExamples > MaxPatternExamples {
		maxExamples = MaxPatternExamples
	}

	for siteID, obs := range store.Sites {
		for _, key := range obs.Signals() {
			pk := core.PatternKey(key)
			p, ok := patterns[pk]
			if !ok {
				p = &Pattern{Key: pk, Sites: make(map[core.SiteID]bool)}
				patterns[pk] = p
			}
			if !p.Sites[siteID] {
				p.Sites[siteID] = true
				p.SiteCount++
			}
		}
	}

	total := float64(store.TotalSites)
	for _, p := range patterns {
		p.Frequency = float64(p.SiteCount) / total
		if opts.IncludeExamples {
			// Sorted so repeated runs pick the same example sites.
			ids := make([]string, 0, len(p.Sites))
			for id := range p.Sites {
				ids = append(ids, id.String())
			}
			sort.Strings(ids)
			if len(ids) > maxExamples {
				ids = ids[:maxExamples]
			}
			p.Examples = ids
		}
	}
	return patterns
}

// BuildDistribution buckets the store's sites by CMS label. Sites without a
// label fall under CMSUnknown, so the bucket counts always sum to TotalSites.
func BuildDistribution(store *Store) Distribution {
	dist := make(Distribution)
	if store.IsEmpty() {
		return dist
	}

	for siteID, obs := range store.Sites {
		cms := obs.CMS
		if cms == "" {
			cms = CMSUnknown
		}
		stat, ok := dist[cms]
		if !ok {
			stat = &CMSStat{Sites: make(map[core.SiteID]bool)}
			dist[cms] = stat
		}
		stat.Count++
		stat.Sites[siteID] = true
	}

	total := float64(store.TotalSites)
	for _, stat := range dist {
		stat.Percentage = float64(stat.Count) / total * 100
	}
	return dist
}

// Labels returns the distribution's CMS labels in deterministic order.
func (d Distribution) Labels() []CMSLabel {
	labels := make([]CMSLabel, 0, len(d))
	for cms := range d {
		labels = append(labels, cms)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}
