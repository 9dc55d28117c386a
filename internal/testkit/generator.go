// Package testkit generates deterministic synthetic signal stores with known
// ground truth, so correlation and pipeline tests can assert against planted
// associations instead of hand-built fixtures.
package testkit

import (
	"fmt"
	"math/rand"
	"sort"

	"cmsig/domain/core"
	"cmsig/domain/signal"
)

// PlantedPattern is one synthetic signal with a controlled conditional rate.
type PlantedPattern struct {
	Key    string
	Source string // header, meta or script bucket
	CMS    signal.CMSLabel
	// Rate is the probability a site of the owning CMS carries the signal.
	Rate float64
	// NoiseRate is the probability any other site carries it.
	NoiseRate float64
}

// Config drives the generator. Same seed, same store.
type Config struct {
	Sites    int
	Seed     int64
	CMSMix   map[signal.CMSLabel]float64 // shares, should sum to ~1
	Patterns []PlantedPattern
}

// DefaultConfig plants the standard CMS mix and a handful of strongly and
// weakly discriminative signals.
func DefaultConfig() Config {
	return Config{
		Sites: 200,
		Seed:  42,
		CMSMix: map[signal.CMSLabel]float64{
			"WordPress":       0.5,
			"Drupal":          0.3,
			signal.CMSUnknown: 0.2,
		},
		Patterns: []PlantedPattern{
			{Key: "meta_generator_wordpress", Source: "meta", CMS: "WordPress", Rate: 0.9, NoiseRate: 0.01},
			{Key: "header_api_wordpress", Source: "header", CMS: "WordPress", Rate: 0.6, NoiseRate: 0.02},
			{Key: "meta_generator_drupal", Source: "meta", CMS: "Drupal", Rate: 0.8, NoiseRate: 0.01},
			{Key: "js_settings_drupal", Source: "script", CMS: "Drupal", Rate: 0.5, NoiseRate: 0.05},
			{Key: "header_server_generic", Source: "header", CMS: signal.CMSUnknown, Rate: 0.5, NoiseRate: 0.5},
		},
	}
}

// Generate builds the synthetic store.
func Generate(cfg Config) *signal.Store {
	rng := rand.New(rand.NewSource(cfg.Seed))

	labels := make([]signal.CMSLabel, 0, len(cfg.CMSMix))
	for cms := range cfg.CMSMix {
		labels = append(labels, cms)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	observations := make([]signal.SiteObservation, 0, cfg.Sites)
	for i := 0; i < cfg.Sites; i++ {
		cms := pickCMS(rng, labels, cfg.CMSMix)
		obs := signal.SiteObservation{
			SiteID: core.SiteID(fmt.Sprintf("site-%04d", i)),
			CMS:    cms,
		}
		for _, pattern := range cfg.Patterns {
			rate := pattern.NoiseRate
			if pattern.CMS == cms {
				rate = pattern.Rate
			}
			if rng.Float64() >= rate {
				continue
			}
			switch pattern.Source {
			case "meta":
				obs.MetaSignals = append(obs.MetaSignals, pattern.Key)
			case "script":
				obs.ScriptSignals = append(obs.ScriptSignals, pattern.Key)
			default:
				obs.HeaderSignals = append(obs.HeaderSignals, pattern.Key)
			}
		}
		observations = append(observations, obs)
	}

	return signal.NewStore(observations)
}

func pickCMS(rng *rand.Rand, labels []signal.CMSLabel, mix map[signal.CMSLabel]float64) signal.CMSLabel {
	total := 0.0
	for _, cms := range labels {
		total += mix[cms]
	}
	r := rng.Float64() * total
	acc := 0.0
	for _, cms := range labels {
		acc += mix[cms]
		if r < acc {
			return cms
		}
	}
	return labels[len(labels)-1]
}
