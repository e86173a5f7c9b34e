package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"solar-impact-insights/cache"
	"solar-impact-insights/config"
	"solar-impact-insights/dataset"
	"solar-impact-insights/sources"
)

// LiveSources builds the upstream feeds in fallback order. Each provider gets its own
// fetcher so one tripped breaker does not block the others. A nil cache disables caching.
func LiveSources(cfg config.SourcesConfig, seriesCache cache.SeriesCache, log *zap.Logger) ([]sources.Source, error) {
	fetcher := func(name string) *sources.Fetcher {
		return sources.NewFetcher(sources.FetcherConfig{
			Name:              name,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
	}

	swpc := fetcher("swpc")
	srcs := []sources.Source{
		sources.NewGOESProtonSource(swpc, cfg.ProtonURL),
		sources.NewNOAAKpSource(swpc, cfg.KpURL),
		// GFZ only fills kp_index when SWPC returns nothing.
		sources.NewGFZKpSource(fetcher("gfz"), "", time.Time{}, time.Time{}),
		sources.NewNSIDCIceSource(fetcher("nsidc"), cfg.IceURL),
		sources.NewGISSTemperatureSource(fetcher("giss"), cfg.TemperatureURL),
	}

	if cfg.OzoneFile != "" {
		ozone, err := sources.NewFileSource(cfg.OzoneFile, dataset.OzoneLevel)
		if err != nil {
			return nil, fmt.Errorf("ozone source: %w", err)
		}
		srcs = append(srcs, ozone)
	}

	if seriesCache == nil {
		return srcs, nil
	}
	for i, src := range srcs {
		srcs[i] = sources.Cached(src, seriesCache, cfg.CacheTTL, log)
	}
	return srcs, nil
}

// MockSources returns the deterministic generator feeds.
func MockSources() []sources.Source {
	return sources.DefaultMockGenerator().Sources()
}
