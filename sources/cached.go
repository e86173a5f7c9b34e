package sources

import (
	"context"
	"time"

	"go.uber.org/zap"

	"solar-impact-insights/cache"
	"solar-impact-insights/dataset"
)

// CachedSource serves reads from a SeriesCache and falls through to the wrapped source on a miss.
type CachedSource struct {
	src   Source
	cache cache.SeriesCache
	ttl   time.Duration
	log   *zap.Logger
}

// Cached wraps src. A nil cache disables caching and a nil logger disables logging.
func Cached(src Source, c cache.SeriesCache, ttl time.Duration, log *zap.Logger) *CachedSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedSource{src: src, cache: c, ttl: ttl, log: log}
}

func (s *CachedSource) Name() string           { return s.src.Name() }
func (s *CachedSource) Column() dataset.Column { return s.src.Column() }

func (s *CachedSource) Fetch(ctx context.Context) (*dataset.Series, error) {
	if s.cache == nil {
		return s.src.Fetch(ctx)
	}
	if series, ok := s.cache.GetSeries(ctx, s.src.Name()); ok {
		return series, nil
	}

	series, err := s.src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	// Empty reads are not cached so the next run retries the upstream.
	if !series.IsEmpty() {
		if err := s.cache.SetSeries(ctx, s.src.Name(), series, s.ttl); err != nil {
			s.log.Debug("series not cached", zap.String("source", s.src.Name()), zap.Error(err))
		}
	}
	return series, nil
}
