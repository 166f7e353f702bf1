package openmeteo

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/observability"
)

// CachedProvider wraps a WeatherSeriesProvider with an in-memory LRU cache
// keyed by field and location. An entry is served only while the field's
// local date matches the one its history/forecast split was made on.
type CachedProvider struct {
	inner   domain.WeatherSeriesProvider
	cache   *lru.Cache[string, cachedSeries]
	clock   clockwork.Clock
	metrics *observability.Metrics
}

type cachedSeries struct {
	series domain.WeatherSeries
	day    string
}

// NewCachedProvider creates a cache decorator around a provider.
func NewCachedProvider(inner domain.WeatherSeriesProvider, maxEntries int, clock clockwork.Clock, metrics *observability.Metrics) (*CachedProvider, error) {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	cache, err := lru.New[string, cachedSeries](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create weather cache: %w", err)
	}
	return &CachedProvider{
		inner:   inner,
		cache:   cache,
		clock:   domain.ClockOrDefault(clock),
		metrics: metrics,
	}, nil
}

func (c *CachedProvider) Series(ctx context.Context, field domain.Field) (domain.WeatherSeries, error) {
	key := fmt.Sprintf("%s|%.4f,%.4f", field.ID, field.Location.Lat, field.Location.Lon)
	if entry, ok := c.cache.Get(key); ok {
		if entry.day == domain.LocalDate(c.clock.Now(), entry.series.UTCOffsetSeconds) {
			c.metrics.WeatherCache.WithLabelValues("hit").Inc()
			return entry.series, nil
		}
		c.cache.Remove(key)
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	series, err := c.inner.Series(ctx, field)
	if err != nil {
		return series, err
	}
	// Only cache non-empty series so a transient upstream gap can be retried.
	if len(series.History)+len(series.Forecast) > 0 {
		c.cache.Add(key, cachedSeries{
			series: series,
			day:    domain.LocalDate(c.clock.Now(), series.UTCOffsetSeconds),
		})
	}
	return series, nil
}

// Len reports the number of cached series.
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}
