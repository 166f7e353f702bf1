package openmeteo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/observability"
)

type mockProvider struct {
	calls  int
	series domain.WeatherSeries
	err    error
}

func (m *mockProvider) Series(context.Context, domain.Field) (domain.WeatherSeries, error) {
	m.calls++
	return m.series, m.err
}

func oneDay() domain.WeatherSeries {
	return domain.WeatherSeries{History: []domain.WeatherRow{{Date: "2025-04-09", RainIn: 0.2}}}
}

func TestCachedProvider_HitsWithinDay(t *testing.T) {
	inner := &mockProvider{series: oneDay()}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	c, err := NewCachedProvider(inner, 8, clock, metrics)
	require.NoError(t, err)

	for range 3 {
		series, err := c.Series(context.Background(), testField)
		require.NoError(t, err)
		assert.Equal(t, oneDay(), series)
	}
	assert.Equal(t, 1, inner.calls)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.WeatherCache.WithLabelValues("hit")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WeatherCache.WithLabelValues("miss")), 1e-9)

	clock.Advance(24 * time.Hour)
	_, err = c.Series(context.Background(), testField)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "new day refetches")
}

func TestCachedProvider_ExpiresAtFieldLocalMidnight(t *testing.T) {
	series := oneDay()
	series.UTCOffsetSeconds = -5 * 3600
	inner := &mockProvider{series: series}
	// 20:00 UTC on the 10th is 15:00 local at UTC-5.
	clock := clockwork.NewFakeClockAt(time.Date(2025, 4, 10, 20, 0, 0, 0, time.UTC))
	c, err := NewCachedProvider(inner, 8, clock, observability.NewMetricsForTesting())
	require.NoError(t, err)

	_, err = c.Series(context.Background(), testField)
	require.NoError(t, err)

	// 02:00 UTC on the 11th: a new UTC day, still the 10th locally.
	clock.Advance(6 * time.Hour)
	_, err = c.Series(context.Background(), testField)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "same local day is served from cache")

	// 05:30 UTC on the 11th is 00:30 local, so the split is stale.
	clock.Advance(3*time.Hour + 30*time.Minute)
	_, err = c.Series(context.Background(), testField)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "local midnight refetches")
	assert.Equal(t, 1, c.Len())
}

func TestCachedProvider_KeysByField(t *testing.T) {
	inner := &mockProvider{series: oneDay()}
	c, err := NewCachedProvider(inner, 8, clockwork.NewFakeClock(), observability.NewMetricsForTesting())
	require.NoError(t, err)

	other := testField
	other.ID = "south-80"
	_, _ = c.Series(context.Background(), testField)
	_, _ = c.Series(context.Background(), other)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, c.Len())
}

func TestCachedProvider_DoesNotCacheErrorsOrEmpty(t *testing.T) {
	inner := &mockProvider{err: errors.New("timeout")}
	c, err := NewCachedProvider(inner, 8, clockwork.NewFakeClock(), observability.NewMetricsForTesting())
	require.NoError(t, err)

	_, err = c.Series(context.Background(), testField)
	require.Error(t, err)

	inner.err = nil
	_, err = c.Series(context.Background(), testField)
	require.NoError(t, err)
	_, err = c.Series(context.Background(), testField)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Zero(t, c.Len())
}

func TestCachedProvider_Evicts(t *testing.T) {
	inner := &mockProvider{series: oneDay()}
	c, err := NewCachedProvider(inner, 1, clockwork.NewFakeClock(), observability.NewMetricsForTesting())
	require.NoError(t, err)

	other := testField
	other.ID = "south-80"
	_, _ = c.Series(context.Background(), testField)
	_, _ = c.Series(context.Background(), other)
	_, _ = c.Series(context.Background(), testField)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 1, c.Len())
}
