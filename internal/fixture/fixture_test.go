package fixture_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/fixture"
)

func testOptions() fixture.GenerateOptions {
	return fixture.GenerateOptions{
		Fields:       5,
		HistoryDays:  10,
		ForecastDays: 4,
		Today:        time.Date(2025, 4, 10, 15, 0, 0, 0, time.UTC),
		Seed:         42,
		Center:       domain.Location{Lat: 41.6, Lon: -93.6},
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := fixture.Generate(testOptions())
	b := fixture.Generate(testOptions())
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("fixtures differ (-a +b):\n%s", diff)
	}

	opts := testOptions()
	opts.Seed = 43
	assert.NotEqual(t, a.Fields, fixture.Generate(opts).Fields)
}

func TestGenerate_Shape(t *testing.T) {
	fx := fixture.Generate(testOptions())
	assert.Equal(t, "2025-04-10", fx.GeneratedFor)
	require.Len(t, fx.Fields, 5)
	assert.Equal(t, []string{"field-01", "field-02", "field-03", "field-04", "field-05"}, fx.FieldIDs())

	for _, f := range fx.Fields {
		assert.GreaterOrEqual(t, f.SoilWetness, 0.0)
		assert.LessOrEqual(t, f.SoilWetness, 100.0)
		assert.GreaterOrEqual(t, f.DrainageIndex, 0.0)
		assert.LessOrEqual(t, f.DrainageIndex, 100.0)

		series := fx.Weather[f.ID]
		require.Len(t, series.History, 10, f.ID)
		require.Len(t, series.Forecast, 4, f.ID)
		assert.Equal(t, "2025-03-31", series.History[0].Date)
		assert.Equal(t, "2025-04-09", series.LastHistoryDate())
		assert.Equal(t, "2025-04-10", series.Forecast[0].Date)

		for _, row := range append(series.History, series.Forecast...) {
			assert.GreaterOrEqual(t, row.RainIn, 0.0)
			assert.GreaterOrEqual(t, row.WindMph, 0.0)
			assert.LessOrEqual(t, row.RHPct, 100.0)
			assert.Positive(t, row.SolarWm2)
		}
	}
}

func TestFixture_SaveLoadAndProvider(t *testing.T) {
	fx := fixture.Generate(testOptions())
	path := filepath.Join(t.TempDir(), "nested", "weather.json")
	require.NoError(t, fx.Save(path))

	loaded, err := fixture.Load(path)
	require.NoError(t, err)
	assert.Equal(t, fx.Fields, loaded.Fields)

	p := fixture.NewProvider(loaded)
	series, err := p.Series(context.Background(), loaded.Fields[0])
	require.NoError(t, err)
	assert.Equal(t, fx.Weather[loaded.Fields[0].ID], series)

	_, err = p.Series(context.Background(), domain.Field{ID: "missing"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLoad_Errors(t *testing.T) {
	_, err := fixture.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
