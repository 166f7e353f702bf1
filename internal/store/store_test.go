package store_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/field-readiness-service/internal/adapter/memory"
	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/store"
)

func TestFields_PutGetList(t *testing.T) {
	ctx := context.Background()
	s := store.NewFields(memory.New())

	require.NoError(t, s.Put(ctx, domain.Field{ID: "f-2", Name: "North", SoilWetness: 60, DrainageIndex: 45}))
	require.NoError(t, s.Put(ctx, domain.Field{ID: "f-1", Name: "South"}))

	f, err := s.Get(ctx, "f-2")
	require.NoError(t, err)
	assert.Equal(t, "North", f.Name)
	assert.InDelta(t, 60, f.SoilWetness, 1e-9)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "f-1", all[0].ID)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Error(t, s.Put(ctx, domain.Field{}))
}

func TestTruth_MissingIsNotAnError(t *testing.T) {
	s := store.NewTruth(memory.New())
	_, ok, err := s.Get(context.Background(), "f-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTruth_SetMergesAndNormalizes(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	s := store.NewTruth(backend)

	require.NoError(t, backend.Put(ctx, store.CollectionTruth, "f-1", []byte(`{"note":"kept","storage_final":1}`)))
	require.NoError(t, s.Set(ctx, "f-1", domain.StorageState{
		StorageFinal: 9,
		SmaxAtSave:   4,
		AsOfDate:     "2025-04-01",
		Source:       domain.SourceGlobalForceTarget,
	}))

	st, ok, err := s.Get(ctx, "f-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 4, st.StorageFinal, 1e-9)
	assert.Equal(t, "f-1", st.FieldID)
	assert.Equal(t, domain.SourceGlobalForceTarget, st.Source)

	raw, err := backend.Get(ctx, store.CollectionTruth, "f-1")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"note":"kept"`)
}

func TestTruth_SetReplacesCalibrationProvenance(t *testing.T) {
	ctx := context.Background()
	s := store.NewTruth(memory.New())

	require.NoError(t, s.Set(ctx, "f-1", domain.StorageState{
		StorageFinal: 1,
		SmaxAtSave:   4,
		AsOfDate:     "2025-04-09",
		Source:       domain.SourceGlobalForceTarget,
		UpdatedBy:    "agronomist@example.com",
		AdjustmentID: "adj-1",
		StorageMult:  0.5,
	}))
	require.NoError(t, s.Set(ctx, "f-1", domain.StorageState{
		StorageFinal: 0.8,
		SmaxAtSave:   4,
		AsOfDate:     "2025-04-10",
		Source:       domain.SourceDailyRollForward,
		UpdatedBy:    "rollforward",
	}))

	st, ok, err := s.Get(ctx, "f-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SourceDailyRollForward, st.Source)
	assert.Equal(t, "rollforward", st.UpdatedBy)
	assert.Empty(t, st.AdjustmentID)
	assert.Zero(t, st.StorageMult)
	assert.Equal(t, "2025-04-10", st.AsOfDate)

	require.NoError(t, s.Set(ctx, "f-1", domain.StorageState{
		StorageFinal: 2,
		SmaxAtSave:   4,
		Source:       domain.SourceBaselineRebuild,
		StorageMult:  1,
	}))
	st, _, err = s.Get(ctx, "f-1")
	require.NoError(t, err)
	assert.Empty(t, st.AsOfDate, "a rebuild without history clears the seed date")
	assert.Empty(t, st.UpdatedBy)
	assert.Empty(t, st.AdjustmentID)
}

func TestThresholds_DefaultsAndOverrides(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	s := store.NewThresholds(backend, slog.Default())

	v, err := s.Get(ctx, domain.OpPlanting)
	require.NoError(t, err)
	assert.Equal(t, 75, v)

	require.NoError(t, s.Set(ctx, map[domain.OpKey]int{domain.OpPlanting: 80, domain.OpHarvest: 400}))

	v, err = s.Get(ctx, domain.OpPlanting)
	require.NoError(t, err)
	assert.Equal(t, 80, v)

	v, err = s.Get(ctx, domain.OpHarvest)
	require.NoError(t, err)
	assert.Equal(t, 80, v, "out-of-range value falls back to default")

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(domain.OpKeys()))
	assert.Equal(t, 60, all[domain.OpSpraying])
}

func TestThresholds_MalformedDocument(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	require.NoError(t, backend.Put(ctx, store.CollectionThresholds, "operations", []byte(`not json`)))

	v, err := store.NewThresholds(backend, slog.Default()).Get(ctx, domain.OpSpringTillage)
	require.NoError(t, err)
	assert.Equal(t, 70, v)
}

func TestTuning_DefaultsAndSanitize(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	s := store.NewTuning(backend, slog.Default())

	g, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTuning(), g)

	require.NoError(t, backend.Put(ctx, store.CollectionTuning, "global", []byte(`{"dry_loss_mult":12,"rain_eff_mult":0,"wet_bias":0.2}`)))
	g, err = s.Get(ctx)
	require.NoError(t, err)
	assert.InDelta(t, domain.TuningMultMax, g.DryLossMult, 1e-9)
	assert.InDelta(t, 1, g.RainEffMult, 1e-9)
	assert.InDelta(t, 0.2, g.WetBias, 1e-9)

	require.NoError(t, backend.Put(ctx, store.CollectionTuning, "global", []byte(`[`)))
	g, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTuning(), g)
}

func TestCooldown_SetLocksForWindow(t *testing.T) {
	ctx := context.Background()
	s := store.NewCooldown(memory.New(), 0)

	st, err := s.Get(ctx)
	require.NoError(t, err)
	now := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	assert.False(t, st.Locked(now))
	assert.InDelta(t, domain.DefaultCooldownHours, st.CooldownHours, 1e-9)

	require.NoError(t, s.Set(ctx, now))
	st, err = s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, st.Locked(now.Add(71*time.Hour)))
	assert.False(t, st.Locked(now.Add(72*time.Hour)))
	assert.Equal(t, now, st.LastApplied)
}

func TestAudit_ListIsChronological(t *testing.T) {
	ctx := context.Background()
	s := store.NewAudit(memory.New())
	base := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, domain.CalibrationAdjustment{ID: "b", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Append(ctx, domain.CalibrationAdjustment{ID: "a", CreatedAt: base}))
	require.NoError(t, s.Append(ctx, domain.CalibrationAdjustment{ID: "c", CreatedAt: base.Add(48 * time.Hour)}))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	recent, err := s.Since(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID)
}
