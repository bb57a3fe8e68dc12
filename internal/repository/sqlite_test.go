package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-insight-server/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func observation(code string, value float64, collectedAt time.Time) domain.NormalizedBiomarker {
	return domain.NormalizedBiomarker{
		Code:          code,
		CanonicalName: code,
		Value:         value,
		Unit:          "mg/dL",
		Status:        domain.StatusNormal,
		CollectedAt:   collectedAt,
	}
}

func TestSQLiteStore_SaveAndLoadSeries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d0 := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	d1 := d0.AddDate(0, 1, 0)

	require.NoError(t, store.SaveObservations(ctx, "user-1", []domain.NormalizedBiomarker{
		observation("glucose", 92, d0),
		observation("ldl_cholesterol", 110, d0),
	}))
	require.NoError(t, store.SaveObservations(ctx, "user-1", []domain.NormalizedBiomarker{
		observation("glucose", 98, d1),
	}))

	series, err := store.LoadSeries(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, series, 2)

	glucose := series["glucose"]
	require.Len(t, glucose, 2)
	assert.Equal(t, 92.0, glucose[0].Value)
	assert.Equal(t, 98.0, glucose[1].Value)
	assert.True(t, glucose[0].Date.Before(glucose[1].Date))

	require.Len(t, series["ldl_cholesterol"], 1)
}

func TestSQLiteStore_UpsertReplacesSameSample(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	collected := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, store.SaveObservations(ctx, "user-1", []domain.NormalizedBiomarker{
		observation("glucose", 90, collected),
	}))
	require.NoError(t, store.SaveObservations(ctx, "user-1", []domain.NormalizedBiomarker{
		observation("glucose", 91, collected),
	}))

	series, err := store.LoadSeries(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, series["glucose"], 1)
	assert.Equal(t, 91.0, series["glucose"][0].Value)
}

func TestSQLiteStore_SkipsUnresolvedBiomarkers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveObservations(ctx, "user-1", []domain.NormalizedBiomarker{
		{CanonicalName: "mystery marker", Value: 42, Status: domain.StatusUnknown, CollectedAt: time.Now()},
		observation("glucose", 92, time.Now()),
	}))

	series, err := store.LoadSeries(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestSQLiteStore_RequiresUserID(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveObservations(context.Background(), "", []domain.NormalizedBiomarker{
		observation("glucose", 92, time.Now()),
	})
	assert.Error(t, err)
}

func TestSQLiteStore_LoadCodeHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var obs []domain.NormalizedBiomarker
	for i := 0; i < 5; i++ {
		obs = append(obs, observation("glucose", 90+float64(i), base.AddDate(0, 0, i)))
	}
	require.NoError(t, store.SaveObservations(ctx, "user-1", obs))

	t.Run("limit returns newest first", func(t *testing.T) {
		series, err := store.LoadCodeHistory(ctx, "user-1", "glucose", 3)
		require.NoError(t, err)
		require.Len(t, series, 3)
		assert.Equal(t, 94.0, series[0].Value)
		assert.Equal(t, 92.0, series[2].Value)
	})

	t.Run("non-positive limit returns everything", func(t *testing.T) {
		series, err := store.LoadCodeHistory(ctx, "user-1", "glucose", 0)
		require.NoError(t, err)
		assert.Len(t, series, 5)
	})

	t.Run("unknown code is empty, not an error", func(t *testing.T) {
		series, err := store.LoadCodeHistory(ctx, "user-1", "tsh", 10)
		require.NoError(t, err)
		assert.Empty(t, series)
	})
}

func TestSQLiteStore_UsersAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.SaveObservations(ctx, "user-1", []domain.NormalizedBiomarker{
		observation("glucose", 92, now),
	}))
	require.NoError(t, store.SaveObservations(ctx, "user-2", []domain.NormalizedBiomarker{
		observation("tsh", 2.1, now),
	}))

	series, err := store.LoadSeries(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, series, 1)
	_, hasTSH := series["tsh"]
	assert.False(t, hasTSH)
}
