package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"potholytics/internal/model"

	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *FrameRepository {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "potholes.db"))
	require.NoError(t, err)
	repo := NewFrameRepository(db)
	t.Cleanup(func() { repo.Close(context.Background()) })
	return repo
}

func TestFrameRepository_InsertAndGetAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	date, lat, lon := "12-03-2024", 12.9716, 77.5946
	frames := []model.SavedFrame{
		{
			Info:            model.GeoInfo{Date: &date, Latitude: &lat, Longitude: &lon},
			Image:           "aGVsbG8=",
			DetectionsCount: 2,
			Model:           "yolov11n",
		},
		{ID: "fixed-id", DetectionsCount: 1},
	}
	require.NoError(t, repo.InsertBatch(ctx, frames))

	got, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotEmpty(t, got[0].ID)
	require.Equal(t, "12-03-2024", *got[0].Info.Date)
	require.Nil(t, got[0].Info.Time)
	require.Nil(t, got[0].Info.Address)
	require.InDelta(t, 12.9716, *got[0].Info.Latitude, 1e-9)
	require.Equal(t, 2, got[0].DetectionsCount)
	require.Equal(t, "aGVsbG8=", got[0].Image)
	require.False(t, got[0].CreatedAt.IsZero())

	require.Equal(t, "fixed-id", got[1].ID)
	require.Nil(t, got[1].Info.Latitude)
}

func TestFrameRepository_BatchIsAtomic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertBatch(ctx, []model.SavedFrame{{ID: "dup"}}))
	err := repo.InsertBatch(ctx, []model.SavedFrame{{ID: "fresh"}, {ID: "dup"}})
	require.Error(t, err)

	got, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFrameRepository_EmptyStore(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}
