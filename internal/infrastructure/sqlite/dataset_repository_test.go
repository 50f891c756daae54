package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/dcmcache/internal/domain"
)

func newDataset(name string, at time.Time) domain.Dataset {
	ds := domain.NewDataset("/cache", uuid.New(), name)
	ds.ImportedAt = at
	return ds
}

func TestDatasetRepository_SaveAndGet(t *testing.T) {
	repo := openTestDB(t).DatasetRepository()
	ctx := context.Background()

	at := time.Date(2024, 1, 1, 17, 29, 22, 520_000_000, time.UTC)
	ds := newDataset("abc", at)
	require.NoError(t, repo.Save(ctx, ds))

	got, err := repo.Get(ctx, ds.ID)
	require.NoError(t, err)
	require.Equal(t, ds, got)
}

func TestDatasetRepository_SaveReplaces(t *testing.T) {
	repo := openTestDB(t).DatasetRepository()
	ctx := context.Background()

	ds := newDataset("abc", time.UnixMilli(1000).UTC())
	require.NoError(t, repo.Save(ctx, ds))
	ds.Name = "renamed"
	require.NoError(t, repo.Save(ctx, ds))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "renamed", all[0].Name)
}

func TestDatasetRepository_GetMissing(t *testing.T) {
	repo := openTestDB(t).DatasetRepository()

	_, err := repo.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrDatasetNotFound)
}

func TestDatasetRepository_ListOrdersByImportTime(t *testing.T) {
	repo := openTestDB(t).DatasetRepository()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := newDataset("later", base.Add(time.Hour))
	earlier := newDataset("earlier", base)
	require.NoError(t, repo.Save(ctx, later))
	require.NoError(t, repo.Save(ctx, earlier))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"earlier", "later"}, []string{all[0].Name, all[1].Name})
}

func TestDatasetRepository_Delete(t *testing.T) {
	repo := openTestDB(t).DatasetRepository()
	ctx := context.Background()

	ds := newDataset("abc", time.UnixMilli(0).UTC())
	require.NoError(t, repo.Save(ctx, ds))
	require.NoError(t, repo.Delete(ctx, ds.ID))
	require.NoError(t, repo.Delete(ctx, ds.ID), "deleting twice is not an error")

	_, err := repo.Get(ctx, ds.ID)
	require.ErrorIs(t, err, domain.ErrDatasetNotFound)
}
