package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyloop/lernplan-api/internal/models"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

func newCacheRepo(t *testing.T) *CacheRepository {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheRepository(client, zap.NewNop())
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo := newCacheRepo(t)
	ctx := context.Background()

	bucket := []models.BlockAllocation{{ID: "b-1", Date: "2025-03-03", Position: 1}}
	require.NoError(t, repo.Set(ctx, "blocks:2025-03-03", bucket, time.Minute))

	var loaded []models.BlockAllocation
	require.NoError(t, repo.Get(ctx, "blocks:2025-03-03", &loaded))
	require.Len(t, loaded, 1)
	require.Equal(t, "b-1", loaded[0].ID)
}

func TestCacheRepositoryMiss(t *testing.T) {
	repo := newCacheRepo(t)

	var dest []models.BlockAllocation
	err := repo.Get(context.Background(), "blocks:unknown", &dest)
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "blocks:2025-03-03", "a", 0))
	require.NoError(t, repo.Set(ctx, "blocks:2025-03-04", "b", 0))
	require.NoError(t, repo.Set(ctx, "sessions:2025-03-03", "c", 0))

	require.NoError(t, repo.DeleteByPattern(ctx, "blocks:*"))

	var dest string
	require.ErrorIs(t, repo.Get(ctx, "blocks:2025-03-03", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Get(ctx, "sessions:2025-03-03", &dest))
}

func TestCacheRepositoryNilClientDegrades(t *testing.T) {
	repo := NewCacheRepository(nil, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", "v", 0))
	var dest string
	require.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Delete(ctx, "k"))
}
