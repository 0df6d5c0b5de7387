package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
)

type cachedDoc struct {
	Name string `json:"name"`
}

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, "uerp:"), mr
}

func TestCacheRepositorySetGet(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "faculties:list", cachedDoc{Name: "Law"}, time.Minute))
	assert.True(t, mr.Exists("uerp:faculties:list"))

	var got cachedDoc
	require.NoError(t, repo.Get(ctx, "faculties:list", &got))
	assert.Equal(t, "Law", got.Name)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "faculties:list", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "faculties:list", []cachedDoc{{Name: "A"}}, time.Minute))
	require.NoError(t, repo.Set(ctx, "faculties:other", []cachedDoc{{Name: "B"}}, time.Minute))
	require.NoError(t, repo.Set(ctx, "users:x", cachedDoc{Name: "C"}, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "faculties:*"))
	assert.False(t, mr.Exists("uerp:faculties:list"))
	assert.False(t, mr.Exists("uerp:faculties:other"))
	assert.True(t, mr.Exists("uerp:users:x"))
}

func TestCacheRepositoryDisabled(t *testing.T) {
	repo := NewCacheRepository(nil, "uerp:")
	ctx := context.Background()

	assert.False(t, repo.Enabled())
	assert.NoError(t, repo.Set(ctx, "k", "v", time.Minute))
	var out string
	assert.ErrorIs(t, repo.Get(ctx, "k", &out), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.DeleteByPattern(ctx, "*"))
	assert.NoError(t, repo.Ping(ctx))
}
