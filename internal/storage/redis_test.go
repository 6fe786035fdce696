package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	cache := NewRedisCacheFromClient(client)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Set(ctx, "identity:github:alice", "user-1", 10*time.Second))

	got, err := cache.Get(ctx, "identity:github:alice")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got)
}

func TestRedisCache_GetMissing(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := testContext(t)

	_, err := cache.Get(ctx, "identity:github:ghost")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Set(ctx, "identity:github:alice", "user-1", time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := cache.Get(ctx, "identity:github:alice")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisCache_Exists(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := testContext(t)

	exists, err := cache.Exists(ctx, "some:key")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, cache.Set(ctx, "some:key", "value", 10*time.Second))

	exists, err = cache.Exists(ctx, "some:key")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRedisCache_Del(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Set(ctx, "a", "1", 10*time.Second))
	require.NoError(t, cache.Set(ctx, "b", "2", 10*time.Second))

	require.NoError(t, cache.Del(ctx, "a", "b"))

	exists, err := cache.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisCache_Ping(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := testContext(t)

	require.NoError(t, cache.Ping(ctx))

	mr.Close()
	assert.Error(t, cache.Ping(ctx))
}
