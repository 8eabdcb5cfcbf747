package rbac

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCache(client), mr
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "permission:42:view:audit_logs:global", CacheKey(42, "view:audit_logs", nil))
	assert.Equal(t, "permission:42:push:code:9876", CacheKey(42, "push:code", &Resource{ID: "9876", Type: ResourceTypeRepository}))
	assert.Equal(t, "permission:7:x:global", CacheKey(7, "x", &Resource{Type: ResourceTypeRepository}))
}

func TestCache_SetPositive(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	key := CacheKey(1, "view:audit_logs", nil)
	require.NoError(t, cache.Set(ctx, key, true))

	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "true", val)
	assert.Equal(t, PositiveResultTTL, mr.TTL(key))
}

func TestCache_SetNegative(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	key := CacheKey(1, "view:audit_logs", nil)
	require.NoError(t, cache.Set(ctx, key, false))

	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "false", val)
	assert.Equal(t, NegativeResultTTL, mr.TTL(key))
}

func TestCache_Get(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	key := CacheKey(5, "manage:policies", nil)

	_, found, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found, "expected a cache miss before any write")

	require.NoError(t, cache.Set(ctx, key, true))

	allowed, found, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, allowed)
}

func TestCache_InvalidateUser(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, cache.Set(ctx, CacheKey(1, fmt.Sprintf("perm-%d", i), nil), true))
	}
	otherKey := CacheKey(2, "perm-0", nil)
	require.NoError(t, cache.Set(ctx, otherKey, true))

	require.NoError(t, cache.InvalidateUser(ctx, 1))

	for i := 0; i < 5; i++ {
		assert.False(t, mr.Exists(CacheKey(1, fmt.Sprintf("perm-%d", i), nil)),
			"expected every permission:1:* key to be dropped")
	}
	assert.True(t, mr.Exists(otherKey), "other users' entries must survive")
}
