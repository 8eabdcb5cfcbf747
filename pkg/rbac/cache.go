package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is the Redis-backed cache-aside layer in front of the permission
// store. Values are the strings "true"/"false"; the store remains the
// source of truth and entries expire on their own if invalidation is
// missed.
type Cache struct {
	client      *redis.Client
	positiveTTL time.Duration
	negativeTTL time.Duration
}

// NewCache creates a permission cache with the default TTL asymmetry
// (600s positive / 300s negative).
func NewCache(client *redis.Client) *Cache {
	return NewCacheWithTTL(client, PositiveResultTTL, NegativeResultTTL)
}

// NewCacheWithTTL creates a permission cache with explicit TTLs.
func NewCacheWithTTL(client *redis.Client, positiveTTL, negativeTTL time.Duration) *Cache {
	return &Cache{
		client:      client,
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
	}
}

// Get returns the cached outcome for a key. The second return value is
// false on a cache miss.
func (c *Cache) Get(ctx context.Context, key string) (allowed bool, found bool, err error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("cache get failed: %w", err)
	}
	return val == "true", true, nil
}

// Set stores a permission check outcome. Positive outcomes use the
// longer TTL; negative outcomes expire sooner so false negatives caused
// by a grant racing the check recover faster.
func (c *Cache) Set(ctx context.Context, key string, allowed bool) error {
	val := "false"
	ttl := c.negativeTTL
	if allowed {
		val = "true"
		ttl = c.positiveTTL
	}
	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// InvalidateUser deletes every cached permission entry for a user. A
// role or permission mutation drops all of the user's cached outcomes
// rather than computing the affected keys.
func (c *Cache) InvalidateUser(ctx context.Context, userID int64) error {
	pattern := UserKeyPattern(userID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
	}
	return nil
}

// Ping checks cache connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
