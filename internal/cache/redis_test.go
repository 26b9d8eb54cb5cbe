package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trendingEntry struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func setupTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := NewRedisCache("redis://"+s.Addr(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestRedisCache_SetAndGet(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)
	ctx := context.Background()

	want := []trendingEntry{{ID: "a", Score: 1.5}, {ID: "b", Score: 0.5}}
	require.NoError(t, c.SetJSON(ctx, "trending:10", want))

	var got []trendingEntry
	hit, err := c.GetJSON(ctx, "trending:10", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)
}

func TestRedisCache_MissReturnsFalse(t *testing.T) {
	c, _ := setupTestCache(t, time.Minute)

	var got []trendingEntry
	hit, err := c.GetJSON(context.Background(), "absent", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCache_Expires(t *testing.T) {
	c, s := setupTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "trending:5", []trendingEntry{{ID: "a"}}))
	s.FastForward(2 * time.Minute)

	var got []trendingEntry
	hit, err := c.GetJSON(ctx, "trending:5", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCache_DeletePrefix(t *testing.T) {
	c, s := setupTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "trending:5", 1))
	require.NoError(t, c.SetJSON(ctx, "trending:10", 2))
	require.NoError(t, c.SetJSON(ctx, "other", 3))

	require.NoError(t, c.DeletePrefix(ctx, "trending:"))

	assert.False(t, s.Exists(keyPrefix+"trending:5"))
	assert.False(t, s.Exists(keyPrefix+"trending:10"))
	assert.True(t, s.Exists(keyPrefix+"other"))
}

func TestRedisCache_CorruptValue(t *testing.T) {
	c, s := setupTestCache(t, time.Minute)
	require.NoError(t, s.Set(keyPrefix+"broken", "{not json"))

	var got []trendingEntry
	_, err := c.GetJSON(context.Background(), "broken", &got)
	assert.Error(t, err)
}

func TestRedisCache_NilReceiverIsNoop(t *testing.T) {
	var c *RedisCache
	ctx := context.Background()

	hit, err := c.GetJSON(ctx, "k", new(int))
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.SetJSON(ctx, "k", 1))
	assert.NoError(t, c.DeletePrefix(ctx, "k"))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache("not-a-url://", time.Minute)
	assert.Error(t, err)
}
