package llm

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionCache_LocalRoundTrip(t *testing.T) {
	t.Parallel()
	cache := NewDecisionCache(CacheConfig{}, nil, nil)

	dec := &RoutingDecision{Provider: "openai", Model: "gpt-4o-mini", Tier: TierLow}
	cache.Set(context.Background(), "k1", dec)

	got, err := cache.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, dec, got)

	_, err = cache.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDecisionCache_TTLExpiry(t *testing.T) {
	t.Parallel()
	cache := NewDecisionCache(CacheConfig{TTL: 10 * time.Millisecond}, nil, nil)

	cache.Set(context.Background(), "k1", &RoutingDecision{Provider: "openai"})
	time.Sleep(25 * time.Millisecond)

	_, err := cache.Get(context.Background(), "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()
	cache := newLRUCache(2, time.Minute)

	cache.set("k1", &RoutingDecision{Model: "m1"})
	cache.set("k2", &RoutingDecision{Model: "m2"})

	// Touch k1 so k2 becomes the eviction candidate.
	_, ok := cache.get("k1")
	require.True(t, ok)

	cache.set("k3", &RoutingDecision{Model: "m3"})
	assert.Equal(t, 2, cache.len())

	_, ok = cache.get("k2")
	assert.False(t, ok)
	_, ok = cache.get("k1")
	assert.True(t, ok)
	_, ok = cache.get("k3")
	assert.True(t, ok)
}

func TestLRUCache_SetExistingKeyRefreshes(t *testing.T) {
	t.Parallel()
	cache := newLRUCache(2, time.Minute)

	cache.set("k1", &RoutingDecision{Model: "old"})
	cache.set("k1", &RoutingDecision{Model: "new"})
	assert.Equal(t, 1, cache.len())

	got, ok := cache.get("k1")
	require.True(t, ok)
	assert.Equal(t, "new", got.Model)
}

func TestDecisionCache_RedisSecondLevel(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := CacheConfig{EnableRedis: true}

	writer := NewDecisionCache(cfg, rdb, nil)
	dec := &RoutingDecision{Provider: "anthropic", Model: "claude-sonnet", Tier: TierMedium}
	writer.Set(context.Background(), "shared", dec)

	require.True(t, mr.Exists("route:cache:shared"))

	// A fresh cache with an empty local level still finds the decision
	// through Redis and backfills locally.
	reader := NewDecisionCache(cfg, rdb, nil)
	got, err := reader.Get(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, dec.Provider, got.Provider)
	assert.Equal(t, dec.Model, got.Model)
	assert.Equal(t, dec.Tier, got.Tier)

	mr.FlushAll()
	got, err = reader.Get(context.Background(), "shared")
	require.NoError(t, err, "backfilled local entry survives a Redis flush")
	assert.Equal(t, dec.Model, got.Model)
}

func TestDecisionCache_RedisDisabledIgnoresClient(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cache := NewDecisionCache(CacheConfig{EnableRedis: false}, rdb, nil)
	cache.Set(context.Background(), "k1", &RoutingDecision{Provider: "openai"})

	assert.False(t, mr.Exists("route:cache:k1"))
}
