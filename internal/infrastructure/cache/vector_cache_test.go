package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisVectorCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisVectorCache(client, time.Hour, nil), mr
}

func TestVectorCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	vec := []float64{0.1, -0.5, 0.25}

	_, found, err := c.Get(ctx, "openai/text-embedding-3-large", "servico de limpeza")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Put(ctx, "openai/text-embedding-3-large", "servico de limpeza", vec))

	got, found, err := c.Get(ctx, "openai/text-embedding-3-large", "servico de limpeza")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, vec, got)
}

func TestVectorCacheKeysByBackend(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "backend-a", "texto", []float64{1}))

	// Same text under a different backend is a miss.
	_, found, err := c.Get(ctx, "backend-b", "texto")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestVectorCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "backend", "texto", []float64{1, 2}))
	mr.FastForward(2 * time.Hour)

	_, found, err := c.Get(ctx, "backend", "texto")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestVectorCacheCorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "backend", "texto", []float64{1}))
	// Overwrite the stored value with garbage.
	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.NoError(t, mr.Set(keys[0], "not json"))

	_, found, err := c.Get(ctx, "backend", "texto")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNoopVectorCache(t *testing.T) {
	var c NoopVectorCache
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "backend", "texto", []float64{1}))
	_, found, err := c.Get(ctx, "backend", "texto")
	require.NoError(t, err)
	assert.False(t, found)
}
