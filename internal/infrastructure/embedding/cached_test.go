package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapVectorCache struct {
	entries map[string][]float64
	puts    int
}

func newMapVectorCache() *mapVectorCache {
	return &mapVectorCache{entries: make(map[string][]float64)}
}

func (c *mapVectorCache) Get(_ context.Context, backendID, text string) ([]float64, bool, error) {
	vec, ok := c.entries[backendID+"|"+text]
	return vec, ok, nil
}

func (c *mapVectorCache) Put(_ context.Context, backendID, text string, vector []float64) error {
	c.puts++
	c.entries[backendID+"|"+text] = vector
	return nil
}

func TestCachedVectorizerHitSkipsBackend(t *testing.T) {
	inner := &scriptedVectorizer{id: "backend", dims: 2, vec: []float64{1, 0}}
	vc := newMapVectorCache()
	v := NewCachedVectorizer(inner, vc, nil)
	ctx := context.Background()

	first, err := v.Embed(ctx, "Serviços de limpeza")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.embeds)
	assert.Equal(t, 1, vc.puts)

	// Accent variant of the same text hits the same entry.
	second, err := v.Embed(ctx, "SERVICOS DE LIMPEZA")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.embeds)
	assert.Equal(t, first, second)
}

func TestCachedVectorizerEmptyTextNeverCached(t *testing.T) {
	inner := &scriptedVectorizer{id: "backend", dims: 3, vec: []float64{1, 1, 1}}
	vc := newMapVectorCache()
	v := NewCachedVectorizer(inner, vc, nil)

	vec, err := v.Embed(context.Background(), "  ")
	require.NoError(t, err)

	assert.Equal(t, make([]float64, 3), vec)
	assert.Zero(t, inner.embeds)
	assert.Zero(t, vc.puts)
}

func TestCachedVectorizerForwardsFallbackSignal(t *testing.T) {
	remote := &scriptedVectorizer{id: "remote", dims: 2, vec: []float64{1, 0}}
	local := &scriptedVectorizer{id: "local", dims: 2, vec: []float64{0, 1}}
	hybrid := NewHybridVectorizer(remote, local, nil)

	v := NewCachedVectorizer(hybrid, newMapVectorCache(), nil)
	assert.False(t, v.FallbackUsed())

	plain := NewCachedVectorizer(local, newMapVectorCache(), nil)
	assert.False(t, plain.FallbackUsed())
}
