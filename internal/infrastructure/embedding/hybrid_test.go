package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitaware/procurement-match-backend/internal/domain/errors"
)

type scriptedVectorizer struct {
	id     string
	dims   int
	vec    []float64
	err    error
	embeds int
}

func (s *scriptedVectorizer) ID() string      { return s.id }
func (s *scriptedVectorizer) Dimensions() int { return s.dims }

func (s *scriptedVectorizer) Embed(_ context.Context, _ string) ([]float64, error) {
	s.embeds++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *scriptedVectorizer) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		vec, err := s.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func TestHybridPrefersRemote(t *testing.T) {
	remote := &scriptedVectorizer{id: "remote", dims: 2, vec: []float64{1, 0}}
	local := &scriptedVectorizer{id: "local", dims: 2, vec: []float64{0, 1}}
	h := NewHybridVectorizer(remote, local, nil)

	vec, err := h.Embed(context.Background(), "texto")
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 0}, vec)
	assert.Zero(t, local.embeds)
	assert.False(t, h.FallbackUsed())
	assert.Equal(t, "hybrid:remote", h.ID())
}

func TestHybridFallbackIsSticky(t *testing.T) {
	remote := &scriptedVectorizer{
		id: "remote", dims: 2,
		err: errors.NewRemoteUnavailableError("backend down"),
	}
	local := &scriptedVectorizer{id: "local", dims: 3, vec: []float64{0, 1, 0}}
	h := NewHybridVectorizer(remote, local, nil)
	ctx := context.Background()

	vec, err := h.Embed(ctx, "primeiro")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, vec)
	assert.True(t, h.FallbackUsed())

	// The remote is not retried once degraded.
	remoteCalls := remote.embeds
	_, err = h.Embed(ctx, "segundo")
	require.NoError(t, err)
	assert.Equal(t, remoteCalls, remote.embeds)
	assert.Equal(t, 2, local.embeds)

	assert.Equal(t, 3, h.Dimensions())
}

func TestHybridBatchFallback(t *testing.T) {
	remote := &scriptedVectorizer{
		id: "remote", dims: 2,
		err: errors.NewRemoteUnavailableError("backend down"),
	}
	local := &scriptedVectorizer{id: "local", dims: 2, vec: []float64{0, 1}}
	h := NewHybridVectorizer(remote, local, nil)

	vectors, err := h.EmbedBatch(context.Background(), []string{"um", "dois"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.True(t, h.FallbackUsed())
}
