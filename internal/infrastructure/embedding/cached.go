package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/licitaware/procurement-match-backend/internal/infrastructure/cache"
)

// CachedVectorizer wraps a backend with the embedding cache. Keys use the
// normalized text, so accent and casing variants of the same purchase object
// hit the same entry. Cache failures degrade to the backend, never the run.
type CachedVectorizer struct {
	inner  Vectorizer
	cache  cache.VectorCache
	logger *zap.Logger
}

func NewCachedVectorizer(inner Vectorizer, vc cache.VectorCache, logger *zap.Logger) *CachedVectorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedVectorizer{
		inner:  inner,
		cache:  vc,
		logger: logger,
	}
}

func (v *CachedVectorizer) ID() string {
	return v.inner.ID()
}

func (v *CachedVectorizer) Dimensions() int {
	return v.inner.Dimensions()
}

// FallbackUsed forwards the degradation signal of a wrapped hybrid backend.
func (v *CachedVectorizer) FallbackUsed() bool {
	if r, ok := v.inner.(interface{ FallbackUsed() bool }); ok {
		return r.FallbackUsed()
	}
	return false
}

func (v *CachedVectorizer) Embed(ctx context.Context, text string) ([]float64, error) {
	key := Normalize(text)
	if key == "" {
		return make([]float64, v.inner.Dimensions()), nil
	}

	// The backend ID is part of the key; a model change can never serve
	// vectors from the previous space.
	if vec, found, err := v.cache.Get(ctx, v.inner.ID(), key); err != nil {
		v.logger.Warn("embedding cache read failed", zap.Error(err))
	} else if found {
		return vec, nil
	}

	vec, err := v.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := v.cache.Put(ctx, v.inner.ID(), key, vec); err != nil {
		v.logger.Warn("embedding cache write failed", zap.Error(err))
	}

	return vec, nil
}

func (v *CachedVectorizer) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec, err := v.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
