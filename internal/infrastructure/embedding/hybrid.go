package embedding

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Vectorizer is the embedding boundary this package implements. It mirrors
// the matching service's dependency so backends satisfy both.
type Vectorizer interface {
	ID() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// HybridVectorizer prefers the remote backend and degrades to the local one
// on the first remote failure. The switch is sticky for the lifetime of the
// instance: vectors from different backends never match each other, so once
// degraded, staying degraded keeps the run's scores internally consistent.
type HybridVectorizer struct {
	remote   Vectorizer
	local    Vectorizer
	degraded atomic.Bool
	logger   *zap.Logger
}

func NewHybridVectorizer(remote, local Vectorizer, logger *zap.Logger) *HybridVectorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridVectorizer{
		remote: remote,
		local:  local,
		logger: logger,
	}
}

func (v *HybridVectorizer) ID() string {
	return "hybrid:" + v.remote.ID()
}

func (v *HybridVectorizer) Dimensions() int {
	if v.degraded.Load() {
		return v.local.Dimensions()
	}
	return v.remote.Dimensions()
}

// FallbackUsed reports whether any embedding came from the local backend.
// Matches produced afterwards carry a mixed provenance flag.
func (v *HybridVectorizer) FallbackUsed() bool {
	return v.degraded.Load()
}

func (v *HybridVectorizer) Embed(ctx context.Context, text string) ([]float64, error) {
	if v.degraded.Load() {
		return v.local.Embed(ctx, text)
	}

	vec, err := v.remote.Embed(ctx, text)
	if err != nil {
		v.fallBack(err)
		return v.local.Embed(ctx, text)
	}
	return vec, nil
}

func (v *HybridVectorizer) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if v.degraded.Load() {
		return v.local.EmbedBatch(ctx, texts)
	}

	vectors, err := v.remote.EmbedBatch(ctx, texts)
	if err != nil {
		v.fallBack(err)
		return v.local.EmbedBatch(ctx, texts)
	}
	return vectors, nil
}

func (v *HybridVectorizer) fallBack(err error) {
	if v.degraded.CompareAndSwap(false, true) {
		v.logger.Warn("remote embedding backend failed, degrading to local vectorizer",
			zap.String("remote", v.remote.ID()),
			zap.String("local", v.local.ID()),
			zap.Error(err))
	}
}
