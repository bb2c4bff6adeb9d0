package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
)

const defaultLocalDimensions = 512

// LocalVectorizer is a hashed term-frequency embedder. Each normalized token
// is hashed into one of Dimensions buckets and the count vector is
// L2-normalized. It needs no network, no model files, and is fully
// deterministic, which makes it the fallback behind the remote backend and
// the default for air-gapped deployments.
type LocalVectorizer struct {
	dimensions int
}

func NewLocalVectorizer(dimensions int) *LocalVectorizer {
	if dimensions <= 0 {
		dimensions = defaultLocalDimensions
	}
	return &LocalVectorizer{dimensions: dimensions}
}

func (v *LocalVectorizer) ID() string {
	return fmt.Sprintf("local-hash-v1/%d", v.dimensions)
}

func (v *LocalVectorizer) Dimensions() int {
	return v.dimensions
}

func (v *LocalVectorizer) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, v.dimensions)

	tokens := Tokens(text)
	if len(tokens) == 0 {
		return vec, nil
	}

	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%v.dimensions]++
	}

	var norm float64
	for _, f := range vec {
		norm += f * f
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}

	return vec, nil
}

func (v *LocalVectorizer) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
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
