package matching

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{
			name:     "identical unit vectors",
			a:        []float64{1, 0, 0},
			b:        []float64{1, 0, 0},
			expected: 1,
		},
		{
			name:     "orthogonal vectors",
			a:        []float64{1, 0},
			b:        []float64{0, 1},
			expected: 0,
		},
		{
			name:     "length mismatch scores zero",
			a:        []float64{1, 0},
			b:        []float64{1, 0, 0},
			expected: 0,
		},
		{
			name:     "zero vector scores zero",
			a:        []float64{0, 0},
			b:        []float64{1, 0},
			expected: 0,
		},
		{
			name:     "empty vectors score zero",
			a:        nil,
			b:        nil,
			expected: 0,
		},
		{
			name:     "opposite vectors clamp to zero",
			a:        []float64{1, 0},
			b:        []float64{-1, 0},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilarityAngle(t *testing.T) {
	// A unit vector at angle θ against [1,0] scores exactly cos θ.
	theta := 0.72
	a := []float64{1, 0}
	b := []float64{theta, math.Sqrt(1 - theta*theta)}

	assert.InDelta(t, theta, CosineSimilarity(a, b), 1e-9)
}

func TestEnhancedSimilarityNoLexicalOverlap(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0.5, math.Sqrt(0.75)}

	score, justification := EnhancedSimilarity(a, b, "alfa beta", "gama delta")

	assert.InDelta(t, 0.5, score, 1e-9)
	assert.Contains(t, justification, "similaridade cosseno: 0.500")
	assert.NotContains(t, justification, "bonus")
}

func TestEnhancedSimilarityWordBonusCapped(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0.5, math.Sqrt(0.75)}
	text := "um dois tres quatro cinco seis"

	// Six shared words would add 0.30 uncapped; the cap holds it at 0.20.
	score, justification := EnhancedSimilarity(a, b, text, text)

	assert.InDelta(t, 0.7, score, 1e-9)
	assert.Contains(t, justification, "palavras comuns")
}

func TestEnhancedSimilarityTechTermBonus(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0.5, math.Sqrt(0.75)}

	score, justification := EnhancedSimilarity(a, b, "manutencao cftv", "cameras cftv")

	// One shared word (cftv) plus one technical term: 0.5 + 0.05 + 0.03.
	assert.InDelta(t, 0.58, score, 1e-9)
	assert.Contains(t, justification, "termos tecnicos: cftv")
}

func TestEnhancedSimilarityClampsAtOne(t *testing.T) {
	a := []float64{1, 0}
	text := "servico manutencao predial eletrica hidraulica"

	score, _ := EnhancedSimilarity(a, a, text, text)

	assert.Equal(t, 1.0, score)
}

func TestClassifyInclusiveBoundary(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		threshold float64
		expected  bool
	}{
		{"exactly at threshold passes", 0.70, 0.70, true},
		{"above threshold passes", 0.71, 0.70, true},
		{"just below threshold fails", 0.6999, 0.70, false},
		{"zero threshold admits everything", 0, 0, true},
		{"NaN never passes", math.NaN(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.score, tt.threshold))
		})
	}
}
