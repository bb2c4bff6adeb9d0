package match

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeScore(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"in range", 0.72, 0.72},
		{"zero", 0, 0},
		{"one", 1, 1},
		{"overshoot from float error", 1.0000000002, 1},
		{"negative", -0.3, 0},
		{"nan", math.NaN(), 0},
		{"plus inf", math.Inf(1), 0},
		{"minus inf", math.Inf(-1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeScore(tt.in))
		})
	}
}

func TestNewSanitizes(t *testing.T) {
	m := New(uuid.New(), uuid.New(), math.NaN(), TypeObjectOnly, "", Provenance{Backend: "mock"})
	assert.Equal(t, 0.0, m.Score)
	assert.False(t, m.ComputedAt.IsZero())
}
