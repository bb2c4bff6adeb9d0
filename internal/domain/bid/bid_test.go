package bid

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	b := New("00038000000100-1-000001/2025", "00038000000100", 2025, 1, "Aquisição de equipamentos de informática")

	require.NotEqual(t, "", b.ID.String())
	assert.Equal(t, StatusCollected, b.Status)
	assert.Equal(t, "coletada", b.Status.String())
	assert.False(t, b.EstimatedValue.Valid)
	assert.Equal(t, 2025, b.PurchaseYear)
}

func TestSetEstimatedValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"normal value", "150000.50", "150000.5"},
		{"negative floors to zero", "-10.00", "0"},
		{"above ceiling is capped", "1500000000000.00", "999999999999.99"},
		{"exactly at ceiling", "999999999999.99", "999999999999.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("x", "y", 2025, 1, "obj")
			b.SetEstimatedValue(decimal.RequireFromString(tt.value))
			require.True(t, b.EstimatedValue.Valid)
			assert.Equal(t, tt.want, b.EstimatedValue.Decimal.String())
		})
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusCollected, StatusProcessed, StatusClosed, StatusCancelled} {
		assert.Equal(t, s, ParseStatus(s.String()))
	}
	assert.Equal(t, StatusCollected, ParseStatus("whatever"))
}

func TestMarkProcessed(t *testing.T) {
	b := New("x", "y", 2025, 1, "obj")
	before := b.UpdatedAt
	b.MarkProcessed()
	assert.Equal(t, StatusProcessed, b.Status)
	assert.False(t, b.UpdatedAt.Before(before))
}
