package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

func TestComputePricing(t *testing.T) {
	tests := []struct {
		name         string
		actual       float64
		selling      float64
		wantDiscount float64
		wantFinal    float64
	}{
		{"twenty percent off", 100, 80, 20, 64},
		{"no discount when equal", 50, 50, 0, 50},
		{"no discount when selling above actual", 40, 55.5, 0, 55.5},
		{"rounds discount half up", 3, 2, 33.33, 1.33},
		{"zero prices", 0, 0, 0, 0},
		{"free item", 10, 0, 100, 0},
		{"cents", 19.99, 14.99, 25.01, 11.24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ComputePricing(tt.actual, tt.selling)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDiscount, p.DiscountPercent)
			assert.Equal(t, tt.wantFinal, p.FinalPrice)
		})
	}
}

func TestComputePricing_InvalidInput(t *testing.T) {
	for _, in := range [][2]float64{
		{-1, 10},
		{10, -0.01},
		{math.NaN(), 1},
		{1, math.Inf(1)},
		{math.Inf(-1), 1},
	} {
		_, err := ComputePricing(in[0], in[1])
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPrice))
		assert.Equal(t, 400, apperrors.HTTPStatus(err))
	}
}

func TestComputePricing_Bounds(t *testing.T) {
	for actual := 0.0; actual <= 200; actual += 7.25 {
		for selling := 0.0; selling <= actual; selling += 3.5 {
			p, err := ComputePricing(actual, selling)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, p.DiscountPercent, 0.0)
			assert.LessOrEqual(t, p.DiscountPercent, 100.0)
			assert.LessOrEqual(t, p.FinalPrice, selling)
		}
		p, err := ComputePricing(actual, actual+1)
		require.NoError(t, err)
		assert.Zero(t, p.DiscountPercent)
		assert.Equal(t, actual+1, p.FinalPrice)
	}
}
