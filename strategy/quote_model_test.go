package strategy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpreadFloorScenario(t *testing.T) {
	m := QuoteModel{Gamma: 0.5, PositionSize: 1, MinimumSpread: 0.01}
	raw := 0.5*0.01 + (2/0.5)*math.Log(1+0.5/1006)
	require.InDelta(t, 0.00699, raw, 1e-5)

	got, err := m.Compute(QuoteInputs{WeightedMid: 100.75, Sigma: 0.1, Kappa: 1006})
	require.NoError(t, err)
	assert.Equal(t, 0.01, got.Spread)
}

func TestSpreadFloorKeepsConfiguredPrecision(t *testing.T) {
	// 下限按配置值原样返回，不再四舍五入到 0.02
	m := QuoteModel{Gamma: 0.5, PositionSize: 1, MinimumSpread: 0.015}
	got, err := m.Compute(QuoteInputs{WeightedMid: 100.75, Sigma: 0.1, Kappa: 1006})
	require.NoError(t, err)
	assert.Equal(t, 0.015, got.Spread)
}

func TestReservationPrices(t *testing.T) {
	m := QuoteModel{Gamma: 0.1, PositionSize: 2, MinimumSpread: 0}
	got, err := m.Compute(QuoteInputs{
		WeightedMid:    3000,
		Distance:       0.5,
		Sigma:          2,
		Kappa:          50000,
		PriceAggressor: 10,
	})
	require.NoError(t, err)
	// r = 3000 - 0.5*0.1*4 = 2999.8; r_agg = 2999.8 - 0.05*10 = 2999.3
	assert.Equal(t, 2999.8, got.ReservationPrice)
	assert.Equal(t, 2999.3, got.AggressiveReservationPrice)
	// 0.1*4 + 20*ln(1+0.1/50000) ≈ 0.40004
	assert.Equal(t, 0.4, got.Spread)
}

func TestSpreadNeverBelowMinimum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		m := QuoteModel{
			Gamma:         0.001 + rng.Float64()*0.998,
			PositionSize:  0.01 + rng.Float64()*10,
			MinimumSpread: rng.Float64() * 5,
		}
		in := QuoteInputs{
			WeightedMid:    10 + rng.Float64()*5000,
			Distance:       rng.NormFloat64(),
			Sigma:          rng.Float64() * 3,
			Kappa:          1 + rng.Float64()*1e7,
			PriceAggressor: rng.Float64() * 20,
		}
		got, err := m.Compute(in)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Spread, m.MinimumSpread)

		again, err := m.Compute(in)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		m    QuoteModel
		in   QuoteInputs
	}{
		{"gamma zero", QuoteModel{Gamma: 0, PositionSize: 1}, QuoteInputs{Kappa: 1}},
		{"gamma one", QuoteModel{Gamma: 1, PositionSize: 1}, QuoteInputs{Kappa: 1}},
		{"kappa zero", QuoteModel{Gamma: 0.5, PositionSize: 1}, QuoteInputs{Kappa: 0}},
		{"position size zero", QuoteModel{Gamma: 0.5}, QuoteInputs{Kappa: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.m.Compute(tc.in)
			assert.ErrorIs(t, err, ErrInvalidModelInput)
		})
	}
}

func TestTradeSize(t *testing.T) {
	assert.Equal(t, 0.01, TradeSize(0.01, 1))
	assert.Equal(t, 0.0052, TradeSize(0.05, -0.0259))
	assert.Equal(t, 0.0, TradeSize(0.05, 0))
}
