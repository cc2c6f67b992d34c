package marketdata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/nestrader/internal/adapters/marketdata"
	"github.com/alejandrodnm/nestrader/internal/domain"
)

func TestSynthetic_Deterministic(t *testing.T) {
	cfg := marketdata.SyntheticConfig{Bars: 50, Seed: 7}
	a, err := marketdata.NewSynthetic(cfg)
	require.NoError(t, err)
	b, err := marketdata.NewSynthetic(cfg)
	require.NoError(t, err)

	barsA, err := a.FetchBars(context.Background())
	require.NoError(t, err)
	barsB, err := b.FetchBars(context.Background())
	require.NoError(t, err)

	assert.Equal(t, barsA, barsB)
	require.Len(t, barsA, 50)
	for i, bar := range barsA {
		assert.Greater(t, bar.Open, 0.0)
		assert.Greater(t, bar.Low, 0.0)
		assert.GreaterOrEqual(t, bar.High, bar.Close)
		assert.LessOrEqual(t, bar.Low, bar.Open)
		if i > 0 {
			assert.InDelta(t, barsA[i-1].Close, bar.Open, 1e-12)
		}
	}
	assert.Len(t, marketdata.Sanitize(barsA), 50)
}

func TestSynthetic_DifferentSeeds(t *testing.T) {
	a, _ := marketdata.NewSynthetic(marketdata.SyntheticConfig{Bars: 10, Seed: 1})
	b, _ := marketdata.NewSynthetic(marketdata.SyntheticConfig{Bars: 10, Seed: 2})
	barsA, _ := a.FetchBars(context.Background())
	barsB, _ := b.FetchBars(context.Background())
	assert.NotEqual(t, barsA[5].Close, barsB[5].Close)
}

func TestNewSynthetic_Invalid(t *testing.T) {
	_, err := marketdata.NewSynthetic(marketdata.SyntheticConfig{Bars: 1})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	neg := -0.01
	_, err = marketdata.NewSynthetic(marketdata.SyntheticConfig{Bars: 10, Volatility: &neg})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = marketdata.NewSynthetic(marketdata.SyntheticConfig{Bars: 10, StartPrice: -5})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSynthetic_ZeroVolatilityIsFlat(t *testing.T) {
	zero := 0.0
	s, err := marketdata.NewSynthetic(marketdata.SyntheticConfig{Bars: 20, StartPrice: 50, Volatility: &zero, Seed: 4})
	require.NoError(t, err)

	bars, err := s.FetchBars(context.Background())
	require.NoError(t, err)
	require.Len(t, bars, 20)
	for _, b := range bars {
		assert.InDelta(t, 50.0, b.Close, 1e-9)
		assert.InDelta(t, 50.0, b.Open, 1e-9)
	}
}
