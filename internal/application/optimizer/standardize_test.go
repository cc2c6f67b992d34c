package optimizer_test

import (
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/nestrader/internal/application/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardize_MeanZeroStdOne(t *testing.T) {
	cases := [][]float64{
		{1, 2},
		{10, 10, 10, 11},
		{-3.5, 0, 1e4, 7, 7, 2},
		{10000, 10012.5, 9987.25, 10001},
	}
	for _, rewards := range cases {
		z, _, _, ok := optimizer.Standardize(rewards)
		require.True(t, ok)
		mean, std := stat.PopMeanStdDev(z, nil)
		assert.InDelta(t, 0, mean, 1e-9)
		assert.InDelta(t, 1, std, 1e-9)
	}
}

func TestStandardize_UsesPopulationStdDev(t *testing.T) {
	z, mean, std, ok := optimizer.Standardize([]float64{1, 3})
	require.True(t, ok)
	assert.Equal(t, 2.0, mean)
	assert.Equal(t, 1.0, std, "np.std semantics: divide by N")
	assert.Equal(t, []float64{-1, 1}, z)
}

func TestStandardize_Degenerate(t *testing.T) {
	_, mean, std, ok := optimizer.Standardize([]float64{5, 5, 5, 5})
	assert.False(t, ok)
	assert.Equal(t, 5.0, mean)
	assert.Equal(t, 0.0, std)

	_, _, _, ok = optimizer.Standardize(nil)
	assert.False(t, ok)
}
