package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

type nopEvaluator struct{}

func (nopEvaluator) Evaluate(_ context.Context, _ []domain.ParameterVector) ([]domain.FitnessResult, error) {
	return nil, nil
}

func (nopEvaluator) EvaluateOne(_ context.Context, _ domain.ParameterVector) (float64, error) {
	return 0, nil
}

func noiseMember(k int, w, b []float64) domain.PopulationMember {
	return domain.PopulationMember{Index: k, Noise: domain.ParameterVector{
		{Name: "w", Data: mat.NewDense(1, 2, w)},
		{Name: "b", Data: mat.NewDense(1, 1, b)},
	}}
}

func TestApplyUpdate_WeightedNoiseSum(t *testing.T) {
	initial := domain.ParameterVector{
		{Name: "w", Data: mat.NewDense(1, 2, []float64{1, 2})},
		{Name: "b", Data: mat.NewDense(1, 1, []float64{-1})},
	}
	o, err := New(initial, Config{Sigma: 0.5, LearningRate: 0.1, PopulationSize: 2, Seed: 1}, nopEvaluator{})
	require.NoError(t, err)

	population := []domain.PopulationMember{
		noiseMember(0, []float64{1, 0}, []float64{3}),
		noiseMember(1, []float64{0, 2}, []float64{1}),
	}
	// α/(N·σ) = 0.1
	o.applyUpdate(population, []float64{1, -1})

	params := o.Parameters()
	assert.InDeltaSlice(t, []float64{1.1, 1.8}, params[0].Data.RawMatrix().Data, 1e-12)
	assert.InDeltaSlice(t, []float64{-0.8}, params[1].Data.RawMatrix().Data, 1e-12)

	// el ruido de la población no se toca
	assert.Equal(t, []float64{1, 0}, population[0].Noise[0].Data.RawMatrix().Data)
	assert.Equal(t, []float64{0, 2}, population[1].Noise[0].Data.RawMatrix().Data)
}

func TestApplyUpdate_ZeroRewardsKeepParameters(t *testing.T) {
	initial := domain.ParameterVector{
		{Name: "w", Data: mat.NewDense(1, 2, []float64{1, 2})},
		{Name: "b", Data: mat.NewDense(1, 1, []float64{-1})},
	}
	o, err := New(initial, Config{Sigma: 0.1, LearningRate: 0.5, PopulationSize: 2, Seed: 1}, nopEvaluator{})
	require.NoError(t, err)

	o.applyUpdate([]domain.PopulationMember{
		noiseMember(0, []float64{4, 5}, []float64{6}),
		noiseMember(1, []float64{7, 8}, []float64{9}),
	}, []float64{0, 0})

	assert.True(t, o.Parameters().Equal(initial))
}
