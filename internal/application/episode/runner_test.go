package episode_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/alejandrodnm/nestrader/internal/application/episode"
	"github.com/alejandrodnm/nestrader/internal/application/policy"
	"github.com/alejandrodnm/nestrader/internal/domain"
	"github.com/alejandrodnm/nestrader/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnv emite precios crecientes y termina tras steps pasos.
// El CurrentValue es cash + shares × close y las compras se ejecutan a close.
type fakeEnv struct {
	steps   int
	t       int
	cash    float64
	shares  float64
	stepErr error
	never   bool // nunca termina
	actions []domain.Action
}

func (e *fakeEnv) price() float64 { return 100 + float64(e.t) }

func (e *fakeEnv) obs() domain.Observation {
	p := e.price()
	return domain.Observation{e.shares, e.cash, float64(e.t), p, p + 1, p - 1, p, 1000 + float64(e.t)}
}

func (e *fakeEnv) Reset(context.Context) (domain.Observation, error) {
	e.t, e.cash, e.shares = 0, 1000, 0
	return e.obs(), nil
}

func (e *fakeEnv) Step(_ context.Context, a domain.Action) (domain.StepResult, error) {
	if e.stepErr != nil {
		return domain.StepResult{}, e.stepErr
	}
	e.actions = append(e.actions, a)
	e.t++
	if a.Class == domain.ActionBuy && float64(a.Magnitude)*e.price() <= e.cash {
		e.cash -= float64(a.Magnitude) * e.price()
		e.shares += float64(a.Magnitude)
	}
	value := e.cash + e.shares*e.price()
	return domain.StepResult{
		Observation: e.obs(),
		Done:        !e.never && e.t >= e.steps,
		Info:        domain.StepInfo{CurrentValue: value},
	}, nil
}

type factory struct {
	env *fakeEnv
	err error
}

func (f factory) NewEnvironment() (ports.Environment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.env, nil
}

func testArch() policy.Architecture {
	return policy.Architecture{StateSize: 5, TimeFrame: 3, Hidden: 4, MaxShares: 2}
}

// buyParams fuerza BUY de 2 acciones en cuanto la ventana está llena.
func buyParams(a policy.Architecture) domain.ParameterVector {
	s := a.Shapes()
	wDec := mat.NewDense(s[1].Rows, s[1].Cols, nil)
	wDec.Set(0, int(domain.ActionBuy), 1)
	wMag := mat.NewDense(s[2].Rows, s[2].Cols, nil)
	wMag.Set(0, 0, 2)
	bias := mat.NewDense(s[3].Rows, s[3].Cols, nil)
	bias.Set(0, 0, 1)
	return domain.ParameterVector{
		{Name: policy.TensorInput, Data: mat.NewDense(s[0].Rows, s[0].Cols, nil)},
		{Name: policy.TensorDecision, Data: wDec},
		{Name: policy.TensorMagnitude, Data: wMag},
		{Name: policy.TensorBias, Data: bias},
	}
}

func TestNewRunner_RejectsWrongStateSize(t *testing.T) {
	a := testArch()
	a.StateSize = 7
	_, err := episode.NewRunner(episode.Config{Architecture: a}, factory{env: &fakeEnv{}})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRunner_Run_WarmUpThenTrades(t *testing.T) {
	env := &fakeEnv{steps: 10}
	r, err := episode.NewRunner(episode.Config{Architecture: testArch()}, factory{env: env})
	require.NoError(t, err)

	out, err := r.Run(context.Background(), buyParams(testArch()))
	require.NoError(t, err)

	// 1 paso inicial + 9 pasos de la política
	assert.Equal(t, 9, out.Steps)
	require.Len(t, env.actions, 10)
	assert.Equal(t, domain.NoOp, env.actions[0], "initial step never trades")
	assert.Equal(t, domain.NoOp, env.actions[1])
	assert.Equal(t, domain.NoOp, env.actions[2])
	assert.Equal(t, domain.Action{Class: domain.ActionBuy, Magnitude: 2}, env.actions[3])

	assert.Equal(t, env.cash+env.shares*env.price(), out.Fitness)
	assert.Len(t, out.Trace.Closes, 9)
	assert.NotEmpty(t, out.Trace.Buys)
	assert.Empty(t, out.Trace.Sells)
}

func TestRunner_Fitness_ReturnsTerminalValue(t *testing.T) {
	env := &fakeEnv{steps: 2}
	r, err := episode.NewRunner(episode.Config{Architecture: testArch()}, factory{env: env})
	require.NoError(t, err)

	params := policy.RandomParameters(testArch(), rand.New(rand.NewPCG(3, 4)))
	fit, err := r.Fitness()(context.Background(), params)
	require.NoError(t, err)
	// Episodio más corto que la ventana: nunca opera
	assert.Equal(t, 1000.0, fit)
}

func TestRunner_Run_StepErrorPropagates(t *testing.T) {
	boom := errors.New("exchange offline")
	r, err := episode.NewRunner(episode.Config{Architecture: testArch()},
		factory{env: &fakeEnv{steps: 5, stepErr: boom}})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), buyParams(testArch()))
	assert.ErrorIs(t, err, boom)
}

func TestRunner_Run_FactoryError(t *testing.T) {
	r, err := episode.NewRunner(episode.Config{Architecture: testArch()},
		factory{err: errors.New("no data")})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), buyParams(testArch()))
	assert.Error(t, err)
}

func TestRunner_Run_StepBudget(t *testing.T) {
	r, err := episode.NewRunner(episode.Config{Architecture: testArch(), MaxSteps: 50},
		factory{env: &fakeEnv{never: true}})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), buyParams(testArch()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step budget")
}

func TestRunner_Run_RejectsWrongParams(t *testing.T) {
	r, err := episode.NewRunner(episode.Config{Architecture: testArch()}, factory{env: &fakeEnv{steps: 3}})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), domain.ParameterVector{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
