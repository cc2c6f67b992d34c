package episode

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/nestrader/internal/application/features"
	"github.com/alejandrodnm/nestrader/internal/application/policy"
	"github.com/alejandrodnm/nestrader/internal/domain"
	"github.com/alejandrodnm/nestrader/internal/ports"
)

// Config contiene la configuración inmutable del runner.
type Config struct {
	Architecture policy.Architecture
	MaxSteps     int // 0 = sin límite; un episodio que no termina bloquea la iteración
}

// Runner corre episodios completos: es la función de fitness del optimizador.
type Runner struct {
	cfg  Config
	envs ports.EnvironmentFactory
}

// NewRunner valida la arquitectura y crea el runner.
func NewRunner(cfg Config, envs ports.EnvironmentFactory) (*Runner, error) {
	if err := cfg.Architecture.Validate(); err != nil {
		return nil, fmt.Errorf("episode.NewRunner: %w", err)
	}
	if cfg.Architecture.StateSize != features.Width {
		return nil, fmt.Errorf("episode.NewRunner: %w: state_size %d, features produce %d",
			domain.ErrConfiguration, cfg.Architecture.StateSize, features.Width)
	}
	if cfg.MaxSteps < 0 {
		return nil, fmt.Errorf("episode.NewRunner: %w: max_steps %d", domain.ErrConfiguration, cfg.MaxSteps)
	}
	return &Runner{cfg: cfg, envs: envs}, nil
}

// Fitness adapta Run a ports.FitnessFunc. Cada llamada usa un entorno, modelo y
// política propios, así que es segura para llamadas concurrentes.
func (r *Runner) Fitness() ports.FitnessFunc {
	return func(ctx context.Context, params domain.ParameterVector) (float64, error) {
		out, err := r.Run(ctx, params)
		if err != nil {
			return 0, err
		}
		return out.Fitness, nil
	}
}

// Run ejecuta un episodio: reset, paso inicial sin operar para tener la primera
// feature, y luego act → step hasta que el entorno indique fin.
// El fitness es el CurrentValue del último paso.
func (r *Runner) Run(ctx context.Context, params domain.ParameterVector) (domain.EpisodeOutcome, error) {
	model, err := policy.NewModel(r.cfg.Architecture, params)
	if err != nil {
		return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: %w", err)
	}
	pol, err := policy.New(model)
	if err != nil {
		return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: %w", err)
	}
	env, err := r.envs.NewEnvironment()
	if err != nil {
		return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: new environment: %w", err)
	}

	raw, err := env.Reset(ctx)
	if err != nil {
		return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: reset: %w", err)
	}
	state, err := marketState(raw)
	if err != nil {
		return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: reset: %w", err)
	}

	res, err := env.Step(ctx, domain.NoOp)
	if err != nil {
		return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: initial step: %w", err)
	}
	next, err := marketState(res.Observation)
	if err != nil {
		return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: initial step: %w", err)
	}
	feat := features.ChangeFeatures(state, next)
	state = next

	var trace domain.Trace
	info := res.Info
	done := res.Done
	step := 0

	for !done {
		if r.cfg.MaxSteps > 0 && step >= r.cfg.MaxSteps {
			return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: step budget of %d exhausted", r.cfg.MaxSteps)
		}

		trace.Closes = append(trace.Closes, state.Close())
		action, err := pol.Act(feat)
		if err != nil {
			return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: step %d: %w", step, err)
		}
		trace.Actions = append(trace.Actions, action)

		res, err := env.Step(ctx, action)
		if err != nil {
			return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: step %d: %w", step, err)
		}
		next, err := marketState(res.Observation)
		if err != nil {
			return domain.EpisodeOutcome{}, fmt.Errorf("episode.Run: step %d: %w", step, err)
		}

		markTrade(&trace, step, action, state, next)

		feat = features.ChangeFeatures(state, next)
		state = next
		info = res.Info
		done = res.Done
		step++
	}

	return domain.EpisodeOutcome{Fitness: info.CurrentValue, Steps: step, Trace: trace}, nil
}

// marketState quita el campo time y comprueba que estén todos los campos de mercado.
func marketState(raw domain.Observation) (domain.Observation, error) {
	obs := features.StripTimeField(raw)
	if len(obs) <= domain.IdxVolume {
		return nil, fmt.Errorf("observation has %d fields, want at least %d", len(obs), domain.IdxVolume+1)
	}
	return obs, nil
}

// markTrade registra marcadores diagnósticos: compra cuando el cash previo cubre
// el open siguiente, venta cuando había acciones en cartera.
func markTrade(trace *domain.Trace, step int, action domain.Action, prev, next domain.Observation) {
	switch action.Class {
	case domain.ActionBuy:
		if prev.Cash() > next.Open() {
			trace.Buys = append(trace.Buys, step)
		}
	case domain.ActionSell:
		if prev.Shares() > 0 {
			trace.Sells = append(trace.Sells, step)
		}
	}
}
