package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/alejandrodnm/nestrader/internal/domain"
	"github.com/alejandrodnm/nestrader/internal/ports"
)

// Evaluator reparte candidatos en el pool y devuelve un fitness por candidato,
// preservando la correspondencia índice → resultado.
type Evaluator struct {
	pool    *Pool
	fitness ports.FitnessFunc
}

// New crea un Evaluator sobre un pool ya arrancado.
func New(pool *Pool, fitness ports.FitnessFunc) (*Evaluator, error) {
	if pool == nil || fitness == nil {
		return nil, fmt.Errorf("evaluator.New: %w: pool and fitness function are required", domain.ErrConfiguration)
	}
	return &Evaluator{pool: pool, fitness: fitness}, nil
}

type outcome struct {
	idx     int
	fitness float64
	err     error
}

// Evaluate corre un episodio por candidato y bloquea hasta que terminen todos.
// result[k] proviene de candidates[k] sin importar el orden de finalización.
// Si cualquier episodio falla se devuelve error y ningún resultado.
func (e *Evaluator) Evaluate(ctx context.Context, candidates []domain.ParameterVector) ([]domain.FitnessResult, error) {
	start := time.Now()
	n := len(candidates)
	resultCh := make(chan outcome, n)

	submitted := 0
	var submitErr error
	for k, c := range candidates {
		params := c.Clone() // copia por valor: los workers no comparten tensores
		if err := e.pool.Submit(func() { resultCh <- e.run(ctx, k, params) }); err != nil {
			submitErr = err
			break
		}
		submitted++
	}

	// Join: siempre esperamos todo lo enviado, sin consumo parcial.
	results := make([]domain.FitnessResult, n)
	var failed *outcome
	for i := 0; i < submitted; i++ {
		out := <-resultCh
		if out.err != nil {
			if failed == nil || out.idx < failed.idx {
				o := out
				failed = &o
			}
			continue
		}
		results[out.idx] = domain.FitnessResult{Index: out.idx, Fitness: out.fitness}
	}

	if submitErr != nil {
		return nil, fmt.Errorf("evaluator.Evaluate: %w: submit member %d: %w", domain.ErrEvaluation, submitted, submitErr)
	}
	if failed != nil {
		return nil, fmt.Errorf("evaluator.Evaluate: %w: member %d: %w", domain.ErrEvaluation, failed.idx, failed.err)
	}

	slog.Debug("population evaluated",
		"members", n,
		"workers", e.pool.Workers(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return results, nil
}

// EvaluateOne evalúa un único vector fuera del batch (parámetros sin ruido).
func (e *Evaluator) EvaluateOne(ctx context.Context, params domain.ParameterVector) (float64, error) {
	resultCh := make(chan outcome, 1)
	p := params.Clone()
	if err := e.pool.Submit(func() { resultCh <- e.run(ctx, 0, p) }); err != nil {
		return 0, fmt.Errorf("evaluator.EvaluateOne: %w: %w", domain.ErrEvaluation, err)
	}
	out := <-resultCh
	if out.err != nil {
		return 0, fmt.Errorf("evaluator.EvaluateOne: %w: %w", domain.ErrEvaluation, out.err)
	}
	return out.fitness, nil
}

// run ejecuta la función de fitness convirtiendo pánicos en errores.
func (e *Evaluator) run(ctx context.Context, idx int, params domain.ParameterVector) outcome {
	var (
		pc      panics.Catcher
		fitness float64
		err     error
	)
	pc.Try(func() {
		fitness, err = e.fitness(ctx, params)
	})
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}
	return outcome{idx: idx, fitness: fitness, err: err}
}
