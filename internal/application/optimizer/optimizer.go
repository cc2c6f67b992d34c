package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/alejandrodnm/nestrader/internal/domain"
	"github.com/alejandrodnm/nestrader/internal/ports"
)

// BatchEvaluator es lo que el optimizador necesita del evaluador paralelo.
type BatchEvaluator interface {
	// Evaluate devuelve un resultado por candidato, con Index en [0, len(candidates)).
	Evaluate(ctx context.Context, candidates []domain.ParameterVector) ([]domain.FitnessResult, error)
	// EvaluateOne evalúa un vector fuera del batch.
	EvaluateOne(ctx context.Context, params domain.ParameterVector) (float64, error)
}

// Config es la configuración inmutable del optimizador.
type Config struct {
	Sigma          float64 // escala del ruido
	LearningRate   float64
	PopulationSize int
	Seed           uint64         // 0 = semilla por tiempo
	Shapes         []domain.Shape // si no es nil, los parámetros iniciales deben coincidir
}

// Validate rechaza configuraciones que hacen imposible el update.
func (c Config) Validate() error {
	if c.PopulationSize < 2 {
		return fmt.Errorf("%w: population_size %d, need at least 2", domain.ErrConfiguration, c.PopulationSize)
	}
	if !(c.Sigma > 0) {
		return fmt.Errorf("%w: sigma %v must be positive", domain.ErrConfiguration, c.Sigma)
	}
	if !(c.LearningRate > 0) {
		return fmt.Errorf("%w: learning_rate %v must be positive", domain.ErrConfiguration, c.LearningRate)
	}
	return nil
}

// Stats cuenta lo que hizo el optimizador desde su construcción.
type Stats struct {
	Iterations int // intentos de estandarización
	Updates    int // updates aplicados
	Skipped    int // batches degenerados
}

// Optimizer es una estrategia evolutiva natural con ruido gaussiano.
// Es dueño exclusivo del ParameterVector; los workers solo ven copias.
type Optimizer struct {
	cfg       Config
	params    domain.ParameterVector
	shapes    []domain.Shape
	evaluator BatchEvaluator
	observer  ports.TrainingObserver
	rng       *rand.Rand
	stats     Stats
}

// New valida la configuración y las formas de los tensores. Las formas quedan
// fijas: todo miembro de la población tendrá exactamente las mismas.
func New(initial domain.ParameterVector, cfg Config, evaluator BatchEvaluator) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("optimizer.New: %w", err)
	}
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("optimizer.New: %w", err)
	}
	if cfg.Shapes != nil {
		if err := initial.MatchShapes(cfg.Shapes); err != nil {
			return nil, fmt.Errorf("optimizer.New: %w", err)
		}
	}
	if evaluator == nil {
		return nil, fmt.Errorf("optimizer.New: %w: evaluator is required", domain.ErrConfiguration)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Optimizer{
		cfg:       cfg,
		params:    initial.Clone(),
		shapes:    initial.Shapes(),
		evaluator: evaluator,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// SetObserver registra quien recibe los eventos de iteración y reporte.
func (o *Optimizer) SetObserver(obs ports.TrainingObserver) {
	o.observer = obs
}

// Parameters devuelve una copia de los parámetros actuales.
func (o *Optimizer) Parameters() domain.ParameterVector {
	return o.params.Clone()
}

// Stats devuelve los contadores acumulados.
func (o *Optimizer) Stats() Stats {
	return o.stats
}

// Train ejecuta iterations pasos de NES. Cada reportInterval iteraciones evalúa
// los parámetros sin ruido (reportInterval <= 0 desactiva el reporte).
//
// El contexto solo se consulta entre iteraciones: un batch enviado siempre
// corre hasta completarse.
func (o *Optimizer) Train(ctx context.Context, iterations, reportInterval int) error {
	if iterations < 0 {
		return fmt.Errorf("optimizer.Train: %w: iterations %d", domain.ErrConfiguration, iterations)
	}

	slog.Info("training started",
		"iterations", iterations,
		"population", o.cfg.PopulationSize,
		"sigma", o.cfg.Sigma,
		"learning_rate", o.cfg.LearningRate,
		"parameters", o.params.Size(),
	)

	for it := 1; it <= iterations; it++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("optimizer.Train: stopped before iteration %d: %w", it, err)
		}

		stats, err := o.Step(ctx)
		if err != nil {
			return fmt.Errorf("optimizer.Train: iteration %d: %w", it, err)
		}
		stats.Iteration = it

		if o.observer != nil {
			if err := o.observer.OnIteration(ctx, stats); err != nil {
				return fmt.Errorf("optimizer.Train: iteration %d: observer: %w", it, err)
			}
		}

		if reportInterval > 0 && it%reportInterval == 0 {
			if err := o.report(ctx, it); err != nil {
				return fmt.Errorf("optimizer.Train: iteration %d: %w", it, err)
			}
		}
	}
	return nil
}

// Step ejecuta una iteración: población → evaluación → estandarización → update.
// Un batch degenerado no es error: se devuelve Skipped=true y los parámetros no cambian.
func (o *Optimizer) Step(ctx context.Context) (domain.IterationStats, error) {
	start := time.Now()
	n := o.cfg.PopulationSize

	population := o.samplePopulation()
	candidates := make([]domain.ParameterVector, n)
	for k, member := range population {
		c, err := o.params.Perturb(member.Noise, o.cfg.Sigma)
		if err != nil {
			return domain.IterationStats{}, err
		}
		candidates[k] = c
	}

	results, err := o.evaluator.Evaluate(ctx, candidates)
	if err != nil {
		return domain.IterationStats{}, err
	}
	rewards, err := alignRewards(results, n)
	if err != nil {
		return domain.IterationStats{}, err
	}

	o.stats.Iterations++
	z, mean, std, ok := Standardize(rewards)
	stats := domain.IterationStats{
		MeanReward: mean,
		StdReward:  std,
		MinReward:  floats.Min(rewards),
		MaxReward:  floats.Max(rewards),
	}

	if !ok {
		o.stats.Skipped++
		stats.Skipped = true
		slog.Warn("degenerate batch, update skipped",
			"iteration", o.stats.Iterations,
			"mean_reward", mean,
			"std_reward", std,
		)
	} else {
		o.applyUpdate(population, z)
		o.stats.Updates++
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// EvaluateCurrent evalúa los parámetros actuales sin ruido, fuera del batch.
func (o *Optimizer) EvaluateCurrent(ctx context.Context) (float64, error) {
	f, err := o.evaluator.EvaluateOne(ctx, o.params)
	if err != nil {
		return 0, fmt.Errorf("optimizer.EvaluateCurrent: %w", err)
	}
	return f, nil
}

func (o *Optimizer) report(ctx context.Context, iteration int) error {
	fitness, err := o.EvaluateCurrent(ctx)
	if err != nil {
		return err
	}
	slog.Info("training progress", "iteration", iteration, "reward", fitness)

	if o.observer == nil {
		return nil
	}
	report := domain.ProgressReport{Iteration: iteration, Fitness: fitness, Params: o.params.Clone()}
	if err := o.observer.OnReport(ctx, report); err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	return nil
}

// samplePopulation sortea N muestras de ruido N(0,1) con las formas fijadas.
func (o *Optimizer) samplePopulation() []domain.PopulationMember {
	population := make([]domain.PopulationMember, o.cfg.PopulationSize)
	for k := range population {
		noise := make(domain.ParameterVector, len(o.shapes))
		for i, s := range o.shapes {
			data := make([]float64, s.Size())
			for j := range data {
				data[j] = o.rng.NormFloat64()
			}
			noise[i] = domain.Tensor{Name: o.params[i].Name, Data: mat.NewDense(s.Rows, s.Cols, data)}
		}
		population[k] = domain.PopulationMember{Index: k, Noise: noise}
	}
	return population
}

// applyUpdate: θ_i ← θ_i + α/(N·σ) · Σ_k noise[k]_i · z[k].
func (o *Optimizer) applyUpdate(population []domain.PopulationMember, z []float64) {
	scale := o.cfg.LearningRate / (float64(o.cfg.PopulationSize) * o.cfg.Sigma)
	for i, s := range o.shapes {
		grad := mat.NewDense(s.Rows, s.Cols, nil)
		var tmp mat.Dense
		for k, member := range population {
			tmp.Scale(z[k], member.Noise[i].Data)
			grad.Add(grad, &tmp)
		}
		grad.Scale(scale, grad)
		o.params[i].Data.Add(o.params[i].Data, grad)
	}
}

// alignRewards reordena los resultados por índice y exige exactamente un
// resultado por miembro en [0, n).
func alignRewards(results []domain.FitnessResult, n int) ([]float64, error) {
	if len(results) != n {
		return nil, fmt.Errorf("%w: got %d results for population of %d", domain.ErrProtocol, len(results), n)
	}
	rewards := make([]float64, n)
	seen := make([]bool, n)
	for _, r := range results {
		if r.Index < 0 || r.Index >= n {
			return nil, fmt.Errorf("%w: result index %d outside [0, %d)", domain.ErrProtocol, r.Index, n)
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("%w: duplicate result for member %d", domain.ErrProtocol, r.Index)
		}
		seen[r.Index] = true
		rewards[r.Index] = r.Fitness
	}
	return rewards, nil
}
