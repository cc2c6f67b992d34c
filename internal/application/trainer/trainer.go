package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/nestrader/internal/application/optimizer"
	"github.com/alejandrodnm/nestrader/internal/application/policy"
	"github.com/alejandrodnm/nestrader/internal/domain"
	"github.com/alejandrodnm/nestrader/internal/ports"
)

// Config es la configuración de una sesión de entrenamiento.
type Config struct {
	Architecture   policy.Architecture
	Optimizer      optimizer.Config // Shapes se rellena desde Architecture
	Iterations     int
	ReportInterval int

	Resume      bool
	ResumeRunID string // vacío = último run con checkpoints
}

// Result resume una sesión terminada.
type Result struct {
	RunID        string
	FinalFitness float64
	Params       domain.ParameterVector
	Stats        optimizer.Stats
}

// Trainer orquesta un entrenamiento: crea el run, construye el optimizador,
// persiste iteraciones y checkpoints y notifica el progreso.
// Implementa ports.TrainingObserver.
type Trainer struct {
	cfg       Config
	evaluator optimizer.BatchEvaluator
	storage   ports.TrainingStorage
	notifier  ports.ProgressNotifier

	runID       string
	offset      int // iteraciones heredadas del checkpoint al reanudar
	lastFitness float64
	savedAt     int // iteración del último checkpoint de este run, -1 si ninguno
}

// New valida la configuración. storage y notifier son obligatorios.
func New(cfg Config, evaluator optimizer.BatchEvaluator, storage ports.TrainingStorage, notifier ports.ProgressNotifier) (*Trainer, error) {
	if evaluator == nil || storage == nil || notifier == nil {
		return nil, fmt.Errorf("trainer.New: %w: evaluator, storage and notifier are required", domain.ErrConfiguration)
	}
	if err := cfg.Architecture.Validate(); err != nil {
		return nil, fmt.Errorf("trainer.New: %w", err)
	}
	if err := cfg.Optimizer.Validate(); err != nil {
		return nil, fmt.Errorf("trainer.New: %w", err)
	}
	if cfg.Iterations < 0 {
		return nil, fmt.Errorf("trainer.New: %w: iterations %d", domain.ErrConfiguration, cfg.Iterations)
	}
	cfg.Optimizer.Shapes = cfg.Architecture.Shapes()
	return &Trainer{
		cfg:         cfg,
		evaluator:   evaluator,
		storage:     storage,
		notifier:    notifier,
		lastFitness: math.NaN(),
		savedAt:     -1,
	}, nil
}

// RunID devuelve el ID del run en curso (vacío antes de Run).
func (t *Trainer) RunID() string {
	return t.runID
}

// Run ejecuta la sesión completa. Si el entrenamiento falla o se cancela, el run
// queda marcado FAILED con el último fitness reportado.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	initial, err := t.initialParameters(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("trainer.Run: %w", err)
	}

	opt, err := optimizer.New(initial, t.cfg.Optimizer, t.evaluator)
	if err != nil {
		return Result{}, fmt.Errorf("trainer.Run: %w", err)
	}
	opt.SetObserver(t)

	t.runID = uuid.New().String()
	run := domain.TrainingRun{
		ID:             t.runID,
		StartedAt:      time.Now().UTC(),
		Status:         domain.RunStatusRunning,
		Sigma:          t.cfg.Optimizer.Sigma,
		LearningRate:   t.cfg.Optimizer.LearningRate,
		PopulationSize: t.cfg.Optimizer.PopulationSize,
		Iterations:     t.offset + t.cfg.Iterations,
		TimeFrame:      t.cfg.Architecture.TimeFrame,
		StateSize:      t.cfg.Architecture.StateSize,
	}
	if err := t.storage.CreateRun(ctx, run); err != nil {
		return Result{}, fmt.Errorf("trainer.Run: %w", err)
	}
	slog.Info("run created", "run_id", t.runID, "resumed_from_iteration", t.offset)

	if err := opt.Train(ctx, t.cfg.Iterations, t.cfg.ReportInterval); err != nil {
		t.finish(ctx, domain.RunStatusFailed, t.lastFitness)
		return Result{RunID: t.runID, FinalFitness: t.lastFitness, Params: opt.Parameters(), Stats: opt.Stats()}, fmt.Errorf("trainer.Run: %w", err)
	}

	final, err := opt.EvaluateCurrent(ctx)
	if err != nil {
		t.finish(ctx, domain.RunStatusFailed, t.lastFitness)
		return Result{RunID: t.runID, FinalFitness: t.lastFitness, Params: opt.Parameters(), Stats: opt.Stats()}, fmt.Errorf("trainer.Run: final evaluation: %w", err)
	}

	params := opt.Parameters()
	// el último reporte ya guardó estos mismos parámetros
	if last := t.offset + t.cfg.Iterations; t.savedAt != last {
		if err := t.storage.SaveCheckpoint(ctx, domain.Checkpoint{
			RunID:     t.runID,
			Iteration: last,
			Fitness:   final,
			Params:    params,
			SavedAt:   time.Now().UTC(),
		}); err != nil {
			t.finish(ctx, domain.RunStatusFailed, final)
			return Result{RunID: t.runID, FinalFitness: final, Params: params, Stats: opt.Stats()}, fmt.Errorf("trainer.Run: final checkpoint: %w", err)
		}
	}
	t.finish(ctx, domain.RunStatusFinished, final)

	stats := opt.Stats()
	slog.Info("training finished",
		"run_id", t.runID,
		"final_fitness", final,
		"updates", stats.Updates,
		"skipped", stats.Skipped,
	)
	return Result{RunID: t.runID, FinalFitness: final, Params: params, Stats: stats}, nil
}

// OnIteration persiste y notifica las estadísticas de la iteración.
func (t *Trainer) OnIteration(ctx context.Context, stats domain.IterationStats) error {
	stats.Iteration += t.offset
	if err := t.storage.SaveIteration(ctx, t.runID, stats); err != nil {
		return err
	}
	return t.notifier.NotifyIteration(ctx, stats)
}

// OnReport notifica el fitness sin ruido y guarda un checkpoint.
func (t *Trainer) OnReport(ctx context.Context, report domain.ProgressReport) error {
	report.Iteration += t.offset
	t.lastFitness = report.Fitness
	if err := t.notifier.NotifyReport(ctx, report); err != nil {
		return err
	}
	if err := t.storage.SaveCheckpoint(ctx, domain.Checkpoint{
		RunID:     t.runID,
		Iteration: report.Iteration,
		Fitness:   report.Fitness,
		Params:    report.Params,
		SavedAt:   time.Now().UTC(),
	}); err != nil {
		return err
	}
	t.savedAt = report.Iteration
	return nil
}

// initialParameters carga el último checkpoint al reanudar, o inicializa
// los tensores con N(0,1) usando la semilla del optimizador.
func (t *Trainer) initialParameters(ctx context.Context) (domain.ParameterVector, error) {
	if t.cfg.Resume {
		cp, err := t.storage.LoadLatestCheckpoint(ctx, t.cfg.ResumeRunID)
		if err != nil {
			return nil, fmt.Errorf("resume: %w", err)
		}
		if err := cp.Params.MatchShapes(t.cfg.Optimizer.Shapes); err != nil {
			return nil, fmt.Errorf("resume from run %s: %w", cp.RunID, err)
		}
		t.offset = cp.Iteration
		t.lastFitness = cp.Fitness
		slog.Info("resuming from checkpoint", "run_id", cp.RunID, "iteration", cp.Iteration, "fitness", cp.Fitness)
		return cp.Params, nil
	}

	seed := t.cfg.Optimizer.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	// semilla distinta de la del ruido: inicialización y muestreo no se solapan
	rng := rand.New(rand.NewPCG(seed, seed+1))
	return policy.RandomParameters(t.cfg.Architecture, rng), nil
}

// finish marca el run con un contexto propio: debe quedar registrado aunque
// el entrenamiento se haya cancelado.
func (t *Trainer) finish(ctx context.Context, status domain.RunStatus, fitness float64) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := t.storage.FinishRun(fctx, t.runID, status, fitness); err != nil {
		slog.Error("failed to finish run", "run_id", t.runID, "status", status, "err", err)
	}
}
