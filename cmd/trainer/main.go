package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/nestrader/config"
	"github.com/alejandrodnm/nestrader/internal/adapters/notify"
	"github.com/alejandrodnm/nestrader/internal/adapters/simulator"
	"github.com/alejandrodnm/nestrader/internal/adapters/storage"
	"github.com/alejandrodnm/nestrader/internal/application/episode"
	"github.com/alejandrodnm/nestrader/internal/application/evaluator"
	"github.com/alejandrodnm/nestrader/internal/application/optimizer"
	"github.com/alejandrodnm/nestrader/internal/application/policy"
	"github.com/alejandrodnm/nestrader/internal/application/trainer"
	"github.com/alejandrodnm/nestrader/internal/domain"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	iterations := flag.Int("iterations", 0, "number of training iterations (overrides config)")
	verbose := flag.Bool("verbose", false, "set log level to debug and print every iteration")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	resume := flag.Bool("resume", false, "continue from the latest checkpoint")
	runID := flag.String("run", "", "run id for -resume / -evaluate (default: latest run)")
	evaluate := flag.Bool("evaluate", false, "replay the latest checkpoint once and print the episode")
	dryRun := flag.Bool("dry-run", false, "synthetic bars and in-memory storage")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *iterations > 0 {
		cfg.Training.Iterations = *iterations
	}
	if *dryRun {
		cfg.Data.Source = config.SourceSynthetic
		cfg.Storage.DSN = ":memory:"
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	slog.Info("nestrader starting",
		"config", *configPath,
		"source", cfg.Data.Source,
		"iterations", cfg.Training.Iterations,
		"population", cfg.Training.PopulationSize,
		"dry_run", *dryRun,
		"resume", *resume,
		"evaluate", *evaluate,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars, err := loadBars(ctx, cfg)
	if err != nil {
		slog.Error("failed to load bars", "err", err, "source", cfg.Data.Source)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	envs, err := simulator.NewFactory(simulator.Config{
		InitialCash: cfg.Simulator.InitialCash,
		FeeRate:     cfg.Simulator.FeeRate,
	}, bars)
	if err != nil {
		slog.Error("failed to build simulator", "err", err)
		os.Exit(1)
	}

	arch := policy.Architecture{
		StateSize: cfg.StateSize(),
		TimeFrame: cfg.Model.TimeFrame,
		Hidden:    cfg.Model.Hidden,
		MaxShares: cfg.Model.MaxShares,
	}
	runner, err := episode.NewRunner(episode.Config{Architecture: arch, MaxSteps: cfg.Training.MaxSteps}, envs)
	if err != nil {
		slog.Error("failed to build episode runner", "err", err)
		os.Exit(1)
	}

	notifier := notify.NewConsole(*verbose)

	if *evaluate {
		if err := runEvaluate(ctx, store, runner, notifier, *runID); err != nil {
			slog.Error("evaluation failed", "err", err)
			os.Exit(1)
		}
		return
	}

	pool := evaluator.NewPool(cfg.Training.Workers)
	defer pool.Close()

	eval, err := evaluator.New(pool, runner.Fitness())
	if err != nil {
		slog.Error("failed to build evaluator", "err", err)
		os.Exit(1)
	}

	t, err := trainer.New(trainer.Config{
		Architecture: arch,
		Optimizer: optimizer.Config{
			Sigma:          cfg.Training.Sigma,
			LearningRate:   cfg.Training.LearningRate,
			PopulationSize: cfg.Training.PopulationSize,
			Seed:           cfg.Training.Seed,
		},
		Iterations:     cfg.Training.Iterations,
		ReportInterval: cfg.Training.ReportInterval,
		Resume:         *resume,
		ResumeRunID:    *runID,
	}, eval, store, notifier)
	if err != nil {
		slog.Error("failed to build trainer", "err", err)
		os.Exit(1)
	}

	slog.Info("training",
		"bars", envs.Bars(),
		"workers", pool.Workers(),
		"parameters", arch.InputSize()*arch.Hidden+arch.Hidden*(domain.NumActionClasses+2),
	)

	res, trainErr := t.Run(ctx)
	printRunSummary(context.WithoutCancel(ctx), store, notifier, res.RunID)

	if trainErr != nil {
		if errors.Is(trainErr, context.Canceled) {
			slog.Warn("training interrupted", "run_id", res.RunID)
			os.Exit(130)
		}
		slog.Error("training failed", "err", trainErr, "run_id", res.RunID)
		os.Exit(1)
	}

	slog.Info("nestrader stopped cleanly", "run_id", res.RunID, "final_fitness", res.FinalFitness)
}

// printRunSummary imprime la tabla final leyendo el run persistido.
func printRunSummary(ctx context.Context, store *storage.SQLiteStorage, notifier *notify.Console, runID string) {
	if runID == "" {
		return
	}
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		slog.Warn("could not load run for summary", "err", err)
		return
	}
	its, err := store.GetIterations(ctx, runID)
	if err != nil {
		slog.Warn("could not load iterations for summary", "err", err)
	}
	notifier.PrintSummary(run, its)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
