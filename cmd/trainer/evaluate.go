package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/nestrader/internal/adapters/notify"
	"github.com/alejandrodnm/nestrader/internal/adapters/storage"
	"github.com/alejandrodnm/nestrader/internal/application/episode"
)

// runEvaluate corre un episodio con los parámetros del último checkpoint
// e imprime la traza de operaciones.
func runEvaluate(ctx context.Context, store *storage.SQLiteStorage, runner *episode.Runner, notifier *notify.Console, runID string) error {
	cp, err := store.LoadLatestCheckpoint(ctx, runID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	slog.Info("=== EVALUATE: replaying checkpoint ===",
		"run_id", cp.RunID,
		"iteration", cp.Iteration,
		"checkpoint_fitness", cp.Fitness,
	)

	outcome, err := runner.Run(ctx, cp.Params)
	if err != nil {
		return fmt.Errorf("run episode: %w", err)
	}

	notifier.PrintEpisode(outcome)
	slog.Info("evaluation complete", "fitness", outcome.Fitness, "steps", outcome.Steps)
	return nil
}
