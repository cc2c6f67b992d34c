package storage_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/alejandrodnm/nestrader/internal/adapters/storage"
	"github.com/alejandrodnm/nestrader/internal/domain"
)

func newStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeRun(id string, started time.Time) domain.TrainingRun {
	return domain.TrainingRun{
		ID:             id,
		StartedAt:      started,
		Status:         domain.RunStatusRunning,
		Sigma:          0.1,
		LearningRate:   0.03,
		PopulationSize: 15,
		Iterations:     500,
		TimeFrame:      30,
		StateSize:      5,
	}
}

func makeParams(offset float64) domain.ParameterVector {
	return domain.ParameterVector{
		{Name: "w_in", Data: mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6 + offset})},
		{Name: "b_in", Data: mat.NewDense(1, 3, []float64{0.1, 0.2, 0.3})},
	}
}

func TestSQLiteStorage_RunLifecycle(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	require.NoError(t, db.CreateRun(ctx, makeRun("run-1", time.Now())))

	run, err := db.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)
	assert.Equal(t, 15, run.PopulationSize)
	assert.InDelta(t, 0.03, run.LearningRate, 1e-12)
	assert.True(t, math.IsNaN(run.FinalFitness))

	require.NoError(t, db.FinishRun(ctx, "run-1", domain.RunStatusFinished, 12345.5))

	run, err = db.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFinished, run.Status)
	require.NotNil(t, run.FinishedAt)
	assert.InDelta(t, 12345.5, run.FinalFitness, 1e-9)
}

func TestSQLiteStorage_GetRun_NotFound(t *testing.T) {
	db := newStorage(t)
	_, err := db.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = db.FinishRun(context.Background(), "missing", domain.RunStatusFailed, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStorage_Iterations(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()
	require.NoError(t, db.CreateRun(ctx, makeRun("run-1", time.Now())))

	require.NoError(t, db.SaveIteration(ctx, "run-1", domain.IterationStats{
		Iteration: 2, MeanReward: 10, StdReward: 1, MinReward: 8, MaxReward: 12, Duration: time.Second,
	}))
	require.NoError(t, db.SaveIteration(ctx, "run-1", domain.IterationStats{
		Iteration: 1, MeanReward: 5, StdReward: 0, MinReward: 5, MaxReward: 5, Skipped: true,
	}))
	// guardar de nuevo la misma iteración reescribe la fila
	require.NoError(t, db.SaveIteration(ctx, "run-1", domain.IterationStats{
		Iteration: 2, MeanReward: 11, StdReward: math.NaN(), MinReward: 8, MaxReward: 12,
	}))

	its, err := db.GetIterations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, its, 2)

	assert.Equal(t, 1, its[0].Iteration)
	assert.True(t, its[0].Skipped)
	assert.Equal(t, 2, its[1].Iteration)
	assert.InDelta(t, 11.0, its[1].MeanReward, 1e-12)
	assert.True(t, math.IsNaN(its[1].StdReward))

	// la misma iteración bajo otro run_id no colisiona
	require.NoError(t, db.CreateRun(ctx, makeRun("run-2", time.Now())))
	require.NoError(t, db.SaveIteration(ctx, "run-2", domain.IterationStats{
		Iteration: 2, MeanReward: 99, StdReward: 1, MinReward: 98, MaxReward: 100,
	}))
	its, err = db.GetIterations(ctx, "run-1")
	require.NoError(t, err)
	assert.InDelta(t, 11.0, its[1].MeanReward, 1e-12)
}

func TestSQLiteStorage_CheckpointRoundTrip(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()
	require.NoError(t, db.CreateRun(ctx, makeRun("run-1", time.Now())))

	require.NoError(t, db.SaveCheckpoint(ctx, domain.Checkpoint{
		RunID: "run-1", Iteration: 10, Fitness: 100, Params: makeParams(0), SavedAt: time.Now(),
	}))
	require.NoError(t, db.SaveCheckpoint(ctx, domain.Checkpoint{
		RunID: "run-1", Iteration: 20, Fitness: 110, Params: makeParams(1), SavedAt: time.Now(),
	}))

	cp, err := db.LoadLatestCheckpoint(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", cp.RunID)
	assert.Equal(t, 20, cp.Iteration)
	assert.InDelta(t, 110.0, cp.Fitness, 1e-12)
	require.Len(t, cp.Params, 2)
	assert.Equal(t, "w_in", cp.Params[0].Name)
	assert.Equal(t, "b_in", cp.Params[1].Name)
	assert.True(t, cp.Params.Equal(makeParams(1)))
}

func TestSQLiteStorage_LatestCheckpointAcrossRuns(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, db.CreateRun(ctx, makeRun("old", now.Add(-time.Hour))))
	require.NoError(t, db.CreateRun(ctx, makeRun("new", now)))

	require.NoError(t, db.SaveCheckpoint(ctx, domain.Checkpoint{RunID: "old", Iteration: 50, Params: makeParams(0)}))
	require.NoError(t, db.SaveCheckpoint(ctx, domain.Checkpoint{RunID: "new", Iteration: 10, Params: makeParams(2)}))

	cp, err := db.LoadLatestCheckpoint(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "new", cp.RunID)
	assert.True(t, cp.Params.Equal(makeParams(2)))
}

func TestSQLiteStorage_LoadCheckpoint_Empty(t *testing.T) {
	db := newStorage(t)
	_, err := db.LoadLatestCheckpoint(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStorage_SaveCheckpoint_InvalidParams(t *testing.T) {
	db := newStorage(t)
	err := db.SaveCheckpoint(context.Background(), domain.Checkpoint{RunID: "run-1"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
