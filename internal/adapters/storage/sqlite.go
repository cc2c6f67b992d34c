package storage

// sqlite.go — persistencia de entrenamientos.
//
// Tablas:
//   - `runs`: una fila por entrenamiento con sus hiperparámetros y estado.
//   - `iterations`: estadísticas de rewards por iteración. Una fila ligera.
//   - `checkpoints` + `checkpoint_tensors`: snapshot de parámetros en cada
//     reporte. Un tensor por fila, en el orden del vector de parámetros.
//   - Prune al arrancar: runs terminados hace más de 90 días.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/nestrader/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    started_at      TEXT    NOT NULL,
    finished_at     TEXT,
    status          TEXT    NOT NULL,
    sigma           REAL    NOT NULL,
    learning_rate   REAL    NOT NULL,
    population_size INTEGER NOT NULL,
    iterations      INTEGER NOT NULL,
    time_frame      INTEGER NOT NULL,
    state_size      INTEGER NOT NULL,
    final_fitness   REAL
);

CREATE TABLE IF NOT EXISTS iterations (
    run_id      TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    iteration   INTEGER NOT NULL,
    mean_reward REAL,
    std_reward  REAL,
    min_reward  REAL,
    max_reward  REAL,
    skipped     INTEGER NOT NULL DEFAULT 0,
    duration_ns INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, iteration)
);

CREATE TABLE IF NOT EXISTS checkpoints (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id    TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    iteration INTEGER NOT NULL,
    fitness   REAL,
    saved_at  TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoint_tensors (
    checkpoint_id INTEGER NOT NULL REFERENCES checkpoints(id) ON DELETE CASCADE,
    position      INTEGER NOT NULL,
    name          TEXT    NOT NULL,
    rows          INTEGER NOT NULL,
    cols          INTEGER NOT NULL,
    data          BLOB    NOT NULL,
    PRIMARY KEY (checkpoint_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_cp_run_iter  ON checkpoints(run_id, iteration DESC);
`

const (
	retentionRuns = 90 * 24 * time.Hour
	timeLayout    = "2006-01-02T15:04:05.000000000Z07:00" // ancho fijo: ordena como texto
)

// SQLiteStorage implementa ports.TrainingStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia runs antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// CreateRun inserta un run nuevo.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run domain.TrainingRun) error {
	if run.ID == "" {
		return fmt.Errorf("storage.CreateRun: empty run id")
	}
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
			(id, started_at, status, sigma, learning_rate, population_size,
			 iterations, time_frame, state_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), string(run.Status), run.Sigma, run.LearningRate,
		run.PopulationSize, run.Iterations, run.TimeFrame, run.StateSize,
	); err != nil {
		return fmt.Errorf("storage.CreateRun: insert %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun marca el run como terminado (o fallido) con su fitness final.
func (s *SQLiteStorage) FinishRun(ctx context.Context, runID string, status domain.RunStatus, finalFitness float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, final_fitness = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), nullFloat(finalFitness), runID,
	)
	if err != nil {
		return fmt.Errorf("storage.FinishRun: update %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.FinishRun: run %s: %w", runID, domain.ErrNotFound)
	}
	return nil
}

// GetRun devuelve un run por ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (domain.TrainingRun, error) {
	var (
		run          domain.TrainingRun
		startedAt    string
		finishedAt   sql.NullString
		status       string
		finalFitness sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, sigma, learning_rate,
		       population_size, iterations, time_frame, state_size, final_fitness
		FROM runs WHERE id = ?`, runID,
	).Scan(
		&run.ID, &startedAt, &finishedAt, &status, &run.Sigma, &run.LearningRate,
		&run.PopulationSize, &run.Iterations, &run.TimeFrame, &run.StateSize, &finalFitness,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TrainingRun{}, fmt.Errorf("storage.GetRun: run %s: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.TrainingRun{}, fmt.Errorf("storage.GetRun: %w", err)
	}

	run.Status = domain.RunStatus(status)
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	run.FinalFitness = floatOrNaN(finalFitness)
	return run, nil
}

// SaveIteration persiste las estadísticas de una iteración. Es idempotente por
// (run_id, iteration): guardar otra vez la misma iteración reescribe la fila.
// Un run reanudado tiene su propio run_id, así que nunca pisa al original.
func (s *SQLiteStorage) SaveIteration(ctx context.Context, runID string, st domain.IterationStats) error {
	skipped := 0
	if st.Skipped {
		skipped = 1
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO iterations
			(run_id, iteration, mean_reward, std_reward, min_reward, max_reward, skipped, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, iteration) DO UPDATE SET
			mean_reward = excluded.mean_reward,
			std_reward  = excluded.std_reward,
			min_reward  = excluded.min_reward,
			max_reward  = excluded.max_reward,
			skipped     = excluded.skipped,
			duration_ns = excluded.duration_ns`,
		runID, st.Iteration,
		nullFloat(st.MeanReward), nullFloat(st.StdReward), nullFloat(st.MinReward), nullFloat(st.MaxReward),
		skipped, st.Duration.Nanoseconds(),
	); err != nil {
		return fmt.Errorf("storage.SaveIteration: %s #%d: %w", runID, st.Iteration, err)
	}
	return nil
}

// GetIterations devuelve las iteraciones del run en orden ascendente.
func (s *SQLiteStorage) GetIterations(ctx context.Context, runID string) ([]domain.IterationStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, mean_reward, std_reward, min_reward, max_reward, skipped, duration_ns
		FROM iterations
		WHERE run_id = ?
		ORDER BY iteration ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.GetIterations: query: %w", err)
	}
	defer rows.Close()

	var out []domain.IterationStats
	for rows.Next() {
		var (
			st                    domain.IterationStats
			mean, std, minR, maxR sql.NullFloat64
			skipped               int
			durationNs            int64
		)
		if err := rows.Scan(&st.Iteration, &mean, &std, &minR, &maxR, &skipped, &durationNs); err != nil {
			return nil, fmt.Errorf("storage.GetIterations: scan row: %w", err)
		}
		st.MeanReward = floatOrNaN(mean)
		st.StdReward = floatOrNaN(std)
		st.MinReward = floatOrNaN(minR)
		st.MaxReward = floatOrNaN(maxR)
		st.Skipped = skipped == 1
		st.Duration = time.Duration(durationNs)
		out = append(out, st)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina runs terminados hace tiempo; las tablas hijas caen en cascada.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := formatTime(time.Now().Add(-retentionRuns))
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE finished_at IS NOT NULL AND finished_at < ?`, cutoff)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// SQLite no tiene NaN: se guarda como NULL y se lee de vuelta como NaN.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
