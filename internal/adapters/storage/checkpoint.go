package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

// SaveCheckpoint guarda el checkpoint y sus tensores en una única transacción.
func (s *SQLiteStorage) SaveCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	if err := cp.Params.Validate(); err != nil {
		return fmt.Errorf("storage.SaveCheckpoint: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveCheckpoint: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, iteration, fitness, saved_at) VALUES (?, ?, ?, ?)`,
		cp.RunID, cp.Iteration, nullFloat(cp.Fitness), formatTime(cp.SavedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveCheckpoint: insert checkpoint: %w", err)
	}
	cpID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage.SaveCheckpoint: checkpoint id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO checkpoint_tensors (checkpoint_id, position, name, rows, cols, data)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveCheckpoint: prepare: %w", err)
	}
	defer stmt.Close()

	for i, t := range cp.Params {
		blob, err := t.Data.MarshalBinary()
		if err != nil {
			return fmt.Errorf("storage.SaveCheckpoint: encode %s: %w", t.Name, err)
		}
		shape := t.Shape()
		if _, err := stmt.ExecContext(ctx, cpID, i, t.Name, shape.Rows, shape.Cols, blob); err != nil {
			return fmt.Errorf("storage.SaveCheckpoint: insert tensor %s: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveCheckpoint: commit: %w", err)
	}
	return nil
}

// LoadLatestCheckpoint devuelve el checkpoint de mayor iteración del run.
// Con runID vacío usa el run más reciente que tenga checkpoints.
func (s *SQLiteStorage) LoadLatestCheckpoint(ctx context.Context, runID string) (domain.Checkpoint, error) {
	query := `
		SELECT c.id, c.run_id, c.iteration, c.fitness, c.saved_at
		FROM checkpoints c
		WHERE c.run_id = ?
		ORDER BY c.iteration DESC, c.id DESC
		LIMIT 1`
	args := []any{runID}
	if runID == "" {
		query = `
			SELECT c.id, c.run_id, c.iteration, c.fitness, c.saved_at
			FROM checkpoints c
			JOIN runs r ON r.id = c.run_id
			ORDER BY r.started_at DESC, c.iteration DESC, c.id DESC
			LIMIT 1`
		args = nil
	}

	var (
		cp      domain.Checkpoint
		cpID    int64
		fitness sql.NullFloat64
		savedAt string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&cpID, &cp.RunID, &cp.Iteration, &fitness, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Checkpoint{}, fmt.Errorf("storage.LoadLatestCheckpoint: run %q: %w", runID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("storage.LoadLatestCheckpoint: %w", err)
	}
	cp.Fitness = floatOrNaN(fitness)
	cp.SavedAt = parseTime(savedAt)

	params, err := s.loadTensors(ctx, cpID)
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("storage.LoadLatestCheckpoint: %w", err)
	}
	cp.Params = params
	return cp, nil
}

func (s *SQLiteStorage) loadTensors(ctx context.Context, cpID int64) (domain.ParameterVector, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, rows, cols, data
		FROM checkpoint_tensors
		WHERE checkpoint_id = ?
		ORDER BY position ASC`, cpID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tensors: %w", err)
	}
	defer rows.Close()

	var params domain.ParameterVector
	for rows.Next() {
		var (
			name string
			r, c int
			blob []byte
		)
		if err := rows.Scan(&name, &r, &c, &blob); err != nil {
			return nil, fmt.Errorf("scan tensor: %w", err)
		}
		var m mat.Dense
		if err := m.UnmarshalBinary(blob); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		if gr, gc := m.Dims(); gr != r || gc != c {
			return nil, fmt.Errorf("tensor %s: stored shape %dx%d, blob %dx%d", name, r, c, gr, gc)
		}
		params = append(params, domain.Tensor{Name: name, Data: &m})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("checkpoint %d has no tensors", cpID)
	}
	return params, nil
}
