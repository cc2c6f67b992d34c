package ports

import (
	"context"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

// TrainingStorage persiste entrenamientos, estadísticas por iteración y checkpoints.
type TrainingStorage interface {
	CreateRun(ctx context.Context, run domain.TrainingRun) error
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, finalFitness float64) error
	GetRun(ctx context.Context, runID string) (domain.TrainingRun, error)

	SaveIteration(ctx context.Context, runID string, stats domain.IterationStats) error
	GetIterations(ctx context.Context, runID string) ([]domain.IterationStats, error)

	// SaveCheckpoint guarda los tensores como lista ordenada.
	SaveCheckpoint(ctx context.Context, cp domain.Checkpoint) error
	// LoadLatestCheckpoint devuelve el checkpoint de mayor iteración del run.
	// Si runID está vacío usa el run más reciente con checkpoints.
	LoadLatestCheckpoint(ctx context.Context, runID string) (domain.Checkpoint, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
