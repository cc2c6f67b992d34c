package ports

import (
	"context"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

// ProgressNotifier presenta el progreso del entrenamiento al usuario.
type ProgressNotifier interface {
	NotifyIteration(ctx context.Context, stats domain.IterationStats) error
	NotifyReport(ctx context.Context, report domain.ProgressReport) error
}

// TrainingObserver recibe los eventos del optimizador.
// OnIteration se llama en cada iteración, incluidas las saltadas por batch degenerado.
// OnReport se llama cada report_interval iteraciones con la evaluación sin ruido.
// Un error devuelto aborta el entrenamiento.
type TrainingObserver interface {
	OnIteration(ctx context.Context, stats domain.IterationStats) error
	OnReport(ctx context.Context, report domain.ProgressReport) error
}
