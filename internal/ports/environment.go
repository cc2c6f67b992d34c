package ports

import (
	"context"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

// Environment es el entorno de trading simulado que consume el runner de episodios.
// Cada episodio usa una instancia propia: las implementaciones no necesitan ser
// seguras para uso concurrente.
type Environment interface {
	// Reset inicia un episodio nuevo y devuelve la observación cruda inicial.
	Reset(ctx context.Context) (domain.Observation, error)

	// Step aplica la acción y avanza un paso. Done indica fin del episodio.
	Step(ctx context.Context, action domain.Action) (domain.StepResult, error)
}

// EnvironmentFactory crea un entorno fresco por evaluación.
type EnvironmentFactory interface {
	NewEnvironment() (Environment, error)
}

// FitnessFunc puntúa un vector de parámetros corriendo un episodio completo.
// Debe ser segura para llamadas concurrentes con vectores distintos.
type FitnessFunc func(ctx context.Context, params domain.ParameterVector) (float64, error)
