package domain

import "time"

// IterationStats resume una iteración del optimizador.
type IterationStats struct {
	Iteration  int
	MeanReward float64
	StdReward  float64
	MinReward  float64
	MaxReward  float64
	Skipped    bool // batch degenerado: varianza cero, sin update
	Duration   time.Duration
}

// ProgressReport es la evaluación sin ruido de los parámetros actuales.
type ProgressReport struct {
	Iteration int
	Fitness   float64
	Params    ParameterVector // copia; el observador puede retenerla
}

// RunStatus es el estado de un entrenamiento persistido.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusFailed   RunStatus = "FAILED"
)

// TrainingRun es un entrenamiento persistido.
type TrainingRun struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         RunStatus
	Sigma          float64
	LearningRate   float64
	PopulationSize int
	Iterations     int
	TimeFrame      int
	StateSize      int
	FinalFitness   float64
}

// Checkpoint es un snapshot de parámetros en una iteración.
type Checkpoint struct {
	RunID     string
	Iteration int
	Fitness   float64
	Params    ParameterVector
	SavedAt   time.Time
}
