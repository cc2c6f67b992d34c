package domain

// StepInfo contiene la contabilidad del entorno tras un paso.
type StepInfo struct {
	CurrentValue float64 // cash + shares × close; es el fitness al terminar el episodio
}

// StepResult es la respuesta de Environment.Step.
type StepResult struct {
	Observation Observation
	Reward      float64
	Done        bool
	Info        StepInfo
}

// FitnessResult es el fitness de un miembro de la población.
// Index es la posición del candidato en el batch, no el orden de llegada.
type FitnessResult struct {
	Index   int
	Fitness float64
}

// Trace es la traza diagnóstica de un episodio. No participa en el update.
type Trace struct {
	Closes  []float64
	Actions []Action
	Buys    []int // pasos con compra marcable (cash previo > open siguiente)
	Sells   []int // pasos con venta marcable (había acciones en cartera)
}

// EpisodeOutcome es el resultado de correr un episodio completo.
type EpisodeOutcome struct {
	Fitness float64
	Steps   int
	Trace   Trace
}
