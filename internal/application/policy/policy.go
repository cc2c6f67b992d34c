package policy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/nestrader/internal/application/features"
	"github.com/alejandrodnm/nestrader/internal/domain"
)

// Policy traduce vectores de features en acciones.
//
// Estados: warm-up mientras la ventana no está llena (siempre NoOp) y activo
// a partir de ahí. La ventana no se vacía durante el episodio, así que el estado
// activo es absorbente hasta Reset.
type Policy struct {
	model     *Model
	window    *features.Window
	maxShares int
}

// New crea una política con ventana de capacidad arch.TimeFrame.
func New(model *Model) (*Policy, error) {
	w, err := features.NewWindow(model.arch.TimeFrame, model.arch.StateSize)
	if err != nil {
		return nil, fmt.Errorf("policy.New: %w", err)
	}
	return &Policy{model: model, window: w, maxShares: model.arch.MaxShares}, nil
}

// Active devuelve true si la ventana ya está llena.
func (p *Policy) Active() bool {
	return p.window.Full()
}

// Reset vuelve al estado warm-up para un episodio nuevo.
func (p *Policy) Reset() {
	p.window.Reset()
}

// Act agrega el vector a la ventana y decide la acción.
func (p *Policy) Act(feat []float64) (domain.Action, error) {
	if err := p.window.Push(feat); err != nil {
		return domain.NoOp, fmt.Errorf("policy.Act: %w", err)
	}
	if !p.window.Full() {
		return domain.NoOp, nil
	}

	decision, mag, err := p.model.Predict(p.window.Flatten())
	if err != nil {
		return domain.NoOp, fmt.Errorf("policy.Act: %w", err)
	}
	return domain.Action{
		Class:     domain.ActionClass(argMax(decision)),
		Magnitude: clampShares(mag, p.maxShares),
	}, nil
}

// argMax devuelve el índice del mayor valor ignorando NaN.
// Si todo es NaN devuelve 0 (hold).
func argMax(v []float64) int {
	best := -1
	for i, x := range v {
		if math.IsNaN(x) {
			continue
		}
		if best < 0 || x > v[best] {
			best = i
		}
	}
	if best < 0 {
		return int(domain.ActionHold)
	}
	return best
}

// clampShares trunca el escalar auxiliar a un entero en [0, limit].
func clampShares(v float64, limit int) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= float64(limit) {
		return limit
	}
	return int(v)
}
