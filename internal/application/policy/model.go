package policy

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

// Nombres de los tensores, en el orden del ParameterVector.
const (
	TensorInput     = "w_in"
	TensorDecision  = "w_decision"
	TensorMagnitude = "w_magnitude"
	TensorBias      = "b_in"
)

// Architecture describe la topología fija de la función de scoring.
type Architecture struct {
	StateSize int // features por paso
	TimeFrame int // pasos en la ventana
	Hidden    int // neuronas de la capa oculta
	MaxShares int // tope de acciones por operación
}

// InputSize es el ancho de la ventana aplanada.
func (a Architecture) InputSize() int {
	return a.StateSize * a.TimeFrame
}

// Validate comprueba que todas las dimensiones sean positivas.
func (a Architecture) Validate() error {
	if a.StateSize <= 0 || a.TimeFrame <= 0 || a.Hidden <= 0 || a.MaxShares <= 0 {
		return fmt.Errorf("%w: architecture %+v needs positive state_size, time_frame, hidden and max_shares",
			domain.ErrConfiguration, a)
	}
	return nil
}

// Shapes devuelve las formas de los tensores en orden:
// w_in (I×H), w_decision (H×3), w_magnitude (H×1), b_in (1×H).
func (a Architecture) Shapes() []domain.Shape {
	return []domain.Shape{
		{Rows: a.InputSize(), Cols: a.Hidden},
		{Rows: a.Hidden, Cols: domain.NumActionClasses},
		{Rows: a.Hidden, Cols: 1},
		{Rows: 1, Cols: a.Hidden},
	}
}

var tensorNames = [...]string{TensorInput, TensorDecision, TensorMagnitude, TensorBias}

// RandomParameters inicializa todos los tensores con N(0,1).
func RandomParameters(a Architecture, rng *rand.Rand) domain.ParameterVector {
	shapes := a.Shapes()
	params := make(domain.ParameterVector, len(shapes))
	for i, s := range shapes {
		data := make([]float64, s.Size())
		for j := range data {
			data[j] = rng.NormFloat64()
		}
		params[i] = domain.Tensor{Name: tensorNames[i], Data: mat.NewDense(s.Rows, s.Cols, data)}
	}
	return params
}

// Model es la función de scoring feed-forward:
//
//	feed      = x·w_in + b_in
//	decision  = feed·w_decision   (1×3, argmax → clase)
//	magnitude = feed·w_magnitude  (1×1)
//
// Los pesos se leen, nunca se modifican.
type Model struct {
	arch      Architecture
	wIn       *mat.Dense
	wDecision *mat.Dense
	wMag      *mat.Dense
	bias      *mat.Dense
}

// NewModel envuelve un ParameterVector con las formas exactas de la arquitectura.
func NewModel(a Architecture, params domain.ParameterVector) (*Model, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("policy.NewModel: %w", err)
	}
	if err := params.MatchShapes(a.Shapes()); err != nil {
		return nil, fmt.Errorf("policy.NewModel: %w", err)
	}
	return &Model{
		arch:      a,
		wIn:       params[0].Data,
		wDecision: params[1].Data,
		wMag:      params[2].Data,
		bias:      params[3].Data,
	}, nil
}

// Predict evalúa el modelo sobre una fila 1×InputSize.
func (m *Model) Predict(x mat.Matrix) (decision []float64, magnitude float64, err error) {
	r, c := x.Dims()
	if r != 1 || c != m.arch.InputSize() {
		return nil, 0, fmt.Errorf("policy.Predict: input %dx%d, want 1x%d", r, c, m.arch.InputSize())
	}

	var feed mat.Dense
	feed.Mul(x, m.wIn)
	feed.Add(&feed, m.bias)

	var dec, mag mat.Dense
	dec.Mul(&feed, m.wDecision)
	mag.Mul(&feed, m.wMag)

	return mat.Row(nil, 0, &dec), mag.At(0, 0), nil
}
