package domain

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Shape es la forma (filas × columnas) de un tensor de parámetros.
type Shape struct {
	Rows int
	Cols int
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Rows, s.Cols)
}

// Size devuelve el número de entradas del tensor.
func (s Shape) Size() int {
	return s.Rows * s.Cols
}

// Tensor es un tensor 2-D con nombre (matriz de pesos o vector de bias).
type Tensor struct {
	Name string
	Data *mat.Dense
}

// Shape devuelve la forma del tensor.
func (t Tensor) Shape() Shape {
	r, c := t.Data.Dims()
	return Shape{Rows: r, Cols: c}
}

// ParameterVector es la colección ordenada de tensores que el optimizador ajusta.
// El orden es parte del contrato: el tensor i de cualquier miembro de la población
// corresponde al tensor i del vector del optimizador.
type ParameterVector []Tensor

// PopulationMember es la muestra de ruido de un candidato en una iteración.
type PopulationMember struct {
	Index int
	Noise ParameterVector
}

// Shapes devuelve las formas de cada tensor, en orden.
func (p ParameterVector) Shapes() []Shape {
	shapes := make([]Shape, len(p))
	for i, t := range p {
		shapes[i] = t.Shape()
	}
	return shapes
}

// Size devuelve el total de entradas de todos los tensores.
func (p ParameterVector) Size() int {
	n := 0
	for _, t := range p {
		n += t.Shape().Size()
	}
	return n
}

// Clone devuelve una copia profunda: ningún *mat.Dense se comparte con el original.
func (p ParameterVector) Clone() ParameterVector {
	out := make(ParameterVector, len(p))
	for i, t := range p {
		out[i] = Tensor{Name: t.Name, Data: mat.DenseCopyOf(t.Data)}
	}
	return out
}

// Tensor busca un tensor por nombre.
func (p ParameterVector) Tensor(name string) (Tensor, bool) {
	for _, t := range p {
		if t.Name == name {
			return t, true
		}
	}
	return Tensor{}, false
}

// Validate comprueba que cada tensor exista y tenga dimensiones positivas.
func (p ParameterVector) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty parameter vector", ErrConfiguration)
	}
	for i, t := range p {
		if t.Data == nil || t.Data.IsEmpty() {
			return fmt.Errorf("%w: tensor %d (%q) is empty", ErrConfiguration, i, t.Name)
		}
	}
	return nil
}

// MatchShapes devuelve error si el vector no tiene exactamente las formas dadas.
func (p ParameterVector) MatchShapes(shapes []Shape) error {
	if len(p) != len(shapes) {
		return fmt.Errorf("%w: %d tensors, want %d", ErrConfiguration, len(p), len(shapes))
	}
	for i, t := range p {
		if got := t.Shape(); got != shapes[i] {
			return fmt.Errorf("%w: tensor %d (%q) has shape %s, want %s",
				ErrConfiguration, i, t.Name, got, shapes[i])
		}
	}
	return nil
}

// Perturb devuelve p + sigma·noise, tensor a tensor. p no se modifica.
func (p ParameterVector) Perturb(noise ParameterVector, sigma float64) (ParameterVector, error) {
	if err := noise.MatchShapes(p.Shapes()); err != nil {
		return nil, fmt.Errorf("domain.Perturb: %w", err)
	}
	out := make(ParameterVector, len(p))
	for i, t := range p {
		r, c := t.Data.Dims()
		d := mat.NewDense(r, c, nil)
		d.Scale(sigma, noise[i].Data)
		d.Add(d, t.Data)
		out[i] = Tensor{Name: t.Name, Data: d}
	}
	return out, nil
}

// Equal compara valores exactos de todos los tensores.
func (p ParameterVector) Equal(q ParameterVector) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i].Name != q[i].Name || !mat.Equal(p[i].Data, q[i].Data) {
			return false
		}
	}
	return true
}
