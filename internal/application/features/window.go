package features

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Window es un buffer FIFO de capacidad fija de vectores de features.
// Push descarta el más antiguo cuando está lleno.
type Window struct {
	capacity int
	width    int
	rows     [][]float64 // ring buffer
	head     int         // posición del más antiguo
	size     int
}

// NewWindow crea una ventana de capacity vectores de ancho width.
func NewWindow(capacity, width int) (*Window, error) {
	if capacity <= 0 || width <= 0 {
		return nil, fmt.Errorf("features.NewWindow: capacity=%d width=%d must be positive", capacity, width)
	}
	return &Window{
		capacity: capacity,
		width:    width,
		rows:     make([][]float64, capacity),
	}, nil
}

// Push agrega un vector. Vectores de ancho distinto son un error del llamador.
func (w *Window) Push(v []float64) error {
	if len(v) != w.width {
		return fmt.Errorf("features.Window.Push: vector width %d, want %d", len(v), w.width)
	}
	row := make([]float64, w.width)
	copy(row, v)

	if w.size < w.capacity {
		w.rows[(w.head+w.size)%w.capacity] = row
		w.size++
		return nil
	}
	w.rows[w.head] = row
	w.head = (w.head + 1) % w.capacity
	return nil
}

// Full devuelve true cuando la ventana alcanzó su capacidad.
func (w *Window) Full() bool { return w.size == w.capacity }

// Len devuelve el número de vectores almacenados.
func (w *Window) Len() int { return w.size }

// Capacity devuelve la capacidad configurada.
func (w *Window) Capacity() int { return w.capacity }

// Reset vacía la ventana al inicio de un episodio.
func (w *Window) Reset() {
	for i := range w.rows {
		w.rows[i] = nil
	}
	w.head, w.size = 0, 0
}

// Rows devuelve los vectores en orden del más antiguo al más nuevo.
func (w *Window) Rows() [][]float64 {
	out := make([][]float64, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.rows[(w.head+i)%w.capacity]
	}
	return out
}

// Flatten devuelve la ventana como una fila 1×(capacity·width), del más antiguo
// al más nuevo. Devuelve nil si la ventana está vacía.
func (w *Window) Flatten() *mat.Dense {
	if w.size == 0 {
		return nil
	}
	data := make([]float64, 0, w.capacity*w.width)
	for _, r := range w.Rows() {
		data = append(data, r...)
	}
	return mat.NewDense(1, len(data), data)
}
