package optimizer

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Standardize devuelve (r - media) / desvío usando el desvío poblacional (÷N).
// ok es false si el desvío es cero o no finito: el batch es degenerado y no
// aporta dirección de ascenso.
func Standardize(rewards []float64) (z []float64, mean, std float64, ok bool) {
	if len(rewards) == 0 {
		return nil, 0, 0, false
	}
	mean, std = stat.PopMeanStdDev(rewards, nil)
	if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		return nil, mean, std, false
	}
	z = make([]float64, len(rewards))
	for i, r := range rewards {
		z[i] = (r - mean) / std
	}
	return z, mean, std, true
}
