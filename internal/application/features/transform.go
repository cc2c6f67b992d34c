package features

import (
	"github.com/alejandrodnm/nestrader/internal/domain"
)

// Width es el ancho del vector de features: open, high, low, close, volume.
const Width = len(domain.MarketFields)

// StripTimeField elimina el campo time de una observación cruda.
// Si la observación ya no lo tiene (ancho menor al crudo) se devuelve tal cual.
func StripTimeField(obs domain.Observation) domain.Observation {
	if len(obs) < domain.RawObservationWidth {
		return obs
	}
	out := make(domain.Observation, 0, len(obs)-1)
	out = append(out, obs[:domain.RawTimeIndex]...)
	return append(out, obs[domain.RawTimeIndex+1:]...)
}

// ChangeFeatures calcula el cambio relativo (next - prev) / next de cada campo
// de mercado entre dos observaciones consecutivas (sin campo time).
//
// Un campo next en cero produce NaN o ±Inf: no hay caso especial, el llamador
// debe filtrar datos de mercado en cero antes.
func ChangeFeatures(prev, next domain.Observation) []float64 {
	out := make([]float64, Width)
	for i, idx := range domain.MarketFields {
		out[i] = (next[idx] - prev[idx]) / next[idx]
	}
	return out
}
