package marketdata

import (
	"log/slog"
	"math"
	"sort"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

// Sanitize ordena las velas por tiempo y descarta las que tienen algún campo
// de mercado en cero, negativo o no finito. Las features dividen por el valor
// siguiente, así que un cero produciría NaN en todo el episodio.
// El slice de entrada no se modifica.
func Sanitize(bars []domain.Bar) []domain.Bar {
	out := make([]domain.Bar, 0, len(bars))
	dropped := 0
	for _, b := range bars {
		if !validBar(b) {
			dropped++
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if dropped > 0 {
		slog.Warn("dropped bars with zero or invalid market fields", "dropped", dropped, "kept", len(out))
	}
	return out
}

func validBar(b domain.Bar) bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
