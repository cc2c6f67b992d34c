package marketdata

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

// SyntheticConfig parametriza un paseo browniano geométrico diario.
type SyntheticConfig struct {
	Bars       int
	StartPrice float64
	Drift      float64  // por barra
	Volatility *float64 // por barra; nil usa 0.02, cero da una serie sin ruido
	Seed       uint64
	Start      time.Time
}

// Synthetic genera velas deterministas a partir de una semilla.
// Sirve para entrenar sin red ni ficheros. Implementa ports.BarProvider.
type Synthetic struct {
	cfg SyntheticConfig
}

// NewSynthetic aplica defaults y valida la configuración.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.StartPrice == 0 {
		cfg.StartPrice = 100
	}
	if cfg.Volatility == nil {
		vol := 0.02
		cfg.Volatility = &vol
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if cfg.Bars < 2 {
		return nil, fmt.Errorf("marketdata.NewSynthetic: %w: need at least 2 bars, got %d", domain.ErrConfiguration, cfg.Bars)
	}
	if !(cfg.StartPrice > 0) {
		return nil, fmt.Errorf("marketdata.NewSynthetic: %w: start price must be positive", domain.ErrConfiguration)
	}
	if *cfg.Volatility < 0 {
		return nil, fmt.Errorf("marketdata.NewSynthetic: %w: volatility cannot be negative", domain.ErrConfiguration)
	}
	return &Synthetic{cfg: cfg}, nil
}

// FetchBars genera la serie. Misma semilla, misma serie.
func (s *Synthetic) FetchBars(ctx context.Context) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(s.cfg.Seed, s.cfg.Seed^0x9e3779b97f4a7c15))

	bars := make([]domain.Bar, s.cfg.Bars)
	prev := s.cfg.StartPrice
	vol := *s.cfg.Volatility
	for i := range bars {
		open := prev
		ret := s.cfg.Drift - 0.5*vol*vol + vol*rng.NormFloat64()
		closePx := open * math.Exp(ret)
		spread := math.Abs(rng.NormFloat64()) * vol * open / 2
		bars[i] = domain.Bar{
			Time:   s.cfg.Start.AddDate(0, 0, i),
			Open:   open,
			High:   math.Max(open, closePx) + spread,
			Low:    math.Max(math.Min(open, closePx)-spread, math.SmallestNonzeroFloat64),
			Close:  closePx,
			Volume: 1000 + 9000*rng.Float64(),
		}
		prev = closePx
	}
	return bars, nil
}
