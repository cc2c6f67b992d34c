package simulator

// trading.go — entorno de trading que reproduce una serie de velas.
//
// Modelo de ejecución:
//   - La acción del paso t se ejecuta al open de la vela t+1.
//   - BUY compra hasta Magnitude acciones, limitado por el cash disponible.
//   - SELL vende hasta Magnitude acciones, limitado por la cartera.
//   - CurrentValue = cash + shares × close de la vela actual.
//   - El episodio termina al llegar a la última vela.

import (
	"context"
	"fmt"
	"math"

	"github.com/alejandrodnm/nestrader/internal/domain"
	"github.com/alejandrodnm/nestrader/internal/ports"
)

const defaultInitialCash = 10000

// Config contiene la configuración inmutable del simulador.
type Config struct {
	InitialCash float64
	FeeRate     float64 // comisión proporcional por operación (0.001 = 0.1%)
}

// TradingEnv implementa ports.Environment sobre una serie de velas.
// No es seguro para uso concurrente: cada episodio usa su propia instancia.
type TradingEnv struct {
	cfg    Config
	bars   []domain.Bar // compartido, solo lectura
	t      int
	cash   float64
	shares float64
	value  float64
}

// NewTradingEnv crea un entorno; se necesitan al menos dos velas.
func NewTradingEnv(cfg Config, bars []domain.Bar) (*TradingEnv, error) {
	if len(bars) < 2 {
		return nil, fmt.Errorf("simulator.NewTradingEnv: %w: need at least 2 bars, got %d",
			domain.ErrConfiguration, len(bars))
	}
	if cfg.InitialCash <= 0 {
		cfg.InitialCash = defaultInitialCash
	}
	if cfg.FeeRate < 0 {
		return nil, fmt.Errorf("simulator.NewTradingEnv: %w: negative fee rate", domain.ErrConfiguration)
	}
	return &TradingEnv{cfg: cfg, bars: bars}, nil
}

// Reset vuelve al inicio de la serie con el cash inicial.
func (e *TradingEnv) Reset(_ context.Context) (domain.Observation, error) {
	e.t = 0
	e.cash = e.cfg.InitialCash
	e.shares = 0
	e.value = e.cash
	return e.observation(), nil
}

// Step ejecuta la acción al open de la siguiente vela y avanza.
func (e *TradingEnv) Step(_ context.Context, action domain.Action) (domain.StepResult, error) {
	if e.t >= len(e.bars)-1 {
		return domain.StepResult{}, fmt.Errorf("simulator.Step: episode already finished at bar %d", e.t)
	}
	if action.Magnitude < 0 {
		return domain.StepResult{}, fmt.Errorf("simulator.Step: negative magnitude %d", action.Magnitude)
	}

	e.t++
	bar := e.bars[e.t]
	e.execute(action, bar.Open)

	prev := e.value
	e.value = e.cash + e.shares*bar.Close

	return domain.StepResult{
		Observation: e.observation(),
		Reward:      e.value - prev,
		Done:        e.t == len(e.bars)-1,
		Info:        domain.StepInfo{CurrentValue: e.value},
	}, nil
}

func (e *TradingEnv) execute(action domain.Action, price float64) {
	if action.Magnitude == 0 || !(price > 0) {
		return
	}
	qty := float64(action.Magnitude)
	unit := price * (1 + e.cfg.FeeRate)

	switch action.Class {
	case domain.ActionBuy:
		qty = math.Min(qty, math.Floor(e.cash/unit))
		if qty <= 0 {
			return
		}
		e.cash -= qty * unit
		e.shares += qty
	case domain.ActionSell:
		qty = math.Min(qty, e.shares)
		if qty <= 0 {
			return
		}
		e.cash += qty * price * (1 - e.cfg.FeeRate)
		e.shares -= qty
	}
}

// observation devuelve [shares, cash, t, open, high, low, close, volume].
func (e *TradingEnv) observation() domain.Observation {
	b := e.bars[e.t]
	return domain.Observation{e.shares, e.cash, float64(e.t), b.Open, b.High, b.Low, b.Close, b.Volume}
}

// Factory crea un TradingEnv fresco por episodio sobre las mismas velas.
type Factory struct {
	cfg  Config
	bars []domain.Bar
}

// NewFactory valida la serie una vez.
func NewFactory(cfg Config, bars []domain.Bar) (*Factory, error) {
	if _, err := NewTradingEnv(cfg, bars); err != nil {
		return nil, fmt.Errorf("simulator.NewFactory: %w", err)
	}
	return &Factory{cfg: cfg, bars: bars}, nil
}

// NewEnvironment implementa ports.EnvironmentFactory.
func (f *Factory) NewEnvironment() (ports.Environment, error) {
	return NewTradingEnv(f.cfg, f.bars)
}

// Bars devuelve el número de velas de la serie.
func (f *Factory) Bars() int {
	return len(f.bars)
}
