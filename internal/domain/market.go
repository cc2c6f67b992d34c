package domain

import "time"

// Bar es una vela OHLCV.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Observation es la observación cruda del entorno. Las posiciones son fijas:
//
//	raw:      [shares, cash, time, open, high, low, close, volume]
//	sin time: [shares, cash, open, high, low, close, volume]
//
// Las constantes Idx* se refieren al layout sin el campo time.
type Observation []float64

const (
	IdxShares = 0
	IdxCash   = 1
	IdxOpen   = 2
	IdxHigh   = 3
	IdxLow    = 4
	IdxClose  = 5
	IdxVolume = 6

	// RawTimeIndex es la posición del campo time en la observación cruda.
	RawTimeIndex = 2
	// RawObservationWidth es el ancho de la observación cruda.
	RawObservationWidth = 8
	// NonMarketFields son los campos que no entran en el vector de features
	// (time, shares, cash).
	NonMarketFields = 3
)

// MarketFields son los campos que alimentan las features, en orden.
var MarketFields = [...]int{IdxOpen, IdxHigh, IdxLow, IdxClose, IdxVolume}

// Shares devuelve las acciones en cartera.
func (o Observation) Shares() float64 { return o[IdxShares] }

// Cash devuelve el efectivo disponible.
func (o Observation) Cash() float64 { return o[IdxCash] }

// Open devuelve el precio de apertura.
func (o Observation) Open() float64 { return o[IdxOpen] }

// Close devuelve el precio de cierre.
func (o Observation) Close() float64 { return o[IdxClose] }
