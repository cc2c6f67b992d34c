package domain

import "fmt"

// ActionClass es la decisión discreta del agente.
type ActionClass int

const (
	ActionHold ActionClass = 0
	ActionBuy  ActionClass = 1
	ActionSell ActionClass = 2

	// NumActionClasses es el número de clases que produce la función de scoring.
	NumActionClasses = 3
)

func (a ActionClass) String() string {
	switch a {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return fmt.Sprintf("ActionClass(%d)", int(a))
	}
}

// Action es la acción que se envía al entorno: clase + cantidad de acciones.
type Action struct {
	Class     ActionClass
	Magnitude int
}

// NoOp es la acción neutra: no operar.
var NoOp = Action{Class: ActionHold, Magnitude: 0}

// IsNoOp devuelve true si la acción no mueve la cartera.
func (a Action) IsNoOp() bool {
	return a.Class == ActionHold || a.Magnitude == 0
}
