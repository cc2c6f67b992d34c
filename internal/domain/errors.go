package domain

import "errors"

var (
	// ErrConfiguration: parámetros inválidos detectados antes de entrenar.
	ErrConfiguration = errors.New("configuration error")

	// ErrEvaluation: un episodio falló; el batch completo se descarta.
	ErrEvaluation = errors.New("evaluation failure")

	// ErrProtocol: resultados de fitness con índices faltantes, duplicados o fuera de rango.
	ErrProtocol = errors.New("fitness protocol violation")

	// ErrNotFound: el run o checkpoint pedido no existe en el storage.
	ErrNotFound = errors.New("not found")
)
