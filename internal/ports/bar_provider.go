package ports

import (
	"context"

	"github.com/alejandrodnm/nestrader/internal/domain"
)

// BarProvider obtiene la serie de velas que reproduce el simulador.
type BarProvider interface {
	// FetchBars devuelve las velas en orden cronológico ascendente.
	FetchBars(ctx context.Context) ([]domain.Bar, error)
}
