package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/careersim/internal/domain"
)

// PriceProvider obtiene series diarias de cierre ajustado.
type PriceProvider interface {
	// Series devuelve la serie diaria ordenada de cierre ajustado para el
	// ticker en [start, end]. Devuelve domain.ErrNoData (envuelto) si el
	// ticker no existe o no cotizó en el rango.
	Series(ctx context.Context, ticker string, start, end time.Time) (domain.Series, error)
}
