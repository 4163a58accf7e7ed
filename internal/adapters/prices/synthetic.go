package prices

import (
	"context"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/alejandrodnm/careersim/internal/domain"
)

// Synthetic genera series determinísticas sin red, para -dry-run: un paseo
// aleatorio suave sembrado por ticker, idéntico en cada ejecución.
type Synthetic struct{}

// NewSynthetic crea el proveedor offline.
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Series implementa ports.PriceProvider. Nunca devuelve ErrNoData: todo
// ticker "cotiza" en el mundo sintético.
func (Synthetic) Series(_ context.Context, ticker string, start, end time.Time) (domain.Series, error) {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(strings.TrimSpace(ticker))))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	// drift anual 2%..10% y vol diaria 0.5%..2.5%, fijos por ticker
	drift := (0.02 + rng.Float64()*0.08) / 252
	vol := 0.005 + rng.Float64()*0.02
	price := 20 + rng.Float64()*180

	// El paseo arranca en BaseStartDate para que el precio en una fecha no
	// dependa del rango pedido.
	var series domain.Series
	for d := domain.BaseStartDate; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		price *= 1 + drift + (rng.Float64()*2-1)*vol
		if price < 0.01 {
			price = 0.01
		}
		if !d.Before(start) {
			series = append(series, domain.PricePoint{Date: d, Value: price})
		}
	}
	return series, nil
}
