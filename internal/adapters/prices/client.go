package prices

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/careersim/internal/domain"
)

const (
	defaultBaseURL = "https://stooq.com"

	// Stooq no publica límites; 5 req/s con burst corto es respetuoso y
	// sobra para cerrar un turno (≤10 tickers).
	defaultRatePerSec = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client descarga series diarias de cierre desde el endpoint CSV de Stooq,
// con rate limiting, retries y caché por (ticker, rango).
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]domain.Series
}

// NewClient crea un Client. Con baseURL vacío usa producción.
func NewClient(baseURL string, ratePerSec int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		cache:   make(map[string]domain.Series),
	}
}

// Series implementa ports.PriceProvider.
// Un CSV vacío o sin filas válidas se reporta como domain.ErrNoData.
func (c *Client) Series(ctx context.Context, ticker string, start, end time.Time) (domain.Series, error) {
	key := fmt.Sprintf("%s|%s|%s", ticker, start.Format("20060102"), end.Format("20060102"))
	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	u := fmt.Sprintf("%s/q/d/l/?s=%s&d1=%s&d2=%s&i=d",
		c.baseURL,
		url.QueryEscape(stooqSymbol(ticker)),
		start.Format("20060102"),
		end.Format("20060102"),
	)

	body, err := c.getWithRetry(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("prices.Series: %s: %w", ticker, err)
	}

	series, err := parseDailyCSV(body)
	if err != nil {
		return nil, fmt.Errorf("prices.Series: parse %s: %w", ticker, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("prices.Series: %s in %s..%s: %w",
			ticker, start.Format("2006-01-02"), end.Format("2006-01-02"), domain.ErrNoData)
	}

	c.mu.Lock()
	c.cache[key] = series
	c.mu.Unlock()
	return series, nil
}

// getWithRetry hace un GET con rate limiting y backoff exponencial en
// errores de red y 5xx/429.
func (c *Client) getWithRetry(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := baseRetryWait * time.Duration(1<<(attempt-1))
			slog.Debug("prices: retrying", "url", u, "attempt", attempt, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			continue
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrNoData
		default:
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
	}
	return nil, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

// parseDailyCSV lee el formato Date,Open,High,Low,Close[,Volume] de Stooq.
// Filas con fecha o cierre ilegibles se saltan sin error.
func parseDailyCSV(body []byte) (domain.Series, error) {
	r := csv.NewReader(strings.NewReader(string(body)))
	r.FieldsPerRecord = -1

	var series domain.Series
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if len(record) > 0 && strings.EqualFold(record[0], "Date") {
				continue
			}
		}
		if len(record) < 5 {
			continue
		}
		d, err := time.ParseInLocation("2006-01-02", record[0], time.UTC)
		if err != nil {
			continue
		}
		closePx, err := strconv.ParseFloat(record[4], 64)
		if err != nil || closePx <= 0 {
			continue
		}
		series = append(series, domain.PricePoint{Date: d, Value: closePx})
	}
	return series, nil
}

// stooqSymbol mapea tickers al naming de Stooq: acciones US llevan sufijo
// .us, los índices (^SPX) se consultan tal cual en minúsculas.
func stooqSymbol(ticker string) string {
	t := strings.ToLower(strings.TrimSpace(ticker))
	if strings.HasPrefix(t, "^") || strings.Contains(t, ".") {
		return t
	}
	return t + ".us"
}
