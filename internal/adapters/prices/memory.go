package prices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/careersim/internal/domain"
)

// Memory is an in-memory price provider for tests and -dry-run: fixed
// series per ticker, no network.
type Memory struct {
	series map[string]domain.Series
}

// NewMemory builds a provider from ticker → series fixtures.
func NewMemory(series map[string]domain.Series) *Memory {
	normalized := make(map[string]domain.Series, len(series))
	for ticker, s := range series {
		normalized[strings.ToUpper(ticker)] = s
	}
	return &Memory{series: normalized}
}

// Series implements ports.PriceProvider, clipping the fixture to the range.
func (m *Memory) Series(_ context.Context, ticker string, start, end time.Time) (domain.Series, error) {
	s, ok := m.series[strings.ToUpper(ticker)]
	if !ok {
		return nil, fmt.Errorf("prices.Memory: %s: %w", ticker, domain.ErrNoData)
	}
	window := s.Within(start, end)
	if len(window) == 0 {
		return nil, fmt.Errorf("prices.Memory: %s in range: %w", ticker, domain.ErrNoData)
	}
	return window, nil
}

// Flat builds a constant daily series, weekdays only. Handy for fixtures.
func Flat(value float64, start, end time.Time) domain.Series {
	return Linear(value, value, start, end)
}

// Linear builds a daily series moving evenly from first to last over the
// range's weekdays.
func Linear(first, last float64, start, end time.Time) domain.Series {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	var series domain.Series
	for i, d := range days {
		frac := 0.0
		if len(days) > 1 {
			frac = float64(i) / float64(len(days)-1)
		}
		series = append(series, domain.PricePoint{Date: d, Value: first + (last-first)*frac})
	}
	return series
}
