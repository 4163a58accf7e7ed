package domain

import (
	"math"
	"time"
)

// PricePoint is one (date, value) sample of a daily series: an adjusted
// close for a ticker, or an indexed equity value.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a daily series ordered by ascending date.
type Series []PricePoint

// FirstOnOrAfter returns the first usable price at or after target.
func (s Series) FirstOnOrAfter(target time.Time) (float64, bool) {
	for _, p := range s {
		if !p.Date.Before(target) && !math.IsNaN(p.Value) {
			return p.Value, true
		}
	}
	return 0, false
}

// LastOnOrBefore returns the last usable price at or before target.
func (s Series) LastOnOrBefore(target time.Time) (float64, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if !s[i].Date.After(target) && !math.IsNaN(s[i].Value) {
			return s[i].Value, true
		}
	}
	return 0, false
}

// Within returns the sub-series inside [start, end].
func (s Series) Within(start, end time.Time) Series {
	var out Series
	for _, p := range s {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// WindowReturn computes the simple return over [start, end] using the first
// price on/after start and the last price on/before end. Rebalancing only
// happens at turn boundaries, so a single start/end ratio is enough.
func WindowReturn(s Series, start, end time.Time) (float64, bool) {
	startPrice, ok := s.FirstOnOrAfter(start)
	if !ok || startPrice == 0 {
		return 0, false
	}
	endPrice, ok := s.LastOnOrBefore(end)
	if !ok {
		return 0, false
	}
	return endPrice/startPrice - 1, true
}

// dcaSampleStep: DCA entry prices average one close every 5 trading days.
const dcaSampleStep = 5

// DCAEntryPrice is the average entry price for a dollar-cost-averaged
// position opened across the turn: the mean of the window's closes sampled
// every 5 trading days, first trading day always included. Windows shorter
// than one sample step degrade to the plain start price.
func DCAEntryPrice(s Series, start, end time.Time) (float64, bool) {
	window := s.Within(start, end)
	if len(window) == 0 {
		return 0, false
	}
	sum, n := 0.0, 0
	for i := 0; i < len(window); i += dcaSampleStep {
		sum += window[i].Value
		n++
	}
	if n == 0 || sum == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// DCAWindowReturn is WindowReturn with the averaged entry price replacing
// the start price.
func DCAWindowReturn(s Series, start, end time.Time) (float64, bool) {
	entry, ok := DCAEntryPrice(s, start, end)
	if !ok || entry == 0 {
		return 0, false
	}
	endPrice, ok := s.LastOnOrBefore(end)
	if !ok {
		return 0, false
	}
	return endPrice/entry - 1, true
}

// NormalizeBase100 rebases a series so its first point is 100. Empty input,
// or a zero base price, yields nil.
func NormalizeBase100(s Series) Series {
	if len(s) == 0 || s[0].Value == 0 {
		return nil
	}
	base := s[0].Value
	out := make(Series, 0, len(s))
	for _, p := range s {
		out = append(out, PricePoint{
			Date:  p.Date,
			Value: math.Round(p.Value/base*100*1e4) / 1e4,
		})
	}
	return out
}
