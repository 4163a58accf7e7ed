package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	// MaxAssets limits distinct tickers per decision.
	MaxAssets = 10
	// WeightSumEpsilon absorbs floating rounding when checking Σweight ≤ 1.
	WeightSumEpsilon = 1e-4
	// weightUnits: weights are reported at 1e-6 precision.
	weightUnits = 1e6
)

// cashTickers are synthetic zero-return assets that skip price lookup.
var cashTickers = map[string]bool{"CASH": true, "CASH:USD": true}

// IsCash reports whether ticker is the synthetic cash asset.
func IsCash(ticker string) bool {
	return cashTickers[strings.ToUpper(strings.TrimSpace(ticker))]
}

// Position is one (ticker, weight) entry of an allocation.
type Position struct {
	Ticker string  `json:"ticker"`
	Weight float64 `json:"weight"`
}

// Allocation is the ordered list of positions submitted for a turn.
// Weights are fractions of total capital; the residual 1-Σweight stays in
// uninvested cash.
type Allocation []Position

// Clone returns an independent copy.
func (a Allocation) Clone() Allocation {
	return append(Allocation(nil), a...)
}

// WeightSum returns Σweight, the invested fraction.
func (a Allocation) WeightSum() float64 {
	sum := 0.0
	for _, p := range a {
		sum += p.Weight
	}
	return sum
}

// Tickers returns the tickers in submission order.
func (a Allocation) Tickers() []string {
	out := make([]string, len(a))
	for i, p := range a {
		out[i] = p.Ticker
	}
	return out
}

// Normalize upper-cases and trims tickers, drops entries with an empty
// ticker, and rounds weights to 1e-6. It does not aggregate or drop
// duplicates; those are validation failures the player must see.
func (a Allocation) Normalize() Allocation {
	out := make(Allocation, 0, len(a))
	for _, p := range a {
		ticker := strings.ToUpper(strings.TrimSpace(p.Ticker))
		if ticker == "" {
			continue
		}
		out = append(out, Position{
			Ticker: ticker,
			Weight: math.Round(p.Weight*weightUnits) / weightUnits,
		})
	}
	return out
}

// ValidateAllocation checks a normalized allocation against the structural
// constraints. Pure; no side effects.
func ValidateAllocation(a Allocation, maxAssets int) error {
	if maxAssets <= 0 {
		maxAssets = MaxAssets
	}
	if len(a) == 0 {
		return &ValidationError{Kind: ValidationEmpty, Detail: "allocation is empty"}
	}
	seen := make(map[string]bool, len(a))
	for _, p := range a {
		if seen[p.Ticker] {
			return &ValidationError{
				Kind:   ValidationDuplicate,
				Detail: fmt.Sprintf("ticker %s repeats", p.Ticker),
			}
		}
		seen[p.Ticker] = true
	}
	if len(seen) > maxAssets {
		return &ValidationError{
			Kind:   ValidationTooManyAssets,
			Detail: fmt.Sprintf("%d tickers, max %d", len(seen), maxAssets),
		}
	}
	for _, p := range a {
		if p.Weight <= 0 || p.Weight > 1 {
			return &ValidationError{
				Kind:   ValidationWeightRange,
				Detail: fmt.Sprintf("weight %.6f for %s outside (0, 1]", p.Weight, p.Ticker),
			}
		}
	}
	if sum := a.WeightSum(); sum > 1+WeightSumEpsilon {
		return &ValidationError{
			Kind:   ValidationWeightSum,
			Detail: fmt.Sprintf("weights sum to %.6f, max 1.0", sum),
		}
	}
	return nil
}

// RoundLargestRemainder rounds weights to 1e-6 so they sum exactly to
// targetSum, distributing the leftover units to the largest fractional
// remainders (earlier index wins ties). This keeps reported weights free of
// floating drift wherever a set of weights must hit an exact total.
func RoundLargestRemainder(weights []float64, targetSum float64) []float64 {
	if len(weights) == 0 {
		return nil
	}
	targetUnits := int64(math.Round(targetSum * weightUnits))

	type rem struct {
		idx  int
		frac float64
	}
	units := make([]int64, len(weights))
	rems := make([]rem, len(weights))
	var used int64
	for i, w := range weights {
		if w < 0 {
			w = 0
		}
		scaled := w * weightUnits
		units[i] = int64(math.Floor(scaled))
		used += units[i]
		rems[i] = rem{idx: i, frac: scaled - math.Floor(scaled)}
	}

	leftover := targetUnits - used
	if leftover > 0 {
		sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
		for k := 0; leftover > 0; k = (k + 1) % len(rems) {
			units[rems[k].idx]++
			leftover--
		}
	} else if leftover < 0 {
		// Floating sums can land a unit above target; take it back from the
		// smallest remainders.
		sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac < rems[j].frac })
		for k := 0; leftover < 0; k = (k + 1) % len(rems) {
			if units[rems[k].idx] > 0 {
				units[rems[k].idx]--
				leftover++
			}
		}
	}

	out := make([]float64, len(weights))
	for i, u := range units {
		out[i] = float64(u) / weightUnits
	}
	return out
}

// DriftNext computes the suggested allocation for the next turn: each weight
// grows with its ticker's realized return and the result is renormalized to
// the same invested fraction, not forced to sum to 1.
//
// Fallbacks when total post-drift growth is non-positive: equal-weight the
// tickers that survived (ret > -1); with no survivors, keep the original
// allocation.
func DriftNext(a Allocation, rets map[string]float64) Allocation {
	if len(a) == 0 {
		return nil
	}
	invested := a.WeightSum()

	grown := make([]float64, len(a))
	denom := 0.0
	for i, p := range a {
		g := p.Weight * (1 + rets[p.Ticker])
		if g < 0 {
			g = 0
		}
		grown[i] = g
		denom += g
	}

	if denom <= 0 {
		var survivors Allocation
		for _, p := range a {
			if rets[p.Ticker] > -1 {
				survivors = append(survivors, p)
			}
		}
		if len(survivors) == 0 {
			return a.Clone()
		}
		equal := make([]float64, len(survivors))
		for i := range equal {
			equal[i] = invested / float64(len(survivors))
		}
		return buildAllocation(survivors.Tickers(), RoundLargestRemainder(equal, invested))
	}

	weights := make([]float64, len(a))
	for i := range a {
		weights[i] = grown[i] / denom * invested
	}
	return buildAllocation(a.Tickers(), RoundLargestRemainder(weights, invested))
}

// EqualWeight spreads fraction total evenly over tickers, exact at 1e-6.
func EqualWeight(tickers []string, total float64) Allocation {
	if len(tickers) == 0 {
		return nil
	}
	weights := make([]float64, len(tickers))
	for i := range weights {
		weights[i] = total / float64(len(tickers))
	}
	return buildAllocation(tickers, RoundLargestRemainder(weights, total))
}

func buildAllocation(tickers []string, weights []float64) Allocation {
	out := make(Allocation, 0, len(tickers))
	for i, t := range tickers {
		if weights[i] <= 0 {
			continue
		}
		out = append(out, Position{Ticker: t, Weight: weights[i]})
	}
	return out
}
