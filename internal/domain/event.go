package domain

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// EventScope says which assets an event touches.
type EventScope string

const (
	ScopeTicker EventScope = "ticker"
	ScopeSector EventScope = "sector"
	ScopeMarket EventScope = "market"
)

// Event is a randomized market shock. ImpactPct additively perturbs the
// return of every matching ticker each turn while RemainingTurns > 0.
type Event struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Scope          EventScope `json:"scope"`
	Target         string     `json:"target,omitempty"` // ticker or sector; empty for market
	ImpactPct      float64    `json:"impact_pct"`
	RemainingTurns int        `json:"remaining_turns"`
}

// Matches reports whether the event perturbs ticker, given the ticker's
// sector ("" when unmapped). Cash never matches.
func (e Event) Matches(ticker, sector string) bool {
	if IsCash(ticker) {
		return false
	}
	switch e.Scope {
	case ScopeMarket:
		return true
	case ScopeSector:
		return sector != "" && e.Target == sector
	case ScopeTicker:
		return e.Target == ticker
	}
	return false
}

// EventAdjustment sums the impact of every active event matching ticker.
func EventAdjustment(ticker string, sectors map[string]string, active []Event) float64 {
	adj := 0.0
	for _, e := range active {
		if e.Matches(ticker, sectors[ticker]) {
			adj += e.ImpactPct
		}
	}
	return adj
}

// AdvanceEvents decrements every active event after it has been applied and
// splits the set into survivors and newly expired. Expired events are
// reported once, for transparency, and never applied again.
func AdvanceEvents(active []Event) (still, expired []Event) {
	for _, e := range active {
		e.RemainingTurns--
		if e.RemainingTurns <= 0 {
			expired = append(expired, e)
		} else {
			still = append(still, e)
		}
	}
	return still, expired
}

// turnSeedStep decorrelates per-turn draws from the session seed.
const turnSeedStep = 997

// TurnRNG builds the deterministic generator for one turn. Same session
// seed, same turn, same events: scoring stays replayable.
func TurnRNG(seed int64, turnN int) *rand.Rand {
	return rand.New(rand.NewSource(seed + int64(turnN)*turnSeedStep))
}

// DrawEvents rolls the tier's shock dice for one turn and generates at most
// one new event. Scope is weighted toward tickers in the current universe
// (50% ticker, 20% sector, 30% market); ticker/sector draws degrade to
// market scope when there is nothing to target. The impact is uniform in the
// tier's negative band, mirrored positive 35% of the time. Durations run 1-4
// turns.
func DrawEvents(cfg DifficultyConfig, rng *rand.Rand, turnN int, universe []string, sectors map[string]string) []Event {
	if rng.Float64() > cfg.ShockProbability {
		return nil
	}

	scope := ScopeMarket
	target := ""
	name := "shock_macro"

	investable := make([]string, 0, len(universe))
	for _, t := range universe {
		if !IsCash(t) {
			investable = append(investable, t)
		}
	}

	switch roll := rng.Float64(); {
	case roll < 0.5 && len(investable) > 0:
		scope = ScopeTicker
		target = investable[rng.Intn(len(investable))]
		name = "shock_ticker"
	case roll < 0.7:
		if sectorList := distinctSectors(sectors); len(sectorList) > 0 {
			scope = ScopeSector
			target = sectorList[rng.Intn(len(sectorList))]
			name = "shock_sector"
		}
	}

	impact := cfg.ShockMin + rng.Float64()*(cfg.ShockMax-cfg.ShockMin)
	if rng.Float64() < 0.35 {
		impact = -impact
	}
	impact = math.Round(impact*1e4) / 1e4

	duration := 1 + rng.Intn(4)

	return []Event{{
		ID:             fmt.Sprintf("evt_%d_1", turnN),
		Name:           name,
		Scope:          scope,
		Target:         target,
		ImpactPct:      impact,
		RemainingTurns: duration,
	}}
}

func distinctSectors(sectors map[string]string) []string {
	seen := make(map[string]bool, len(sectors))
	var out []string
	for _, s := range sectors {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out) // map order would break replay determinism
	return out
}
