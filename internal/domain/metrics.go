package domain

import "math"

const tradingDaysPerYear = 252

// EquityMetrics are the standard risk/return numbers for one equity curve.
type EquityMetrics struct {
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	VolAnnual   float64 `json:"vol_annual"`
	MaxDrawdown float64 `json:"max_drawdown"` // ≤ 0
}

// TrackingStats measure the portfolio against its benchmark.
// InformationRatio is nil when the tracking error is zero or undefined;
// that is a degraded report, not an error.
type TrackingStats struct {
	ActiveReturn     float64  `json:"active_return"`
	TrackingError    float64  `json:"tracking_error"`
	InformationRatio *float64 `json:"information_ratio"`
}

// EquityReport bundles the metrics of one curve with its optional base-100
// series.
type EquityReport struct {
	Metrics EquityMetrics `json:"metrics"`
	Series  Series        `json:"series,omitempty"`
}

// Report is the scored performance summary of a session. It is a pure
// function of (session, benchmark series): recomputing it never changes the
// numbers.
type Report struct {
	SessionID       string        `json:"session_id"`
	BenchmarkTicker string        `json:"benchmark_ticker"`
	Score           float64       `json:"score"` // 0..10
	Stars           int           `json:"stars"` // 1..5
	Portfolio       EquityReport  `json:"portfolio_equity"`
	Benchmark       EquityReport  `json:"benchmark"`
	Tracking        TrackingStats `json:"tracking"`
	TurnsClosed     int           `json:"turns_closed"`
	TurnsTotal      int           `json:"turns_total"`
	Warnings        []string      `json:"warnings"`
}

// ComputeEquityMetrics derives the standard metrics from a daily curve.
// A curve wiped to zero or below still yields finite numbers (CAGR clamps
// to -1, a total loss).
func ComputeEquityMetrics(curve Series) EquityMetrics {
	var m EquityMetrics
	if len(curve) < 2 || curve[0].Value <= 0 {
		return m
	}
	start, end := curve[0].Value, curve[len(curve)-1].Value
	m.TotalReturn = end/start - 1

	elapsedDays := curve[len(curve)-1].Date.Sub(curve[0].Date).Hours() / 24
	switch {
	case end/start <= 0:
		m.CAGR = -1
	case elapsedDays < 1:
		m.CAGR = m.TotalReturn
	default:
		m.CAGR = math.Pow(end/start, 365/elapsedDays) - 1
	}

	m.VolAnnual = stdev(logReturns(curve)) * math.Sqrt(tradingDaysPerYear)

	runMax := curve[0].Value
	for _, p := range curve {
		if p.Value > runMax {
			runMax = p.Value
		}
		if runMax > 0 {
			if dd := p.Value/runMax - 1; dd < m.MaxDrawdown {
				m.MaxDrawdown = dd
			}
		}
	}
	return m
}

// ComputeTracking aligns both curves on their common dates and derives the
// active return, annualized tracking error, and information ratio.
func ComputeTracking(portfolio, benchmark Series) TrackingStats {
	pm := ComputeEquityMetrics(portfolio)
	bm := ComputeEquityMetrics(benchmark)
	stats := TrackingStats{ActiveReturn: pm.TotalReturn - bm.TotalReturn}

	benchByDate := make(map[int64]float64, len(benchmark))
	for _, p := range benchmark {
		benchByDate[p.Date.Unix()] = p.Value
	}

	var diffs []float64
	var prevP, prevB float64
	havePrev := false
	for _, p := range portfolio {
		b, ok := benchByDate[p.Date.Unix()]
		if !ok {
			continue
		}
		if havePrev && prevP > 0 && prevB > 0 {
			diffs = append(diffs, (p.Value/prevP-1)-(b/prevB-1))
		}
		prevP, prevB = p.Value, b
		havePrev = true
	}

	stats.TrackingError = stdev(diffs) * math.Sqrt(tradingDaysPerYear)
	if len(diffs) >= 2 && stats.TrackingError > 0 {
		ir := (pm.CAGR - bm.CAGR) / stats.TrackingError
		stats.InformationRatio = &ir
	}
	return stats
}

// Score maps (CAGR, max drawdown, information ratio) to a 0-10 scalar and a
// 1-5 star rating against the tier's thresholds.
//
// Each component is a non-decreasing ramp in the "better" direction, so a
// strictly better CAGR with equal or better drawdown and information ratio
// can never lower the score:
//
//	cagr:     0 at -TargetCAGR, 1 at +TargetCAGR        (weight 5)
//	drawdown: 1 at 0, 0 at DrawdownTolerance magnitude   (weight 3)
//	IR:       0 at -1, 1 at +1; nil scores the midpoint  (weight 2)
func Score(m EquityMetrics, ir *float64, cfg DifficultyConfig) (score float64, stars int) {
	cagrScore := ramp(m.CAGR, -cfg.TargetCAGR, cfg.TargetCAGR)

	ddScore := 0.0
	if cfg.DrawdownTolerance > 0 {
		ddScore = 1 - math.Min(1, -m.MaxDrawdown/cfg.DrawdownTolerance)
	}

	irScore := 0.5
	if ir != nil {
		irScore = ramp(*ir, -1, 1)
	}

	score = 5*cagrScore + 3*ddScore + 2*irScore
	score = math.Round(math.Max(0, math.Min(10, score))*100) / 100
	stars = 1 + int(score/2.05)
	return score, stars
}

// ramp is a clamped linear interpolation of v from [lo, hi] to [0, 1].
func ramp(v, lo, hi float64) float64 {
	if v <= lo {
		return 0
	}
	if v >= hi {
		return 1
	}
	return (v - lo) / (hi - lo)
}

// logReturns extracts daily log returns, skipping non-positive ratios.
func logReturns(curve Series) []float64 {
	var out []float64
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Value > 0 && curve[i].Value > 0 {
			out = append(out, math.Log(curve[i].Value/curve[i-1].Value))
		}
	}
	return out
}

// stdev is the sample standard deviation; 0 with fewer than 2 samples.
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
