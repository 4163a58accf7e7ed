package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/careersim/internal/domain"
)

// ReportInput is the report contract.
type ReportInput struct {
	SessionID       string
	BenchmarkTicker string
	IncludeSeries   bool
}

// Report loads the session, fetches the benchmark series over the elapsed
// period and builds the scored report. The only failure besides missing
// session is an unavailable benchmark (recoverable NoHistoricalData);
// sparse sessions degrade into warnings, never errors.
func (s *Service) Report(ctx context.Context, in ReportInput) (*domain.Report, error) {
	session, err := s.store.Load(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("engine.Report: %w", err)
	}

	start, end := analysisRange(session)
	series, err := s.prices.Series(ctx, in.BenchmarkTicker, start, end)
	if err != nil && !errors.Is(err, domain.ErrNoData) {
		return nil, fmt.Errorf("engine.Report: fetch benchmark %s: %w", in.BenchmarkTicker, err)
	}
	if len(series) == 0 {
		return nil, &domain.NoHistoricalDataError{Tickers: []string{in.BenchmarkTicker}}
	}

	return BuildReport(session, in.BenchmarkTicker, series, in.IncludeSeries), nil
}

// Publish recomputes the report and appends the score to the leaderboard.
// Called only on explicit player consent.
func (s *Service) Publish(ctx context.Context, sessionID, benchmarkTicker string) (*domain.RankingEntry, error) {
	if s.ranking == nil {
		return nil, fmt.Errorf("engine.Publish: ranking store not configured")
	}
	report, err := s.Report(ctx, ReportInput{SessionID: sessionID, BenchmarkTicker: benchmarkTicker})
	if err != nil {
		return nil, err
	}
	session, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("engine.Publish: %w", err)
	}

	entry := domain.RankingEntry{
		SessionID:   session.ID,
		Player:      session.Player,
		Difficulty:  session.Difficulty,
		Score:       report.Score,
		Stars:       report.Stars,
		TotalReturn: report.Portfolio.Metrics.TotalReturn,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.ranking.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("engine.Publish: append: %w", err)
	}
	return &entry, nil
}

// BuildReport is the pure report builder: identical (session, benchmark
// series) inputs always reproduce identical numbers. No randomness, no
// mutation.
func BuildReport(session *domain.Session, benchmarkTicker string, benchmark domain.Series, includeSeries bool) *domain.Report {
	start, end := analysisRange(session)

	benchCurve := domain.NormalizeBase100(benchmark.Within(start, end))
	portCurve := portfolioCurve(session, gridDates(benchCurve))

	portMetrics := domain.ComputeEquityMetrics(portCurve)
	benchMetrics := domain.ComputeEquityMetrics(benchCurve)
	tracking := domain.ComputeTracking(portCurve, benchCurve)
	if session.ClosedTurns() < 2 {
		// con un solo turno cerrado el IR saldría de puro ruido de interpolación
		tracking.InformationRatio = nil
	}

	tier := domain.Difficulties[session.Difficulty]
	score, stars := domain.Score(portMetrics, tracking.InformationRatio, tier)

	report := &domain.Report{
		SessionID:       session.ID,
		BenchmarkTicker: benchmarkTicker,
		Score:           score,
		Stars:           stars,
		Portfolio:       domain.EquityReport{Metrics: portMetrics},
		Benchmark:       domain.EquityReport{Metrics: benchMetrics},
		Tracking:        tracking,
		TurnsClosed:     session.ClosedTurns(),
		TurnsTotal:      len(session.Turns),
		Warnings:        reportWarnings(session, portMetrics, tracking, benchCurve),
	}
	if includeSeries {
		report.Portfolio.Series = portCurve
		report.Benchmark.Series = benchCurve
	}
	return report
}

// analysisRange spans the session start through the last closed turn (the
// first turn's end before any close), clamped to the period.
func analysisRange(session *domain.Session) (start, end time.Time) {
	start = session.Period.Start
	end = session.Period.End
	lastClosed := 0
	for _, t := range session.Turns {
		if t.Status == domain.TurnClosed && t.N > lastClosed {
			lastClosed = t.N
			end = t.End
		}
	}
	if lastClosed == 0 && len(session.Turns) > 0 {
		end = session.Turns[0].End
	}
	if end.Before(start) {
		end = start
	}
	return start, end
}

// portfolioCurve builds the base-100 portfolio equity curve on the given
// daily grid. Within each closed turn the turn's growth is spread
// geometrically across the grid dates (falling back to linear when a value
// goes non-positive); dates after the last close hold the last value.
func portfolioCurve(session *domain.Session, grid []time.Time) domain.Series {
	if len(grid) == 0 {
		return nil
	}

	// Turn-boundary values, indexed to 100 at the session start.
	type boundary struct {
		date  time.Time
		value float64
	}
	bounds := []boundary{{date: session.Period.Start, value: 100}}
	for _, snap := range session.Snapshots {
		bounds = append(bounds, boundary{
			date:  snap.Range.End,
			value: snap.PortfolioValue / session.CapitalInitial * 100,
		})
	}

	curve := make(domain.Series, 0, len(grid))
	seg := 0
	for _, d := range grid {
		for seg+1 < len(bounds) && d.After(bounds[seg+1].date) {
			seg++
		}
		switch {
		case seg+1 >= len(bounds):
			// past the last closed turn: hold
			curve = append(curve, domain.PricePoint{Date: d, Value: bounds[len(bounds)-1].value})
		case !d.After(bounds[seg].date):
			curve = append(curve, domain.PricePoint{Date: d, Value: bounds[seg].value})
		default:
			lo, hi := bounds[seg], bounds[seg+1]
			span := hi.date.Sub(lo.date).Hours() / 24
			frac := d.Sub(lo.date).Hours() / 24 / span
			curve = append(curve, domain.PricePoint{Date: d, Value: interpolate(lo.value, hi.value, frac)})
		}
	}
	return curve
}

// interpolate grows lo toward hi geometrically when both are positive so
// daily log returns are constant within a turn; otherwise linearly, which
// stays finite through wipeouts.
func interpolate(lo, hi, frac float64) float64 {
	if lo > 0 && hi > 0 {
		return lo * math.Pow(hi/lo, frac)
	}
	return lo + (hi-lo)*frac
}

func gridDates(curve domain.Series) []time.Time {
	out := make([]time.Time, len(curve))
	for i, p := range curve {
		out[i] = p.Date
	}
	return out
}

func reportWarnings(session *domain.Session, m domain.EquityMetrics, tracking domain.TrackingStats, benchCurve domain.Series) []string {
	var warnings []string
	if m.MaxDrawdown < -0.30 {
		warnings = append(warnings, fmt.Sprintf("drawdown exceeds 30%% (%.1f%%)", m.MaxDrawdown*100))
	}
	if session.ClosedTurns() < 2 {
		warnings = append(warnings, "fewer than 2 turns closed: insufficient sample")
	}
	if tracking.InformationRatio == nil {
		warnings = append(warnings, "information ratio undefined (tracking error is zero or sample too thin)")
	}
	if len(benchCurve) == 0 {
		warnings = append(warnings, "benchmark series empty over the analysis range")
	}
	return warnings
}
