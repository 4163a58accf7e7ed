package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/careersim/internal/domain"
)

// CloseTurnInput is the turn-close contract.
type CloseTurnInput struct {
	SessionID string
	TurnN     int
	Alloc     domain.Allocation
	UseDCA    bool
}

// CloseTurnResult bundles the new snapshot with the session state after the
// close.
type CloseTurnResult struct {
	Snapshot domain.Snapshot
	Session  *domain.Session
}

// CloseTurn closes exactly one pending turn.
//
// Price lookups (the only I/O) run before taking the session lock; the
// pending-turn precondition is re-checked under the lock before anything is
// mutated. Every user-correctable failure (validation, NoHistoricalData,
// NotPendingTurn) leaves the stored session byte-identical.
func (s *Service) CloseTurn(ctx context.Context, in CloseTurnInput) (*CloseTurnResult, error) {
	alloc := in.Alloc.Normalize()
	if err := domain.ValidateAllocation(alloc, s.cfg.MaxAssets); err != nil {
		return nil, err
	}

	// Fetch phase, unlocked: precondition pre-check + price data.
	session, err := s.store.Load(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("engine.CloseTurn: %w", err)
	}
	if err := checkPending(session, in.TurnN); err != nil {
		return nil, err
	}
	pending := session.PendingTurn()

	newTickers, err := s.vetNewTickers(ctx, session, alloc)
	if err != nil {
		return nil, err
	}

	marketRets, err := s.windowReturns(ctx, alloc, pending.Start, pending.End, in.UseDCA)
	if err != nil {
		return nil, err
	}

	// Commit phase: reload under the session lock and re-validate, another
	// close may have won the race while we were fetching.
	lock := s.sessionLock(in.SessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err = s.store.Load(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("engine.CloseTurn: reload: %w", err)
	}
	if err := checkPending(session, in.TurnN); err != nil {
		return nil, err
	}
	pending = session.PendingTurn()

	tier := domain.Difficulties[session.Difficulty]

	// Active events perturb this turn's returns; they never touch prices.
	adjustedRets := make(map[string]float64, len(marketRets))
	for ticker, ret := range marketRets {
		adjustedRets[ticker] = ret + domain.EventAdjustment(ticker, session.Sectors, session.ActiveEvents)
	}

	marketReturn := portfolioReturn(alloc, marketRets)
	finalReturn := portfolioReturn(alloc, adjustedRets)

	// DCA contribution arrives at the start of the turn, before compounding.
	capitalBefore := session.CapitalCurrent
	dcaInTurn := 0.0
	if in.UseDCA && len(session.Turns) > 0 {
		dcaInTurn = session.CapitalInitial / float64(len(session.Turns))
		session.CapitalCurrent += dcaInTurn
		session.ContribSoFar += dcaInTurn
	}

	capitalBase := session.CapitalCurrent
	portfolioValue := math.Round(capitalBase*(1+finalReturn)*100) / 100
	session.CapitalCurrent = portfolioValue
	session.CumReturn = math.Round((portfolioValue/session.CapitalInitial-1)*1e6) / 1e6

	investedSoFar := session.CapitalInitial + session.ContribSoFar
	pnlAbs := portfolioValue - investedSoFar
	pnlPct := 0.0
	cumReturnNet := 0.0
	if investedSoFar > 0 {
		pnlPct = pnlAbs / investedSoFar
		cumReturnNet = portfolioValue/investedSoFar - 1
	}

	eventsApplied := append([]domain.Event(nil), session.ActiveEvents...)
	stillActive, _ := domain.AdvanceEvents(session.ActiveEvents)
	newEvents := domain.DrawEvents(tier, domain.TurnRNG(session.Seed, in.TurnN), in.TurnN,
		session.Universe, session.Sectors)
	session.ActiveEvents = append(stillActive, newEvents...)
	session.EventsLog = append(session.EventsLog, newEvents...)

	snapshot := domain.Snapshot{
		TurnN:            in.TurnN,
		Range:            domain.Period{Start: pending.Start, End: pending.End},
		Alloc:            alloc.Clone(),
		UseDCA:           in.UseDCA,
		TickerReturns:    marketRets,
		TurnReturnMarket: math.Round(marketReturn*1e6) / 1e6,
		TurnReturn:       math.Round(finalReturn*1e6) / 1e6,
		PortfolioValue:   portfolioValue,
		EventsApplied:    eventsApplied,
		EventsNew:        newEvents,
		NextSuggested:    domain.DriftNext(alloc, adjustedRets),
		DCAInTurn:        math.Round(dcaInTurn*100) / 100,
		InvestedSoFar:    math.Round(investedSoFar*100) / 100,
		PnLAbs:           math.Round(pnlAbs*100) / 100,
		PnLPct:           math.Round(pnlPct*1e6) / 1e6,
		CumReturnNet:     math.Round(cumReturnNet*1e6) / 1e6,
		DeltaVsPrev:      math.Round((portfolioValue-capitalBefore)*100) / 100,
	}

	closedAt := s.now().UTC()
	pending.Status = domain.TurnClosed
	pending.ClosedAt = &closedAt

	session.Snapshots = append(session.Snapshots, snapshot)
	session.Decisions = append(session.Decisions, domain.Decision{
		TurnN: in.TurnN, Alloc: alloc.Clone(), UseDCA: in.UseDCA,
	})
	if len(newTickers) > 0 {
		session.Universe = append(session.Universe, newTickers...)
		sort.Strings(session.Universe)
	}
	if session.PendingTurn() == nil {
		session.Closed = true
	}

	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("engine.CloseTurn: save: %w", err)
	}

	slog.Info("turn closed",
		"session", session.ID,
		"turn", in.TurnN,
		"return", snapshot.TurnReturn,
		"value", portfolioValue,
		"events_applied", len(eventsApplied),
		"session_closed", session.Closed,
	)
	return &CloseTurnResult{Snapshot: snapshot, Session: session.Clone()}, nil
}

// Autoplay closes every remaining turn sequentially, reusing each turn's
// suggested allocation (equal weight over the universe for the first turn).
// Each close is an independent, atomic CloseTurn: a mid-sequence failure
// leaves a consistent, resumable session.
func (s *Service) Autoplay(ctx context.Context, sessionID string, useDCA bool) ([]domain.Snapshot, error) {
	var snapshots []domain.Snapshot
	for {
		if err := ctx.Err(); err != nil {
			return snapshots, err
		}
		session, err := s.store.Load(ctx, sessionID)
		if err != nil {
			return snapshots, fmt.Errorf("engine.Autoplay: %w", err)
		}
		pending := session.PendingTurn()
		if pending == nil {
			return snapshots, nil
		}

		alloc := nextAutoAllocation(session)
		if len(alloc) == 0 {
			return snapshots, fmt.Errorf("engine.Autoplay: session %s has no investable universe", sessionID)
		}

		res, err := s.CloseTurn(ctx, CloseTurnInput{
			SessionID: sessionID,
			TurnN:     pending.N,
			Alloc:     alloc,
			UseDCA:    useDCA,
		})
		if err != nil {
			return snapshots, fmt.Errorf("engine.Autoplay: turn %d: %w", pending.N, err)
		}
		snapshots = append(snapshots, res.Snapshot)
	}
}

func nextAutoAllocation(session *domain.Session) domain.Allocation {
	if last := session.LastSnapshot(); last != nil && len(last.NextSuggested) > 0 {
		return last.NextSuggested.Clone()
	}
	var investable []string
	for _, t := range session.Universe {
		if !domain.IsCash(t) {
			investable = append(investable, t)
		}
	}
	if len(investable) > domain.MaxAssets {
		investable = investable[:domain.MaxAssets]
	}
	return domain.EqualWeight(investable, 1.0)
}

// checkPending enforces the turn-ordering preconditions.
func checkPending(session *domain.Session, turnN int) error {
	if session.Closed {
		return domain.ErrSessionClosed
	}
	pending := session.PendingTurn()
	if pending == nil {
		return domain.ErrSessionClosed
	}
	if pending.N != turnN {
		return fmt.Errorf("turn %d: %w (pending is %d)", turnN, domain.ErrNotPendingTurn, pending.N)
	}
	return nil
}

// vetNewTickers validates allocation tickers not yet in the universe against
// the provider over the whole session period. Invalid ones produce the
// recoverable NoHistoricalData failure without touching state.
func (s *Service) vetNewTickers(ctx context.Context, session *domain.Session, alloc domain.Allocation) ([]string, error) {
	var candidates []string
	for _, p := range alloc {
		if !domain.IsCash(p.Ticker) && !session.InUniverse(p.Ticker) {
			candidates = append(candidates, p.Ticker)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	ok, rejected, err := s.validateUniverse(ctx, candidates, session.Period.Start, session.Period.End)
	if err != nil {
		return nil, fmt.Errorf("engine.CloseTurn: vet tickers: %w", err)
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return nil, &domain.NoHistoricalDataError{Tickers: rejected}
	}
	return ok, nil
}

// windowReturns fetches each ticker's series over the turn window and
// computes its simple (or DCA-averaged) return. Cash returns 0 without a
// lookup. Tickers with no usable window data become one recoverable
// NoHistoricalData error.
func (s *Service) windowReturns(ctx context.Context, alloc domain.Allocation, start, end time.Time, useDCA bool) (map[string]float64, error) {
	rets := make(map[string]float64, len(alloc))
	var missing []string
	for _, p := range alloc {
		if domain.IsCash(p.Ticker) {
			rets[p.Ticker] = 0
			continue
		}
		series, err := s.prices.Series(ctx, p.Ticker, start, end)
		if err != nil {
			if errors.Is(err, domain.ErrNoData) {
				missing = append(missing, p.Ticker)
				continue
			}
			return nil, fmt.Errorf("engine.CloseTurn: fetch %s: %w", p.Ticker, err)
		}

		var ret float64
		var ok bool
		if useDCA {
			ret, ok = domain.DCAWindowReturn(series, start, end)
		} else {
			ret, ok = domain.WindowReturn(series, start, end)
		}
		if !ok {
			missing = append(missing, p.Ticker)
			continue
		}
		rets[p.Ticker] = ret
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &domain.NoHistoricalDataError{Tickers: missing}
	}
	return rets, nil
}

// portfolioReturn is Σ(weight·return); the uninvested residual contributes 0.
func portfolioReturn(alloc domain.Allocation, rets map[string]float64) float64 {
	total := 0.0
	for _, p := range alloc {
		total += p.Weight * rets[p.Ticker]
	}
	return total
}
