package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/careersim/internal/domain"
	"github.com/alejandrodnm/careersim/internal/ports"
)

// Config holds engine-level settings.
type Config struct {
	MaxAssets int
}

// Service is the career engine: it owns session lifecycle, turn closing and
// report generation, delegating persistence and price data to ports.
//
// CloseTurn is serialized per session through a keyed mutex; reports only
// read store-loaded copies and can run concurrently with anything.
type Service struct {
	prices  ports.PriceProvider
	store   ports.SessionStore
	ranking ports.RankingStore
	cfg     Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time // inyectable en tests
}

// New wires a Service. ranking may be nil when leaderboard publishing is
// disabled.
func New(prices ports.PriceProvider, store ports.SessionStore, ranking ports.RankingStore, cfg Config) *Service {
	if cfg.MaxAssets <= 0 {
		cfg.MaxAssets = domain.MaxAssets
	}
	return &Service{
		prices:  prices,
		store:   store,
		ranking: ranking,
		cfg:     cfg,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// sessionLock returns the mutex serializing mutations for one session.
func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// CreateSessionInput is the contract for starting a career.
type CreateSessionInput struct {
	Player     string
	Difficulty string
	Universe   []string
	Sectors    map[string]string // ticker → sector, optional
	Capital    float64
	Seed       *int64 // nil: derived from player + date

	// Manual period mode: both set. Otherwise the period is drawn from the
	// difficulty tier.
	PeriodStart *time.Time
	PeriodEnd   *time.Time
}

// CreateSession builds and persists a new session: period and turn schedule
// from the difficulty tier (or the manual range), universe validated against
// the price provider with invalid tickers reported, event RNG seeded.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*domain.Session, error) {
	difficulty := strings.ToLower(strings.TrimSpace(in.Difficulty))
	cfg, ok := domain.Difficulties[difficulty]
	if !ok {
		return nil, fmt.Errorf("engine.CreateSession: unknown difficulty %q", in.Difficulty)
	}
	if in.Capital <= 0 {
		return nil, fmt.Errorf("engine.CreateSession: capital must be positive, got %.2f", in.Capital)
	}

	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)

	seed := domain.SeedFromPlayer(in.Player, today)
	if in.Seed != nil {
		seed = *in.Seed
	}

	var start, end time.Time
	var turns []domain.Turn
	if in.PeriodStart != nil && in.PeriodEnd != nil {
		start, end = in.PeriodStart.UTC(), in.PeriodEnd.UTC()
		if end.Before(start) {
			return nil, fmt.Errorf("engine.CreateSession: period end %s before start %s",
				end.Format("2006-01-02"), start.Format("2006-01-02"))
		}
		turns = domain.BuildTurnSchedule(start, end, cfg.TurnMonths)
	} else {
		rng := rand.New(rand.NewSource(seed))
		start, end, turns = domain.GeneratePeriod(cfg, rng, today)
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("engine.CreateSession: empty turn schedule for period %s..%s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	universe, rejected, err := s.validateUniverse(ctx, in.Universe, start, end)
	if err != nil {
		return nil, fmt.Errorf("engine.CreateSession: validate universe: %w", err)
	}

	sectors := make(map[string]string, len(in.Sectors))
	for ticker, sector := range in.Sectors {
		sectors[strings.ToUpper(strings.TrimSpace(ticker))] = sector
	}

	session := &domain.Session{
		ID:               newSessionID(),
		Player:           strings.TrimSpace(in.Player),
		Difficulty:       difficulty,
		CapitalInitial:   in.Capital,
		CapitalCurrent:   in.Capital,
		Period:           domain.Period{Start: start, End: end},
		Turns:            turns,
		Universe:         universe,
		RejectedUniverse: rejected,
		Sectors:          sectors,
		Seed:             seed,
		CreatedAt:        now,
	}

	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("engine.CreateSession: save: %w", err)
	}

	slog.Info("career session created",
		"session", session.ID,
		"difficulty", difficulty,
		"turns", len(turns),
		"period_start", start.Format("2006-01-02"),
		"period_end", end.Format("2006-01-02"),
		"universe", len(universe),
		"rejected", len(rejected),
	)
	return session.Clone(), nil
}

// LoadSession returns a copy of the stored session.
func (s *Service) LoadSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("engine.LoadSession: %w", err)
	}
	return session, nil
}

// Ranking lists the leaderboard, best score first.
func (s *Service) Ranking(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	if s.ranking == nil {
		return nil, nil
	}
	entries, err := s.ranking.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("engine.Ranking: %w", err)
	}
	return entries, nil
}

// validateUniverse normalizes tickers and checks each against the provider
// over the full period. Cash tickers always pass. Unavailable tickers land
// in rejected; other provider failures abort.
func (s *Service) validateUniverse(ctx context.Context, universe []string, start, end time.Time) (ok, rejected []string, err error) {
	seen := make(map[string]bool, len(universe))
	for _, raw := range universe {
		ticker := strings.ToUpper(strings.TrimSpace(raw))
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true

		if domain.IsCash(ticker) {
			ok = append(ok, ticker)
			continue
		}
		series, serr := s.prices.Series(ctx, ticker, start, end)
		switch {
		case errors.Is(serr, domain.ErrNoData) || (serr == nil && len(series) == 0):
			rejected = append(rejected, ticker)
		case serr != nil:
			return nil, nil, serr
		default:
			ok = append(ok, ticker)
		}
	}
	sort.Strings(ok)
	return ok, rejected, nil
}

// newSessionID mints IDs shaped like car_a1b2c3.
func newSessionID() string {
	return "car_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
