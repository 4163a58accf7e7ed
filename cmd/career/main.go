package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alejandrodnm/careersim/config"
	"github.com/alejandrodnm/careersim/internal/adapters/notify"
	"github.com/alejandrodnm/careersim/internal/adapters/prices"
	"github.com/alejandrodnm/careersim/internal/adapters/storage"
	"github.com/alejandrodnm/careersim/internal/application/engine"
	"github.com/alejandrodnm/careersim/internal/domain"
	"github.com/alejandrodnm/careersim/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "", "new | turn | autoplay | report | ranking")

	player := flag.String("player", "", "player label (mode=new)")
	difficulty := flag.String("difficulty", "", "principiante | intermedio | experto (mode=new)")
	capital := flag.Float64("capital", 0, "starting capital (mode=new)")
	universe := flag.String("universe", "", "comma-separated tickers (mode=new)")
	sectors := flag.String("sectors", "", "TICKER:SECTOR pairs, comma-separated (mode=new)")
	periodStart := flag.String("period-start", "", "manual period start YYYY-MM-DD (mode=new)")
	periodEnd := flag.String("period-end", "", "manual period end YYYY-MM-DD (mode=new)")
	seed := flag.String("seed", "", "explicit event seed (mode=new)")

	sessionID := flag.String("session", "", "session id")
	turnN := flag.Int("turn", 0, "turn number to close (mode=turn)")
	alloc := flag.String("alloc", "", "allocation TICKER:WEIGHT pairs, comma-separated (mode=turn)")
	useDCA := flag.Bool("dca", false, "dollar-cost-average the turn's contribution")

	bench := flag.String("bench", "", "benchmark ticker (mode=report)")
	includeSeries := flag.Bool("include-series", false, "include base-100 series in the report output")
	publish := flag.Bool("publish", false, "publish the score to the ranking (mode=report)")
	limit := flag.Int("limit", 20, "ranking entries to list (mode=ranking)")

	table := flag.Bool("table", false, "print full tables (default: compact lines)")
	dryRun := flag.Bool("dry-run", false, "use deterministic synthetic prices instead of the real API")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	var provider ports.PriceProvider
	if *dryRun {
		provider = prices.NewSynthetic()
	} else {
		provider = prices.NewClient(cfg.Prices.BaseURL, cfg.Prices.RatePerSec, cfg.PriceTimeout())
	}

	store, err := storage.NewSQLite(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	svc := engine.New(provider, store, store, engine.Config{MaxAssets: cfg.Simulation.MaxAssets})
	console := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "new":
		err = runNew(ctx, svc, cfg, newOptions{
			player: *player, difficulty: *difficulty, capital: *capital,
			universe: *universe, sectors: *sectors,
			periodStart: *periodStart, periodEnd: *periodEnd, seed: *seed,
		})
	case "turn":
		err = runTurn(ctx, svc, console, *sessionID, *turnN, *alloc, *useDCA)
	case "autoplay":
		err = runAutoplay(ctx, svc, console, *sessionID, *useDCA)
	case "report":
		benchTicker := *bench
		if benchTicker == "" {
			benchTicker = cfg.Simulation.DefaultBenchmark
		}
		err = runReport(ctx, svc, console, *sessionID, benchTicker, *includeSeries, *publish)
	case "ranking":
		err = runRanking(ctx, svc, console, *limit)
	default:
		fmt.Fprintln(os.Stderr, "usage: career -mode new|turn|autoplay|report|ranking [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err != nil {
		if domain.IsUserCorrectable(err) {
			slog.Warn("request rejected, fix and retry", "err", err)
			os.Exit(1)
		}
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

type newOptions struct {
	player      string
	difficulty  string
	capital     float64
	universe    string
	sectors     string
	periodStart string
	periodEnd   string
	seed        string
}

func runNew(ctx context.Context, svc *engine.Service, cfg *config.Config, opts newOptions) error {
	in := engine.CreateSessionInput{
		Player:     opts.player,
		Difficulty: opts.difficulty,
		Capital:    opts.capital,
		Universe:   splitList(opts.universe),
		Sectors:    parsePairs(opts.sectors),
	}
	if in.Difficulty == "" {
		in.Difficulty = cfg.Simulation.DefaultDifficulty
	}
	if in.Capital <= 0 {
		in.Capital = cfg.Simulation.DefaultCapital
	}
	if opts.seed != "" {
		v, err := strconv.ParseInt(opts.seed, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid -seed %q: %w", opts.seed, err)
		}
		in.Seed = &v
	}
	if opts.periodStart != "" || opts.periodEnd != "" {
		start, err := parseDate(opts.periodStart, "period-start")
		if err != nil {
			return err
		}
		end, err := parseDate(opts.periodEnd, "period-end")
		if err != nil {
			return err
		}
		in.PeriodStart, in.PeriodEnd = &start, &end
	}

	session, err := svc.CreateSession(ctx, in)
	if err != nil {
		return err
	}

	fmt.Printf("session %s: %s, %d turns, %s → %s, capital $%.2f\n",
		session.ID, session.Difficulty, len(session.Turns),
		session.Period.Start.Format("2006-01-02"), session.Period.End.Format("2006-01-02"),
		session.CapitalInitial)
	if len(session.RejectedUniverse) > 0 {
		fmt.Printf("rejected tickers (no data in period): %s\n",
			strings.Join(session.RejectedUniverse, ", "))
	}
	return nil
}

func runTurn(ctx context.Context, svc *engine.Service, console *notify.Console, sessionID string, turnN int, allocArg string, useDCA bool) error {
	if sessionID == "" {
		return fmt.Errorf("-session is required")
	}
	alloc, err := parseAllocation(allocArg)
	if err != nil {
		return err
	}
	if turnN == 0 {
		// comodidad: sin -turn se cierra el turno pendiente
		session, err := svc.LoadSession(ctx, sessionID)
		if err != nil {
			return err
		}
		pending := session.PendingTurn()
		if pending == nil {
			return domain.ErrSessionClosed
		}
		turnN = pending.N
	}

	res, err := svc.CloseTurn(ctx, engine.CloseTurnInput{
		SessionID: sessionID, TurnN: turnN, Alloc: alloc, UseDCA: useDCA,
	})
	if err != nil {
		return err
	}
	return console.NotifySnapshot(ctx, res.Session, &res.Snapshot)
}

func runAutoplay(ctx context.Context, svc *engine.Service, console *notify.Console, sessionID string, useDCA bool) error {
	if sessionID == "" {
		return fmt.Errorf("-session is required")
	}
	snapshots, err := svc.Autoplay(ctx, sessionID, useDCA)
	if len(snapshots) > 0 {
		if session, lerr := svc.LoadSession(ctx, sessionID); lerr == nil {
			last := snapshots[len(snapshots)-1]
			_ = console.NotifySnapshot(ctx, session, &last)
		}
	}
	if err != nil {
		return err
	}
	slog.Info("autoplay finished", "session", sessionID, "turns_closed", len(snapshots))
	return nil
}

func runReport(ctx context.Context, svc *engine.Service, console *notify.Console, sessionID, bench string, includeSeries, publish bool) error {
	if sessionID == "" {
		return fmt.Errorf("-session is required")
	}
	report, err := svc.Report(ctx, engine.ReportInput{
		SessionID: sessionID, BenchmarkTicker: bench, IncludeSeries: includeSeries,
	})
	if err != nil {
		return err
	}
	if err := console.NotifyReport(ctx, report); err != nil {
		return err
	}
	if publish {
		entry, err := svc.Publish(ctx, sessionID, bench)
		if err != nil {
			return err
		}
		slog.Info("score published", "session", entry.SessionID, "score", entry.Score)
	}
	return nil
}

func runRanking(ctx context.Context, svc *engine.Service, console *notify.Console, limit int) error {
	entries, err := svc.Ranking(ctx, limit)
	if err != nil {
		return err
	}
	return console.NotifyRanking(ctx, entries)
}

// parseAllocation lee "AAPL:0.5,MSFT:0.3" como Allocation.
func parseAllocation(raw string) (domain.Allocation, error) {
	var alloc domain.Allocation
	for _, part := range splitList(raw) {
		ticker, weightStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid -alloc entry %q, want TICKER:WEIGHT", part)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight in -alloc entry %q: %w", part, err)
		}
		alloc = append(alloc, domain.Position{Ticker: ticker, Weight: weight})
	}
	return alloc, nil
}

// parsePairs lee "AAPL:tech,XOM:energy" como map.
func parsePairs(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitList(raw) {
		k, v, ok := strings.Cut(part, ":")
		if ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("-%s is required when using a manual period", field)
	}
	d, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -%s %q: %w", field, value, err)
	}
	return d, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
