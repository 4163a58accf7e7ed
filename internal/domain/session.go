package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strconv"
	"time"
)

// BaseStartDate is the earliest date a career period may begin. Price
// history before it is too sparse to be playable.
var BaseStartDate = time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)

// TurnStatus is the lifecycle state of one turn.
type TurnStatus string

const (
	TurnPending TurnStatus = "pending"
	TurnClosed  TurnStatus = "closed"
)

// Period is an inclusive date range, UTC midnight dates.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Turn is one simulation round covering a contiguous sub-range of the
// session period. Once closed it is immutable.
type Turn struct {
	N        int        `json:"n"` // 1-based, monotonic
	Start    time.Time  `json:"start"`
	End      time.Time  `json:"end"`
	Status   TurnStatus `json:"status"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// Decision is the allocation the player submitted for one turn.
type Decision struct {
	TurnN  int        `json:"turn_n"`
	Alloc  Allocation `json:"alloc"`
	UseDCA bool       `json:"use_dca"`
}

// Snapshot is the immutable computed result of closing one turn.
type Snapshot struct {
	TurnN            int                `json:"turn_n"`
	Range            Period             `json:"range"`
	Alloc            Allocation         `json:"alloc"`
	UseDCA           bool               `json:"use_dca"`
	TickerReturns    map[string]float64 `json:"ticker_returns"`
	TurnReturnMarket float64            `json:"turn_return_market"`
	TurnReturn       float64            `json:"turn_return"` // after events
	PortfolioValue   float64            `json:"portfolio_value"`
	EventsApplied    []Event            `json:"events_applied"`
	EventsNew        []Event            `json:"events_new"`
	NextSuggested    Allocation         `json:"next_suggested"`

	// DCA accounting, relative to total contributed capital.
	DCAInTurn     float64 `json:"dca_in_turn"`
	InvestedSoFar float64 `json:"invested_so_far"`
	PnLAbs        float64 `json:"pnl_abs"`
	PnLPct        float64 `json:"pnl_pct"`
	CumReturnNet  float64 `json:"cum_return_net"`
	DeltaVsPrev   float64 `json:"delta_vs_prev"`
}

// Session owns the full state of one career: the turn schedule, the running
// capital, and the complete decision/snapshot history.
type Session struct {
	ID               string            `json:"session_id"`
	Player           string            `json:"player"`
	Difficulty       string            `json:"difficulty"`
	CapitalInitial   float64           `json:"capital_initial"`
	CapitalCurrent   float64           `json:"capital_current"`
	Period           Period            `json:"period"`
	Turns            []Turn            `json:"turns"`
	Decisions        []Decision        `json:"decisions"`
	Snapshots        []Snapshot        `json:"snapshots"`
	Universe         []string          `json:"universe"`
	RejectedUniverse []string          `json:"rejected_universe,omitempty"`
	Sectors          map[string]string `json:"sectors,omitempty"` // ticker → sector
	Seed             int64             `json:"seed"`
	CreatedAt        time.Time         `json:"created_at"`
	Closed           bool              `json:"closed"`
	ContribSoFar     float64           `json:"contrib_so_far"`
	CumReturn        float64           `json:"cum_return"`
	ActiveEvents     []Event           `json:"active_events"`
	EventsLog        []Event           `json:"events_log"`
}

// PendingTurn returns a pointer to the first pending turn, or nil when every
// turn is closed.
func (s *Session) PendingTurn() *Turn {
	for i := range s.Turns {
		if s.Turns[i].Status == TurnPending {
			return &s.Turns[i]
		}
	}
	return nil
}

// ClosedTurns counts turns already closed.
func (s *Session) ClosedTurns() int {
	n := 0
	for _, t := range s.Turns {
		if t.Status == TurnClosed {
			n++
		}
	}
	return n
}

// LastSnapshot returns the most recent snapshot, or nil before the first
// close.
func (s *Session) LastSnapshot() *Snapshot {
	if len(s.Snapshots) == 0 {
		return nil
	}
	return &s.Snapshots[len(s.Snapshots)-1]
}

// InUniverse reports whether ticker is already part of the session universe.
func (s *Session) InUniverse(ticker string) bool {
	for _, t := range s.Universe {
		if t == ticker {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Stores and engines hand out clones so callers
// can never mutate committed state through a shared pointer.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Turns = append([]Turn(nil), s.Turns...)
	for i := range dup.Turns {
		if s.Turns[i].ClosedAt != nil {
			t := *s.Turns[i].ClosedAt
			dup.Turns[i].ClosedAt = &t
		}
	}
	dup.Decisions = make([]Decision, len(s.Decisions))
	for i, d := range s.Decisions {
		dup.Decisions[i] = Decision{TurnN: d.TurnN, Alloc: d.Alloc.Clone(), UseDCA: d.UseDCA}
	}
	dup.Snapshots = make([]Snapshot, len(s.Snapshots))
	for i, snap := range s.Snapshots {
		c := snap
		c.Alloc = snap.Alloc.Clone()
		c.NextSuggested = snap.NextSuggested.Clone()
		c.TickerReturns = make(map[string]float64, len(snap.TickerReturns))
		for k, v := range snap.TickerReturns {
			c.TickerReturns[k] = v
		}
		c.EventsApplied = append([]Event(nil), snap.EventsApplied...)
		c.EventsNew = append([]Event(nil), snap.EventsNew...)
		dup.Snapshots[i] = c
	}
	dup.Universe = append([]string(nil), s.Universe...)
	dup.RejectedUniverse = append([]string(nil), s.RejectedUniverse...)
	if s.Sectors != nil {
		dup.Sectors = make(map[string]string, len(s.Sectors))
		for k, v := range s.Sectors {
			dup.Sectors[k] = v
		}
	}
	dup.ActiveEvents = append([]Event(nil), s.ActiveEvents...)
	dup.EventsLog = append([]Event(nil), s.EventsLog...)
	return &dup
}

// AddMonths moves a civil date by n calendar months, clamping the day to the
// target month's length (Jan 31 + 1 month = Feb 28/29). time.AddDate rolls
// over instead, which would desync the turn schedule.
func AddMonths(d time.Time, months int) time.Time {
	if months == 0 {
		return d
	}
	total := int(d.Month()) - 1 + months
	year := d.Year() + floorDiv(total, 12)
	month := time.Month(mod(total, 12) + 1)
	day := d.Day()
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// BuildTurnSchedule partitions [start, end] into contiguous turns of
// stepMonths calendar months each; the final turn is truncated at end.
func BuildTurnSchedule(start, end time.Time, stepMonths int) []Turn {
	var turns []Turn
	turnStart := start
	n := 1
	for !turnStart.After(end) {
		nextStart := AddMonths(turnStart, stepMonths)
		turnEnd := nextStart.AddDate(0, 0, -1)
		if turnEnd.After(end) {
			turnEnd = end
		}
		turns = append(turns, Turn{N: n, Start: turnStart, End: turnEnd, Status: TurnPending})
		if nextStart.After(end) {
			break
		}
		turnStart = nextStart
		n++
	}
	return turns
}

// GeneratePeriod draws a random historical window for the tier: a random
// span within the tier's year range, randomly offset after BaseStartDate and
// clamped so it never extends past today.
func GeneratePeriod(cfg DifficultyConfig, rng *rand.Rand, today time.Time) (start, end time.Time, turns []Turn) {
	periodYears := cfg.MinYears
	if cfg.MaxYears > cfg.MinYears {
		periodYears += rng.Intn(cfg.MaxYears - cfg.MinYears + 1)
	}
	totalMonths := periodYears * 12

	latestStart := AddMonths(today, -totalMonths)
	if latestStart.Before(BaseStartDate) {
		latestStart = BaseStartDate
	}
	spanDays := int(latestStart.Sub(BaseStartDate).Hours() / 24)
	offset := 0
	if spanDays > 0 {
		offset = rng.Intn(spanDays + 1)
	}
	start = BaseStartDate.AddDate(0, 0, offset)

	end = AddMonths(start, totalMonths).AddDate(0, 0, -1)
	if end.After(today) {
		end = today
	}
	turns = BuildTurnSchedule(start, end, cfg.TurnMonths)
	if len(turns) == 0 {
		end = today
		turns = BuildTurnSchedule(start, end, cfg.TurnMonths)
	}
	return start, end, turns
}

// SeedFromPlayer derives a stable per-player, per-day seed so two sessions
// created by the same player on the same day replay the same event sequence.
func SeedFromPlayer(player string, today time.Time) int64 {
	if player == "" {
		player = "anon"
	}
	base := player + "_" + today.UTC().Format("2006-01-02")
	digest := sha256.Sum256([]byte(base))
	hexDigest := hex.EncodeToString(digest[:])[:16]
	v, err := strconv.ParseUint(hexDigest, 16, 64)
	if err != nil {
		return 0
	}
	return int64(v)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func daysInMonth(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
