package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- AddMonths ---

func TestAddMonths_ClampsDay(t *testing.T) {
	// 31 de enero + 1 mes = fin de febrero, no el 2/3 de marzo
	assert.Equal(t, day(2021, 2, 28), AddMonths(day(2021, 1, 31), 1))
	assert.Equal(t, day(2020, 2, 29), AddMonths(day(2020, 1, 31), 1)) // bisiesto
	assert.Equal(t, day(2021, 4, 30), AddMonths(day(2021, 1, 31), 3))
}

func TestAddMonths_CrossesYears(t *testing.T) {
	assert.Equal(t, day(2021, 3, 15), AddMonths(day(2020, 11, 15), 4))
	assert.Equal(t, day(2019, 11, 15), AddMonths(day(2020, 3, 15), -4))
	assert.Equal(t, day(2018, 1, 10), AddMonths(day(2020, 1, 10), -24))
}

func TestAddMonths_Zero(t *testing.T) {
	d := day(2020, 6, 15)
	assert.Equal(t, d, AddMonths(d, 0))
}

// --- BuildTurnSchedule ---

func TestBuildTurnSchedule_SixMonthTurns(t *testing.T) {
	turns := BuildTurnSchedule(day(2015, 3, 10), day(2018, 3, 9), 6)
	require.Len(t, turns, 6)

	assert.Equal(t, 1, turns[0].N)
	assert.Equal(t, day(2015, 3, 10), turns[0].Start)
	assert.Equal(t, day(2015, 9, 9), turns[0].End)
	assert.Equal(t, TurnPending, turns[0].Status)

	// los turnos son contiguos sin huecos ni solapes
	for i := 1; i < len(turns); i++ {
		assert.Equal(t, i+1, turns[i].N)
		assert.Equal(t, turns[i-1].End.AddDate(0, 0, 1), turns[i].Start)
	}
	assert.Equal(t, day(2018, 3, 9), turns[len(turns)-1].End)
}

func TestBuildTurnSchedule_TruncatesFinalTurn(t *testing.T) {
	turns := BuildTurnSchedule(day(2020, 1, 1), day(2020, 4, 15), 3)
	require.Len(t, turns, 2)
	assert.Equal(t, day(2020, 3, 31), turns[0].End)
	assert.Equal(t, day(2020, 4, 1), turns[1].Start)
	assert.Equal(t, day(2020, 4, 15), turns[1].End)
}

// --- GeneratePeriod ---

func TestGeneratePeriod_WithinBounds(t *testing.T) {
	today := day(2025, 6, 1)
	for _, diff := range []string{DifficultyBeginner, DifficultyIntermediate, DifficultyExpert} {
		cfg := Difficulties[diff]
		for seed := int64(0); seed < 20; seed++ {
			start, end, turns := GeneratePeriod(cfg, rand.New(rand.NewSource(seed)), today)

			assert.False(t, start.Before(BaseStartDate), "%s seed %d: start before base", diff, seed)
			assert.False(t, end.After(today), "%s seed %d: end after today", diff, seed)
			assert.True(t, start.Before(end), "%s seed %d", diff, seed)
			require.NotEmpty(t, turns, "%s seed %d", diff, seed)
			assert.Equal(t, start, turns[0].Start)
			assert.Equal(t, end, turns[len(turns)-1].End)
		}
	}
}

func TestGeneratePeriod_Deterministic(t *testing.T) {
	cfg := Difficulties[DifficultyIntermediate]
	today := day(2025, 6, 1)
	s1, e1, t1 := GeneratePeriod(cfg, rand.New(rand.NewSource(7)), today)
	s2, e2, t2 := GeneratePeriod(cfg, rand.New(rand.NewSource(7)), today)
	assert.Equal(t, s1, s2)
	assert.Equal(t, e1, e2)
	assert.Equal(t, t1, t2)
}

// --- SeedFromPlayer ---

func TestSeedFromPlayer_StablePerDay(t *testing.T) {
	today := day(2025, 6, 1)
	a := SeedFromPlayer("ana", today)
	b := SeedFromPlayer("ana", today)
	c := SeedFromPlayer("ana", today.AddDate(0, 0, 1))
	d := SeedFromPlayer("bob", today)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestSeedFromPlayer_EmptyPlayerIsAnon(t *testing.T) {
	today := day(2025, 6, 1)
	assert.Equal(t, SeedFromPlayer("anon", today), SeedFromPlayer("", today))
}

// --- Session helpers ---

func makeSession() *Session {
	closedAt := day(2021, 1, 5)
	return &Session{
		ID:             "car_abc123",
		Player:         "ana",
		Difficulty:     DifficultyIntermediate,
		CapitalInitial: 10000,
		CapitalCurrent: 10250,
		Period:         Period{Start: day(2020, 1, 1), End: day(2020, 12, 31)},
		Turns: []Turn{
			{N: 1, Start: day(2020, 1, 1), End: day(2020, 6, 30), Status: TurnClosed, ClosedAt: &closedAt},
			{N: 2, Start: day(2020, 7, 1), End: day(2020, 12, 31), Status: TurnPending},
		},
		Snapshots: []Snapshot{{
			TurnN:         1,
			Alloc:         Allocation{{Ticker: "AAPL", Weight: 0.5}},
			TickerReturns: map[string]float64{"AAPL": 0.05},
		}},
		Universe: []string{"AAPL", "MSFT"},
		Sectors:  map[string]string{"AAPL": "tech"},
	}
}

func TestSession_PendingTurn(t *testing.T) {
	s := makeSession()
	pending := s.PendingTurn()
	require.NotNil(t, pending)
	assert.Equal(t, 2, pending.N)

	s.Turns[1].Status = TurnClosed
	assert.Nil(t, s.PendingTurn())
}

func TestSession_ClosedTurns(t *testing.T) {
	assert.Equal(t, 1, makeSession().ClosedTurns())
}

func TestSession_InUniverse(t *testing.T) {
	s := makeSession()
	assert.True(t, s.InUniverse("AAPL"))
	assert.False(t, s.InUniverse("GOOG"))
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := makeSession()
	dup := s.Clone()

	dup.Turns[1].Status = TurnClosed
	dup.Snapshots[0].TickerReturns["AAPL"] = 0.99
	dup.Snapshots[0].Alloc[0].Weight = 0.9
	dup.Universe[0] = "XXXX"
	dup.Sectors["AAPL"] = "other"
	*dup.Turns[0].ClosedAt = time.Time{}

	assert.Equal(t, TurnPending, s.Turns[1].Status)
	assert.Equal(t, 0.05, s.Snapshots[0].TickerReturns["AAPL"])
	assert.Equal(t, 0.5, s.Snapshots[0].Alloc[0].Weight)
	assert.Equal(t, "AAPL", s.Universe[0])
	assert.Equal(t, "tech", s.Sectors["AAPL"])
	assert.False(t, s.Turns[0].ClosedAt.IsZero())
}

func TestSession_CloneNil(t *testing.T) {
	var s *Session
	assert.Nil(t, s.Clone())
}
