package prices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/careersim/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// --- parseDailyCSV ---

func TestParseDailyCSV_StooqFormat(t *testing.T) {
	body := []byte(`Date,Open,High,Low,Close,Volume
2020-01-06,296.24,299.96,292.75,299.80,29644900
2020-01-07,299.84,300.90,297.48,298.39,27877700
`)
	series, err := parseDailyCSV(body)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, day(2020, 1, 6), series[0].Date)
	assert.Equal(t, 299.80, series[0].Value)
	assert.Equal(t, 298.39, series[1].Value)
}

func TestParseDailyCSV_SkipsBadRows(t *testing.T) {
	body := []byte(`Date,Open,High,Low,Close
2020-01-06,1,1,1,100.5
no-es-fecha,1,1,1,100.5
2020-01-07,1,1,1,N/D
2020-01-08,1,1,1,0
2020-01-09,1,1,1,101.25
`)
	series, err := parseDailyCSV(body)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 100.5, series[0].Value)
	assert.Equal(t, 101.25, series[1].Value)
}

func TestParseDailyCSV_Empty(t *testing.T) {
	series, err := parseDailyCSV(nil)
	require.NoError(t, err)
	assert.Empty(t, series)
}

// --- stooqSymbol ---

func TestStooqSymbol(t *testing.T) {
	assert.Equal(t, "aapl.us", stooqSymbol("AAPL"))
	assert.Equal(t, "aapl.us", stooqSymbol(" aapl "))
	assert.Equal(t, "^spx", stooqSymbol("^SPX"))
	assert.Equal(t, "btc.v", stooqSymbol("BTC.V"), "sufijo explícito se respeta")
}

// --- Client ---

func TestClient_SeriesAndCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "aapl.us", r.URL.Query().Get("s"))
		assert.Equal(t, "20200106", r.URL.Query().Get("d1"))
		w.Write([]byte("Date,Open,High,Low,Close\n2020-01-06,1,1,1,100\n2020-01-07,1,1,1,102\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 100, time.Second)
	series, err := c.Series(context.Background(), "AAPL", day(2020, 1, 6), day(2020, 1, 7))
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 100.0, series[0].Value)

	// segunda petición idéntica: servida desde caché
	_, err = c.Series(context.Background(), "AAPL", day(2020, 1, 6), day(2020, 1, 7))
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestClient_NotFoundIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 100, time.Second)
	_, err := c.Series(context.Background(), "NOPE", day(2020, 1, 6), day(2020, 1, 7))
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestClient_EmptyCSVIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("Date,Open,High,Low,Close\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 100, time.Second)
	_, err := c.Series(context.Background(), "GHOST", day(2020, 1, 6), day(2020, 1, 7))
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestClient_RetriesOn5xx(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("Date,Open,High,Low,Close\n2020-01-06,1,1,1,100\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 100, time.Second)
	series, err := c.Series(context.Background(), "AAPL", day(2020, 1, 6), day(2020, 1, 7))
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 2, hits)
}

// --- Memory ---

func TestMemory_ClipsToRange(t *testing.T) {
	m := NewMemory(map[string]domain.Series{
		"aapl": Flat(100, day(2020, 1, 1), day(2020, 3, 31)),
	})
	series, err := m.Series(context.Background(), "AAPL", day(2020, 2, 1), day(2020, 2, 29))
	require.NoError(t, err)
	for _, p := range series {
		assert.False(t, p.Date.Before(day(2020, 2, 1)))
		assert.False(t, p.Date.After(day(2020, 2, 29)))
	}
}

func TestMemory_UnknownTicker(t *testing.T) {
	m := NewMemory(nil)
	_, err := m.Series(context.Background(), "NOPE", day(2020, 1, 1), day(2020, 1, 31))
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestLinear_WeekdaysOnly(t *testing.T) {
	// 2020-01-06 es lunes: dos semanas completas son 10 días hábiles
	s := Linear(100, 109, day(2020, 1, 6), day(2020, 1, 17))
	require.Len(t, s, 10)
	assert.Equal(t, 100.0, s[0].Value)
	assert.Equal(t, 109.0, s[9].Value)
	for _, p := range s {
		wd := p.Date.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
}

// --- Synthetic ---

func TestSynthetic_Deterministic(t *testing.T) {
	p := NewSynthetic()
	a, err := p.Series(context.Background(), "AAPL", day(2020, 1, 6), day(2020, 3, 31))
	require.NoError(t, err)
	b, err := p.Series(context.Background(), "AAPL", day(2020, 1, 6), day(2020, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := p.Series(context.Background(), "MSFT", day(2020, 1, 6), day(2020, 3, 31))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSynthetic_PriceIndependentOfRequestedRange(t *testing.T) {
	p := NewSynthetic()
	wide, err := p.Series(context.Background(), "AAPL", day(2020, 1, 6), day(2020, 6, 30))
	require.NoError(t, err)
	narrow, err := p.Series(context.Background(), "AAPL", day(2020, 3, 2), day(2020, 3, 31))
	require.NoError(t, err)

	require.NotEmpty(t, narrow)
	assert.Equal(t, wide.Within(day(2020, 3, 2), day(2020, 3, 31)), narrow)
}

func TestSynthetic_PositivePrices(t *testing.T) {
	p := NewSynthetic()
	s, err := p.Series(context.Background(), "ZZZZ", day(2000, 1, 3), day(2001, 1, 3))
	require.NoError(t, err)
	for _, pt := range s {
		assert.Greater(t, pt.Value, 0.0)
	}
}
