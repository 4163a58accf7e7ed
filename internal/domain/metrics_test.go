package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ComputeEquityMetrics ---

func TestComputeEquityMetrics_OneYearGain(t *testing.T) {
	curve := Series{
		{Date: day(2020, 1, 1), Value: 100},
		{Date: day(2021, 1, 1), Value: 110},
	}
	m := ComputeEquityMetrics(curve)
	assert.InDelta(t, 0.10, m.TotalReturn, 1e-9)
	// 366 días transcurridos: (1.1)^(365/366)-1
	assert.InDelta(t, math.Pow(1.1, 365.0/366)-1, m.CAGR, 1e-9)
	assert.Equal(t, 0.0, m.MaxDrawdown)
}

func TestComputeEquityMetrics_MaxDrawdown(t *testing.T) {
	curve := dailySeries(day(2020, 1, 1), 100, 120, 90, 110)
	m := ComputeEquityMetrics(curve)
	// pico 120, valle 90: 90/120-1 = -0.25
	assert.InDelta(t, -0.25, m.MaxDrawdown, 1e-12)
	assert.InDelta(t, 0.10, m.TotalReturn, 1e-12)
}

func TestComputeEquityMetrics_FlatCurveZeroVol(t *testing.T) {
	curve := dailySeries(day(2020, 1, 1), 100, 100, 100, 100)
	m := ComputeEquityMetrics(curve)
	assert.Equal(t, 0.0, m.VolAnnual)
	assert.Equal(t, 0.0, m.TotalReturn)
	assert.Equal(t, 0.0, m.MaxDrawdown)
}

func TestComputeEquityMetrics_WipeoutClampsCAGR(t *testing.T) {
	curve := dailySeries(day(2020, 1, 1), 100, 50, 0)
	m := ComputeEquityMetrics(curve)
	assert.Equal(t, -1.0, m.CAGR)
	assert.Equal(t, -1.0, m.TotalReturn)
	assert.Equal(t, -1.0, m.MaxDrawdown)
	assert.False(t, math.IsNaN(m.VolAnnual))
	assert.False(t, math.IsInf(m.VolAnnual, 0))
}

func TestComputeEquityMetrics_TooShort(t *testing.T) {
	assert.Equal(t, EquityMetrics{}, ComputeEquityMetrics(nil))
	assert.Equal(t, EquityMetrics{}, ComputeEquityMetrics(dailySeries(day(2020, 1, 1), 100)))
}

// --- ComputeTracking ---

func TestComputeTracking_IdenticalCurvesNilIR(t *testing.T) {
	curve := dailySeries(day(2020, 1, 1), 100, 102, 101, 104, 106)
	stats := ComputeTracking(curve, curve)
	assert.Equal(t, 0.0, stats.ActiveReturn)
	assert.Equal(t, 0.0, stats.TrackingError)
	assert.Nil(t, stats.InformationRatio, "TE cero: el IR queda indefinido")
}

func TestComputeTracking_OutperformancePositiveIR(t *testing.T) {
	portfolio := dailySeries(day(2020, 1, 1), 100, 102, 101, 104, 106)
	benchmark := dailySeries(day(2020, 1, 1), 100, 101, 100, 102, 103)
	stats := ComputeTracking(portfolio, benchmark)

	assert.InDelta(t, 0.03, stats.ActiveReturn, 1e-9)
	assert.Greater(t, stats.TrackingError, 0.0)
	require.NotNil(t, stats.InformationRatio)
	assert.Greater(t, *stats.InformationRatio, 0.0)
}

func TestComputeTracking_AlignsOnCommonDates(t *testing.T) {
	portfolio := dailySeries(day(2020, 1, 1), 100, 102, 104)
	// el benchmark salta el día 2: solo quedan los días 1 y 3 en común
	benchmark := Series{
		{Date: day(2020, 1, 1), Value: 100},
		{Date: day(2020, 1, 3), Value: 103},
	}
	stats := ComputeTracking(portfolio, benchmark)
	// un solo diff: TE de muestra insuficiente es 0 y el IR queda nil
	assert.Equal(t, 0.0, stats.TrackingError)
	assert.Nil(t, stats.InformationRatio)
}

// --- Score ---

func TestScore_MonotonicInCAGR(t *testing.T) {
	cfg := Difficulties[DifficultyIntermediate]
	prev := -1.0
	for cagr := -0.20; cagr <= 0.20; cagr += 0.01 {
		m := EquityMetrics{CAGR: cagr, MaxDrawdown: -0.10}
		score, stars := Score(m, nil, cfg)
		assert.GreaterOrEqual(t, score, prev, "cagr=%.2f", cagr)
		assert.GreaterOrEqual(t, stars, 1)
		assert.LessOrEqual(t, stars, 5)
		prev = score
	}
}

func TestScore_MonotonicInDrawdown(t *testing.T) {
	cfg := Difficulties[DifficultyIntermediate]
	prev := -1.0
	for dd := -0.50; dd <= 0.0; dd += 0.05 {
		m := EquityMetrics{CAGR: 0.05, MaxDrawdown: dd}
		score, _ := Score(m, nil, cfg)
		assert.GreaterOrEqual(t, score, prev, "dd=%.2f", dd)
		prev = score
	}
}

func TestScore_Bounds(t *testing.T) {
	cfg := Difficulties[DifficultyExpert]

	ir := 5.0
	best, stars := Score(EquityMetrics{CAGR: 1.0, MaxDrawdown: 0}, &ir, cfg)
	assert.Equal(t, 10.0, best)
	assert.Equal(t, 5, stars)

	irBad := -5.0
	worst, stars := Score(EquityMetrics{CAGR: -1.0, MaxDrawdown: -0.9}, &irBad, cfg)
	assert.Equal(t, 0.0, worst)
	assert.Equal(t, 1, stars)
}

func TestScore_NilIRScoresMidpoint(t *testing.T) {
	cfg := Difficulties[DifficultyIntermediate]
	m := EquityMetrics{CAGR: 0, MaxDrawdown: 0}

	zero := 0.0
	withZeroIR, _ := Score(m, &zero, cfg)
	withNilIR, _ := Score(m, nil, cfg)
	assert.Equal(t, withZeroIR, withNilIR)
}

func TestScore_Deterministic(t *testing.T) {
	cfg := Difficulties[DifficultyBeginner]
	ir := 0.3
	m := EquityMetrics{CAGR: 0.065, MaxDrawdown: -0.12}
	a, _ := Score(m, &ir, cfg)
	b, _ := Score(m, &ir, cfg)
	assert.Equal(t, a, b)
}

// --- helpers ---

func TestStdev_Sample(t *testing.T) {
	// muestra {2,4,4,4,5,5,7,9}: varianza muestral 32/7
	got := stdev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, math.Sqrt(32.0/7), got, 1e-12)
}

func TestStdev_TooFew(t *testing.T) {
	assert.Equal(t, 0.0, stdev(nil))
	assert.Equal(t, 0.0, stdev([]float64{1.5}))
}

func TestRamp(t *testing.T) {
	assert.Equal(t, 0.0, ramp(-2, -1, 1))
	assert.Equal(t, 1.0, ramp(2, -1, 1))
	assert.Equal(t, 0.5, ramp(0, -1, 1))
	assert.InDelta(t, 0.75, ramp(0.5, -1, 1), 1e-12)
}
