package domain

// Difficulty tags accepted by the engine.
const (
	DifficultyBeginner     = "principiante"
	DifficultyIntermediate = "intermedio"
	DifficultyExpert       = "experto"
)

// DifficultyConfig defines one career tier: how long the simulated period
// is, how large each turn is, how violent the market shocks are, and the
// thresholds the final score is measured against.
type DifficultyConfig struct {
	MinYears int
	MaxYears int
	// TurnMonths is the calendar length of one turn.
	TurnMonths int
	// ShockProbability is the per-turn chance of drawing one event.
	ShockProbability float64
	// ShockMin/ShockMax bound the (negative) impact band. Positive shocks
	// use the mirrored band.
	ShockMin float64
	ShockMax float64
	// TargetCAGR saturates the CAGR score ramp: at or above it the CAGR
	// component is maxed, at -TargetCAGR it is zero.
	TargetCAGR float64
	// DrawdownTolerance is the drawdown magnitude at which the drawdown
	// component reaches zero.
	DrawdownTolerance float64
}

// Difficulties holds the three career tiers. Patient tiers see rare, mild
// shocks; the expert tier plays monthly turns under frequent, harsher ones.
var Difficulties = map[string]DifficultyConfig{
	DifficultyBeginner: {
		MinYears: 10, MaxYears: 15,
		TurnMonths:       12,
		ShockProbability: 0.12,
		ShockMin:         -0.03, ShockMax: -0.012,
		TargetCAGR:        0.08,
		DrawdownTolerance: 0.25,
	},
	DifficultyIntermediate: {
		MinYears: 3, MaxYears: 7,
		TurnMonths:       6,
		ShockProbability: 0.22,
		ShockMin:         -0.045, ShockMax: -0.018,
		TargetCAGR:        0.10,
		DrawdownTolerance: 0.30,
	},
	DifficultyExpert: {
		MinYears: 1, MaxYears: 2,
		TurnMonths:       1,
		ShockProbability: 0.35,
		ShockMin:         -0.06, ShockMax: -0.025,
		TargetCAGR:        0.12,
		DrawdownTolerance: 0.40,
	},
}

// ValidDifficulty reports whether tag names a known tier.
func ValidDifficulty(tag string) bool {
	_, ok := Difficulties[tag]
	return ok
}
