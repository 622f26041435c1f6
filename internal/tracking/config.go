package tracking

import "time"

// Config holds every engine tunable. The values are empirically tuned in
// production; treat them as configuration, not law. DefaultConfig returns
// the shipping set and the daemon config may override any field.
type Config struct {
	// Location validation
	MaxJumpM       float64       // reject fixes implying a larger straight-line hop
	MinFixInterval time.Duration // reject fixes arriving closer together than this
	MaxSpeedMps    float64       // reject fixes implying a faster pace than a hard ruck

	// Elevation filtering
	ElevationNoiseM    float64 // ignore altitude deltas smaller than this
	ElevationMaxDeltaM float64 // discard altitude deltas larger than this as sensor error

	// Timing
	TickInterval      time.Duration // primary tick period
	WatchdogInterval  time.Duration // watchdog period
	WatchdogTolerance time.Duration // gap beyond which the watchdog replays ticks
	GPSLostAfter      time.Duration // flag signal loss after this long without an accepted fix

	// Crash snapshots
	SnapshotInterval time.Duration // minimum spacing between crash-snapshot writes
	SnapshotMaxAge   time.Duration // recovery ignores snapshots older than this

	// Tracking-mode heuristic
	ModeEvalEvery    int     // evaluate movement every N elapsed seconds
	StationaryMps    float64 // below this window speed: powersave
	SlowWalkMps      float64 // below this window speed: balanced
	MinHRSamplePer30 int     // HR samples required per 30s of activity before fusion kicks in

	Calories CalorieParams
}

// CalorieParams are the coefficients of the mechanical energy model plus
// the load-correction curve. See calories.go for how they combine.
type CalorieParams struct {
	StandingCoef float64 // watts per kg of body mass while standing
	LoadCoef     float64 // load carriage term weight
	SpeedCoef    float64 // speed-squared term weight
	GradeCoef    float64 // speed-times-grade term weight
	SpeedCapMps  float64 // model input speed ceiling
	GradeMinPct  float64 // grade clamp floor
	GradeMaxPct  float64 // grade clamp ceiling

	// Correction for underestimation at higher relative loads and speeds.
	AdjPerLoadRatio float64 // adjustment gained per unit of load/body ratio
	AdjCap          float64 // adjustment ceiling (fraction of base power)
	AdjFloorKmh     float64 // no adjustment below this speed

	WattsFloor float64 // clamp of the final power estimate
	WattsCeil  float64

	// Heart-rate fusion
	FusionBandPct float64 // HR estimate may move the result at most this fraction
	UserAge       int     // profile inputs for the HR model
	UserGender    string  // "male", "female" or empty for unknown
}

func DefaultConfig() Config {
	return Config{
		MaxJumpM:       100,             // GPS multipath spikes
		MinFixInterval: time.Second,     // duplicate / rapid-fire fixes
		MaxSpeedMps:    4.5,             // faster than any sustained ruck

		ElevationNoiseM:    2.0, // barometric jitter
		ElevationMaxDeltaM: 100, // sensor error, not terrain

		TickInterval:      time.Second,
		WatchdogInterval:  5 * time.Second,
		WatchdogTolerance: 2 * time.Second,
		GPSLostAfter:      15 * time.Second,

		SnapshotInterval: 10 * time.Second,
		SnapshotMaxAge:   6 * time.Hour,

		ModeEvalEvery:    30,
		StationaryMps:    0.2,
		SlowWalkMps:      0.9,
		MinHRSamplePer30: 1,

		Calories: DefaultCalorieParams(),
	}
}

func DefaultCalorieParams() CalorieParams {
	return CalorieParams{
		StandingCoef:    1.5,
		LoadCoef:        2.0,
		SpeedCoef:       1.5,
		GradeCoef:       0.35,
		SpeedCapMps:     3.0,
		GradeMinPct:     -20,
		GradeMaxPct:     30,
		AdjPerLoadRatio: 0.45,
		AdjCap:          0.15,
		AdjFloorKmh:     3.2,
		WattsFloor:      50,
		WattsCeil:       800,
		FusionBandPct:   0.15,
		UserAge:         30,
	}
}
