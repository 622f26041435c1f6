package tracking

import (
	"math"

	"github.com/orourkera/go-ruck-yourself-sub003/internal/shared/geo"
)

// distanceM returns the straight-line meters between two fixes.
func distanceM(a, b LocationPoint) float64 {
	return geo.HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng) * 1000
}

// aggregator folds accepted inputs into running totals. It is not safe for
// concurrent use; the machine's event loop is its only caller.
type aggregator struct {
	cfg       Config
	estimator CalorieEstimator

	bodyMassKg float64
	loadMassKg float64

	distanceKm float64
	elevGainM  float64
	elevLossM  float64
	lastAltM   *float64

	paceMinPerKm float64
	calories     float64

	hrSum   int
	hrCount int
	hrMax   int
}

func newAggregator(cfg Config, est CalorieEstimator, bodyKg, loadKg float64) *aggregator {
	return &aggregator{cfg: cfg, estimator: est, bodyMassKg: bodyKg, loadMassKg: loadKg}
}

// addPoint accumulates distance against the previous accepted fix and folds
// the altitude delta through the noise gate. prev is nil for the first fix
// of a session. Altitude is tracked independently of the fix sequence since
// not every fix carries one.
func (a *aggregator) addPoint(prev *LocationPoint, p LocationPoint) {
	if prev != nil {
		a.distanceKm += geo.HaversineKm(prev.Lat, prev.Lng, p.Lat, p.Lng)
	}
	if p.AltitudeM == nil {
		return
	}
	alt := *p.AltitudeM
	if a.lastAltM != nil {
		delta := alt - *a.lastAltM
		mag := math.Abs(delta)
		switch {
		case mag > a.cfg.ElevationMaxDeltaM:
			// Sensor error, not terrain. Contributes to neither total.
		case mag > a.cfg.ElevationNoiseM:
			if delta > 0 {
				a.elevGainM += delta
			} else {
				a.elevLossM += mag
			}
		}
	}
	a.lastAltM = &alt
}

func (a *aggregator) addHeartRate(s HeartRateSample) {
	a.hrSum += s.BPM
	a.hrCount++
	if s.BPM > a.hrMax {
		a.hrMax = s.BPM
	}
}

// tick recomputes pace and calories from the running totals. Both move only
// at tick boundaries so per-fix jitter never reaches a reader. The reported
// calorie total keeps its previous value as a floor.
func (a *aggregator) tick(elapsedSeconds int) {
	if elapsedSeconds <= 0 {
		return
	}
	if a.distanceKm > 0 {
		a.paceMinPerKm = float64(elapsedSeconds) / 60.0 / a.distanceKm
	}
	est := a.estimator.Estimate(EstimateInput{
		BodyMassKg:     a.bodyMassKg,
		LoadMassKg:     a.loadMassKg,
		DistanceKm:     a.distanceKm,
		ElevationGainM: a.elevGainM,
		ElapsedSeconds: float64(elapsedSeconds),
		AvgHeartRate:   a.avgHeartRate(),
		HRSamples:      a.hrCount,
	})
	if est > a.calories {
		a.calories = est
	}
}

func (a *aggregator) avgHeartRate() float64 {
	if a.hrCount == 0 {
		return 0
	}
	return float64(a.hrSum) / float64(a.hrCount)
}

func (a *aggregator) snapshot() Metrics {
	return Metrics{
		DistanceKm:     a.distanceKm,
		ElevationGainM: a.elevGainM,
		ElevationLossM: a.elevLossM,
		PaceMinPerKm:   a.paceMinPerKm,
		Calories:       a.calories,
		AvgHeartRate:   a.avgHeartRate(),
		MaxHeartRate:   a.hrMax,
	}
}

// seed restores totals from a crash snapshot. Heart-rate aggregates restart
// from zero; the snapshot keeps scalar route totals only.
func (a *aggregator) seed(snap CrashSnapshot) {
	a.distanceKm = snap.DistanceKm
	a.elevGainM = snap.ElevationGainM
	a.elevLossM = snap.ElevationLossM
	a.calories = snap.Calories
}
