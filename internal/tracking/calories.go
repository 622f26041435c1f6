package tracking

import (
	"math"
	"strings"
)

const joulesPerKcal = 4186.0

// EstimateInput carries everything a calorie model may consume. Fields a
// given model does not use are ignored.
type EstimateInput struct {
	BodyMassKg     float64
	LoadMassKg     float64
	DistanceKm     float64
	ElevationGainM float64
	ElapsedSeconds float64
	AvgHeartRate   float64
	HRSamples      int
}

// CalorieEstimator turns session totals into a kcal estimate. Estimates are
// recomputed from scratch on every tick, so implementations must be pure
// functions of their input.
type CalorieEstimator interface {
	Estimate(in EstimateInput) float64
}

// MechanicalEstimator is a Pandolf-style load-carriage power model with an
// upward correction for the underestimation seen at higher relative loads
// and speeds. All coefficients come from CalorieParams.
type MechanicalEstimator struct {
	Params CalorieParams
}

func (e MechanicalEstimator) Estimate(in EstimateInput) float64 {
	p := e.Params
	if in.BodyMassKg <= 0 || in.ElapsedSeconds <= 0 {
		return 0
	}

	var speedKmh float64
	if in.DistanceKm > 0 {
		speedKmh = in.DistanceKm / (in.ElapsedSeconds / 3600.0)
	}
	v := math.Min(p.SpeedCapMps, speedKmh/3.6)

	var gradePct float64
	if in.DistanceKm > 0 {
		gradePct = in.ElevationGainM / (in.DistanceKm * 1000) * 100
	}
	g := math.Max(p.GradeMinPct, math.Min(gradePct, p.GradeMaxPct))

	w, l := in.BodyMassKg, in.LoadMassKg
	lw := l / w
	watts := p.StandingCoef*w +
		p.LoadCoef*(w+l)*lw*lw +
		(w+l)*(p.SpeedCoef*v*v+p.GradeCoef*v*g)

	if lw > 0 && speedKmh > p.AdjFloorKmh {
		adj := math.Min(lw*p.AdjPerLoadRatio, p.AdjCap)
		speedFactor := math.Min((speedKmh-p.AdjFloorKmh)/p.AdjFloorKmh, 1.0)
		watts *= 1.0 + adj*speedFactor
	}

	watts = math.Max(p.WattsFloor, math.Min(watts, p.WattsCeil))
	return math.Max(0, watts/joulesPerKcal*in.ElapsedSeconds)
}

// FusionEstimator blends a heart-rate energy estimate into the mechanical
// one. The blend only engages when the trace carries at least one sample per
// 30 seconds of activity, and the result stays within FusionBandPct of the
// mechanical estimate either way.
type FusionEstimator struct {
	Mechanical MechanicalEstimator
	Params     CalorieParams
}

func (e FusionEstimator) Estimate(in EstimateInput) float64 {
	p := e.Params
	mech := e.Mechanical.Estimate(in)

	fused := mech
	if e.denseEnough(in) {
		hr := e.heartRateKcal(in)
		lo := mech * (1 - p.FusionBandPct)
		hi := mech * (1 + p.FusionBandPct)
		fused = math.Max(lo, math.Min(hr, hi))
	}
	if e.gender() == "" {
		fused *= 0.925
	}
	return fused
}

func (e FusionEstimator) denseEnough(in EstimateInput) bool {
	if in.AvgHeartRate <= 0 || in.ElapsedSeconds <= 0 {
		return false
	}
	return float64(in.HRSamples) >= in.ElapsedSeconds/30.0
}

// heartRateKcal applies the Keytel regression for energy expenditure from
// heart rate. Unknown gender uses the male coefficients; the 0.925 factor
// applied by Estimate compensates.
func (e FusionEstimator) heartRateKcal(in EstimateInput) float64 {
	age := float64(e.Params.UserAge)
	var perMin float64
	if e.gender() == "female" {
		perMin = (-20.4022 + 0.4472*in.AvgHeartRate - 0.1263*in.BodyMassKg + 0.074*age) / 4.184
	} else {
		perMin = (-55.0969 + 0.6309*in.AvgHeartRate + 0.1988*in.BodyMassKg + 0.2017*age) / 4.184
	}
	if perMin < 0 {
		perMin = 0
	}
	return perMin * in.ElapsedSeconds / 60.0
}

func (e FusionEstimator) gender() string {
	return strings.ToLower(strings.TrimSpace(e.Params.UserGender))
}
