// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com
//
// Risk kernels: the probabilistic half of the planner's cost function. All
// functions here are pure and deterministic, operating on plain scalars and
// the geometry/kinematics types, with no knowledge of agents, modes, or the
// search loop that calls them.

package risk

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/anki/riskplanner/geometry"
	"github.com/anki/riskplanner/kinematics"
	"github.com/anki/riskplanner/phys"
)

// minVariance is a floor on the along-direction position variance used by
// CollisionIndicator, so that two agents recorded at t=0 (zero covariance)
// don't produce a divide-by-near-zero indicator.
const minVariance = 1e-4

// CollisionIndicator is a soft intersection score in [0,1] between two
// oriented-rectangle agents. It returns 1 exactly when the polygons
// overlap; otherwise it decays with the minimum corner-to-corner distance
// between the polygons, normalized by the combined position uncertainty
// projected onto the line joining the two pose centers. Because the
// combined covariance and the minimum distance are both symmetric in the
// two inputs, so is the indicator.
func CollisionIndicator(egoPose, objPose phys.Pose, egoPoly, objPoly geometry.Polygon, egoCov, objCov kinematics.Cov2) float64 {
	if geometry.PolygonIntersects(egoPoly, objPoly) {
		return 1
	}

	dx := float64(objPose.X - egoPose.X)
	dy := float64(objPose.Y - egoPose.Y)
	norm := math.Hypot(dx, dy)
	if norm < 1e-9 {
		return 1
	}
	ux, uy := dx/norm, dy/norm

	covSum := kinematics.Cov2{
		Long:    egoCov.Long + objCov.Long,
		Lat:     egoCov.Lat + objCov.Lat,
		LongLat: egoCov.LongLat + objCov.LongLat,
	}
	varAlong := varianceAlongDirection(ux, uy, covSum)
	if varAlong < minVariance {
		varAlong = minVariance
	}

	d := float64(geometry.MinDist(egoPoly, objPoly))
	z := d / math.Sqrt(varAlong)
	return math.Exp(-0.5 * z * z)
}

// varianceAlongDirection projects a 2x2 covariance matrix onto unit
// direction (ux,uy): u^T C u.
func varianceAlongDirection(ux, uy float64, cov kinematics.Cov2) float64 {
	c := mat.NewSymDense(2, []float64{cov.Long, cov.LongLat, cov.LongLat, cov.Lat})
	u := mat.NewVecDense(2, []float64{ux, uy})
	return mat.Inner(u, c, u)
}

// RateMethod selects the shape of the indicator-to-rate mapping.
type RateMethod int

const (
	RateExp RateMethod = iota
	RateSig
)

// CollisionEventRate maps a collision indicator in [0,1] to a hazard rate
// in [0, rateMax]. The exp method is zero at indicator=0 and saturates
// smoothly toward rateMax; the sig method is centered so that
// indicator=0.5 yields rateMax/2, useful when a detector's indicator
// threshold is itself near 0.5.
func CollisionEventRate(indicator, rateMax, beta float64, method RateMethod) float64 {
	switch method {
	case RateSig:
		cdf := distuv.Logistic{Mu: 0.5, Scale: 1 / beta}.CDF(indicator)
		return rateMax * cdf
	default: // RateExp
		return rateMax * (1 - math.Exp(-beta*indicator))
	}
}

// CollisionEventSeverityDefault is the general vehicle-vs-vehicle severity
// model: a quadratic in closing speed, floored at minWeight so that even a
// near-zero relative-speed collision carries some weight.
func CollisionEventSeverityDefault(egoVx, objVx phys.MetersPerSec, minWeight, weight float64) float64 {
	closing := float64(egoVx - objVx)
	return math.Max(minWeight, weight*closing*closing)
}

// CollisionEventSeveritySigAvgVx is the pedestrian severity model: a
// logistic curve over the average of ego and pedestrian speed, floored at
// minWeight and capped at maxWeight.
func CollisionEventSeveritySigAvgVx(avgVx phys.MetersPerSec, minWeight, maxWeight, beta, center float64) float64 {
	cdf := distuv.Logistic{Mu: center, Scale: 1 / beta}.CDF(float64(avgVx))
	return math.Max(minWeight, maxWeight*cdf)
}

// gompertz evaluates the standard Gompertz curve a*exp(-exp(-b*(x-c))).
func gompertz(x, a, b, c float64) float64 {
	return a * math.Exp(-math.Exp(-b*(x-c)))
}

// CollisionEventSeverityHypoPedestrian is the occluded-pedestrian severity
// model: an even blend of a logistic curve and a Gompertz curve over ego
// speed, floored at minWeight. The blend softens the logistic's symmetric
// rise with the Gompertz's slower right tail, reflecting that an
// unconfirmed pedestrian hazard should not spike severity as abruptly as a
// confirmed one.
func CollisionEventSeverityHypoPedestrian(egoVx phys.MetersPerSec, minWeight, avgVx, sigMax, sigBeta, gomMax, gomBeta float64) float64 {
	sig := sigMax * distuv.Logistic{Mu: avgVx, Scale: 1 / sigBeta}.CDF(float64(egoVx))
	gom := gompertz(float64(egoVx), gomMax, gomBeta, avgVx)
	blend := (sig + gom) / 2
	return math.Max(minWeight, blend)
}

// CollisionEventSeverityHypoVehicle is the occluded-vehicle severity
// model: an even blend of a quadratic ego-speed term and a logistic
// curve over ego speed, floored at minWeight.
func CollisionEventSeverityHypoVehicle(egoVx phys.MetersPerSec, quadWeight, minWeight, sigMax, sigAvgVx, sigBeta float64) float64 {
	quad := quadWeight * float64(egoVx) * float64(egoVx)
	sig := sigMax * distuv.Logistic{Mu: sigAvgVx, Scale: 1 / sigBeta}.CDF(float64(egoVx))
	blend := (quad + sig) / 2
	return math.Max(minWeight, blend)
}

// CollisionRisk combines severity and rate into a risk contribution.
func CollisionRisk(severity, rate float64) float64 {
	return severity * rate
}

// limitViewStdMultiplier is the safety-margin multiplier applied to the
// longitudinal position standard deviation in LimitViewRisk's stopping
// distance, analogous to the half-extent padding used for exported
// predicted-pose std values.
const limitViewStdMultiplier = 2.0

// LimitViewRisk estimates the event rate and risk contributed by an
// occluded hazard that could emerge at the edge of the ego's field of
// view. dStop is the distance the ego needs to fully stop (reaction
// distance + braking distance + a fixed buffer + a position-uncertainty
// margin); the indicator is how much of the available FOV range that
// stopping distance consumes, clipped to [0,1].
func LimitViewRisk(fovRange phys.Meters, egoVx phys.MetersPerSec, aBrake phys.MetersPerSec2, dBrake phys.Meters, stdLon phys.Meters, tReact phys.Seconds, rateMax, rateBeta, sevMinWeight, sevWeight float64) (rate, risk float64) {
	dStop := float64(egoVx)*float64(tReact) +
		(float64(egoVx)*float64(egoVx))/(2*math.Abs(float64(aBrake))) +
		float64(dBrake) + limitViewStdMultiplier*float64(stdLon)

	indicator := 0.0
	if fovRange > 0 {
		indicator = dStop / float64(fovRange)
	}
	indicator = math.Max(0, math.Min(1, indicator))

	rate = rateMax * (1 - math.Exp(-rateBeta*indicator))
	severity := math.Max(sevMinWeight, sevWeight*float64(egoVx)*float64(egoVx))
	return rate, rate * severity
}

// EscapeRate returns a constant baseline hazard rate, modeling causes of
// collision termination the risk model does not otherwise capture. The
// planner's totalCost does not call it; it reads the same rate from
// config.Config.EscapeRate.
func EscapeRate(r float64) float64 {
	return r
}

// survivalUnderflow is the point below which a survival weight is treated
// as exactly zero rather than an extremely small positive float, per the
// NumericUnderflow error class: further terms discounted by a weight this
// small cannot change an accumulating cost in any observable way, and
// math.Exp can legitimately flush to 0 for large cumulative rates.
const survivalUnderflow = 1e-300

// Survival returns exp(-cumulativeRate * stepSize), the probability weight
// that no collision-terminating event has occurred by this point in the
// horizon. cumulativeRate is the running sum of event rates (escape rate
// plus every per-step rate so far) up to and including the current step.
// The result is monotonically non-increasing as cumulativeRate grows.
func Survival(cumulativeRate, stepSize float64) float64 {
	s := math.Exp(-cumulativeRate * stepSize)
	if s < survivalUnderflow {
		return 0
	}
	return s
}
