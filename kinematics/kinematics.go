// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com
//
// Fixed-step Euler kinematics shared by the ego vehicle's own motion and
// its predictions of every other agent. Longitudinal-only: lateral
// velocity and lane offset are deliberately absent, matching the planner's
// single degree of freedom (forward acceleration).

package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/anki/riskplanner/phys"
)

// Cov2 is a 2x2 diagonal-ish covariance over the (longitudinal, lateral)
// position uncertainty of a pose. Off-diagonal terms are carried for
// generality but the propagation model here only grows the diagonal.
type Cov2 struct {
	Long    float64
	Lat     float64
	LongLat float64
}

// ProcessNoise is the per-second diagonal process noise added to position
// covariance on every kinematic update: cov' = cov + Q*dT.
type ProcessNoise struct {
	QLong float64
	QLat  float64
}

// DefaultProcessNoise is a conservative, implementation-defined choice:
// uncertainty grows slowly compared to a vehicle's own length scale, so
// that the collision indicator tightens as agents close distance rather
// than staying permanently blurry.
var DefaultProcessNoise = ProcessNoise{QLong: 0.01, QLat: 0.01}

// VehicleDynamic is the longitudinal-only motion state: forward speed and
// its current rate of change. Lateral velocity is omitted by design.
type VehicleDynamic struct {
	Vx  phys.MetersPerSec
	Dvx phys.MetersPerSec2
}

func (vd VehicleDynamic) String() string {
	return fmt.Sprintf("VehicleDynamic{Vx: %.3f, Dvx: %.3f}", vd.Vx, vd.Dvx)
}

// Pose is an immutable record of a vehicle or object's state at an instant:
// position, heading, position covariance, longitudinal dynamics, and the
// timestamp it was recorded at. Once constructed, a Pose is never mutated;
// kinematic updates always produce a new Pose.
type Pose struct {
	X, Y  phys.Meters
	Yaw   phys.Radians
	Cov   Cov2
	VDY   VehicleDynamic
	T     phys.Seconds
}

// Heading returns the unit vector of the pose's orientation.
func (p Pose) Heading() (hx, hy float64) {
	return math.Cos(float64(p.Yaw)), math.Sin(float64(p.Yaw))
}

// ToPhysPose projects a kinematics.Pose down to the bare geometric pose
// used for rectangle construction and frame transforms.
func (p Pose) ToPhysPose() phys.Pose {
	return phys.Pose{Point: phys.Point{X: p.X, Y: p.Y}, Theta: p.Yaw}
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose{X: %.3f, Y: %.3f, Yaw: %.3f, Vx: %.3f, T: %.2f}",
		p.X, p.Y, p.Yaw, p.VDY.Vx, p.T)
}

// round2 rounds to 2 decimal places, the convention every pose timestamp
// is keyed on so history lookups can compare floats for equality.
func round2(v float64) float64 {
	return floats.Round(v, 2)
}

// UpdatePose advances last by one fixed step dT under longitudinal
// acceleration input u. Speed is clamped at zero (no reverse), average
// speed over the step drives the position update, and heading is held
// constant since lateral planning is out of scope. Position covariance
// grows by the process noise scaled by dT.
func UpdatePose(last Pose, u phys.MetersPerSec2, dT phys.Seconds, q ProcessNoise) Pose {
	vxNext := last.VDY.Vx + phys.MetersPerSec(float64(u)*float64(dT))
	if vxNext < 0 {
		vxNext = 0
	}
	vAvg := (last.VDY.Vx + vxNext) / 2

	hx, hy := last.Heading()
	dist := float64(vAvg) * float64(dT)

	return Pose{
		X:   last.X + phys.Meters(dist*hx),
		Y:   last.Y + phys.Meters(dist*hy),
		Yaw: last.Yaw,
		Cov: Cov2{
			Long:    last.Cov.Long + q.QLong*float64(dT),
			Lat:     last.Cov.Lat + q.QLat*float64(dT),
			LongLat: last.Cov.LongLat,
		},
		VDY: VehicleDynamic{Vx: vxNext, Dvx: u},
		T:   phys.Seconds(round2(float64(last.T) + float64(dT))),
	}
}

// PoseAt is one entry of an ordered UpdatePoseList sequence.
type PoseAt struct {
	T    phys.Seconds
	Pose Pose
}

// UpdatePoseList repeatedly applies UpdatePose from last.T up to and
// including tEnd, at fixed dT spacing, returning the grid points in
// increasing time order. tEnd is inclusive up to floating-point grid
// rounding; the final point may fall short of tEnd by less than dT if
// tEnd does not land exactly on the grid.
func UpdatePoseList(last Pose, u phys.MetersPerSec2, tEnd phys.Seconds, dT phys.Seconds, q ProcessNoise) []PoseAt {
	out := make([]PoseAt, 0)
	cur := last
	for round2(float64(cur.T)+float64(dT)) <= round2(float64(tEnd))+1e-9 {
		cur = UpdatePose(cur, u, dT, q)
		out = append(out, PoseAt{T: cur.T, Pose: cur})
	}
	return out
}

// ComputeAccToStop returns the constant deceleration required to bring a
// vehicle travelling at vx to a stop exactly at distance (from, to]. The
// caller must ensure distance is strictly positive; a zero distance is a
// precondition violation, not a recoverable edge case, since it would
// require infinite deceleration.
func ComputeAccToStop(distance phys.Meters, vx phys.MetersPerSec) phys.MetersPerSec2 {
	if distance <= 0 {
		panic(fmt.Sprintf("kinematics: ComputeAccToStop called with non-positive distance=%v", distance))
	}
	return phys.MetersPerSec2(-float64(vx) * float64(vx) / (2 * float64(distance)))
}
