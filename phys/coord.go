// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com

package phys

import (
	"fmt"
	"math"
)

// Point is a location in the ground plane. X runs along the direction of
// travel, Y to the left of it.
type Point struct {
	X Meters
	Y Meters
}

func (p Point) String() string {
	return fmt.Sprintf("Point{X: %v, Y: %v}", p.X, p.Y)
}

// Pose is a Point plus a heading. kinematics.Pose carries its own X/Y/Yaw
// fields and projects onto this type (ToPhysPose) wherever a bare
// ground-plane position and orientation is needed, such as
// geometry.Rectangle's corner construction.
//
//	Theta==0      => heading along +X
//	Theta==pi/2   => heading along +Y
//	Theta==pi     => heading along -X
//	Theta==-pi/2  => heading along -Y
type Pose struct {
	Point
	Theta Radians
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose{X: %v, Y: %v, Theta: %v}", p.X, p.Y, p.Theta)
}

// Dist is the Euclidean distance between two points, used by agent.newAgent
// to size a deceleration-to-stop and by geometry.MinDist to rank polygon
// corner pairs.
func Dist(p1, p2 Point) Meters {
	dx := p1.X - p2.X
	dy := p1.Y - p2.Y
	return Meters(math.Sqrt(float64(dx*dx + dy*dy)))
}

// AdvancePose composes p1 and p2: treating p1 as the origin and heading
// p1.Theta, p2 gives a displacement and a further turn. geometry.Rectangle
// uses this to place a polygon corner at (±length/2, ±width/2) from a
// pose's center, and environment.UpdateFOV uses it to place the field of
// view's center ahead of the ego pose.
func (p1 Pose) AdvancePose(p2 Pose) Pose {
	offset := Point{X: p2.X, Y: p2.Y}.ToPolarPoint()
	offset.A = NormalizeRadians(p1.Theta + offset.A)
	p := offset.ToPoint()
	p.X += p1.X
	p.Y += p1.Y

	pose := Pose{Point: p, Theta: NormalizeRadians(p1.Theta + p2.Theta)}
	return pose
}

// PolarPoint is a point in radius/angle form, the intermediate
// representation AdvancePose rotates through.
type PolarPoint struct {
	R Meters
	A Radians
}

func (pp PolarPoint) String() string {
	return fmt.Sprintf("PolarPoint{R: %v, A: %v}", pp.R, pp.A)
}

// ToPolarPoint converts a Cartesian point to radius/angle form.
func (p Point) ToPolarPoint() PolarPoint {
	r := Meters(math.Sqrt(float64(p.X*p.X + p.Y*p.Y)))
	a := NormalizeRadians(Radians(math.Atan2(float64(p.Y), float64(p.X))))
	return PolarPoint{R: r, A: a}
}

// ToPoint converts a radius/angle point back to Cartesian form.
func (pp PolarPoint) ToPoint() Point {
	pp.A = NormalizeRadians(pp.A)
	return Point{
		X: pp.R * Meters(math.Cos(float64(pp.A))),
		Y: pp.R * Meters(math.Sin(float64(pp.A))),
	}
}
