// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com

package phys

import (
	"math"
	"testing"
)

const (
	mTol Meters  = 1.0e-6
	rTol Radians = 1.0e-6
)

func TestDist(t *testing.T) {
	testTable := []struct {
		name   string
		p1, p2 Point
		exp    Meters
	}{
		{name: "coincident points", p1: Point{X: 0, Y: 0}, p2: Point{X: 0, Y: 0}, exp: 0},
		{name: "along X", p1: Point{X: 0, Y: 0}, p2: Point{X: 0.1, Y: 0}, exp: 0.1},
		{name: "along Y", p1: Point{X: 0, Y: 0}, p2: Point{X: 0, Y: 0.1}, exp: 0.1},
		{name: "diagonal", p1: Point{X: 0, Y: 0}, p2: Point{X: 1, Y: 1}, exp: Meters(math.Sqrt(2))},
		{name: "neither point at origin", p1: Point{X: 3, Y: 4}, p2: Point{X: 3, Y: 0}, exp: 4},
	}

	for _, vec := range testTable {
		if got := Dist(vec.p1, vec.p2); !MetersAreNear(got, vec.exp, mTol) {
			t.Errorf("%s: Dist(%s, %s) = %v, want %v", vec.name, vec.p1, vec.p2, got, vec.exp)
		}
		if got := Dist(vec.p2, vec.p1); !MetersAreNear(got, vec.exp, mTol) {
			t.Errorf("%s: Dist is not symmetric; Dist(%s, %s) = %v, want %v", vec.name, vec.p2, vec.p1, got, vec.exp)
		}
	}
}

func TestPointToPolarRoundTrip(t *testing.T) {
	const pi = Radians(math.Pi)

	testTable := []struct {
		name string
		p    Point
		exp  PolarPoint
	}{
		{name: "origin", p: Point{X: 0, Y: 0}, exp: PolarPoint{R: 0, A: 0}},
		{name: "+X axis", p: Point{X: 10, Y: 0}, exp: PolarPoint{R: 10, A: 0}},
		{name: "-X axis", p: Point{X: -10, Y: 0}, exp: PolarPoint{R: 10, A: pi}},
		{name: "+Y axis", p: Point{X: 0, Y: 10}, exp: PolarPoint{R: 10, A: 0.5 * pi}},
		{name: "-Y axis", p: Point{X: 0, Y: -10}, exp: PolarPoint{R: 10, A: -0.5 * pi}},
		{name: "second quadrant", p: Point{X: -5, Y: 5}, exp: PolarPoint{R: Meters(5 * math.Sqrt(2)), A: 0.75 * pi}},
	}

	for _, vec := range testTable {
		pp := vec.p.ToPolarPoint()
		if !MetersAreNear(pp.R, vec.exp.R, mTol) || !RadiansAreNear(pp.A, vec.exp.A, rTol) {
			t.Errorf("%s: ToPolarPoint(%s) = %s, want %s", vec.name, vec.p, pp, vec.exp)
		}

		back := pp.ToPoint()
		if !MetersAreNear(back.X, vec.p.X, mTol) || !MetersAreNear(back.Y, vec.p.Y, mTol) {
			t.Errorf("%s: round trip through PolarPoint gave %s, want %s", vec.name, back, vec.p)
		}
	}
}

func TestPolarPointAngleWrapsAroundTheCircle(t *testing.T) {
	const pi = Radians(math.Pi)

	// Adding or subtracting full turns shouldn't change where ToPoint lands.
	testTable := []struct {
		name string
		a    Radians
	}{
		{name: "zero turns", a: 0.5 * pi},
		{name: "plus one turn", a: 2.5 * pi},
		{name: "minus one turn", a: -1.5 * pi},
		{name: "plus several turns", a: 8.5 * pi},
	}

	want := PolarPoint{R: 4, A: 0.5 * pi}.ToPoint()
	for _, vec := range testTable {
		got := PolarPoint{R: 4, A: vec.a}.ToPoint()
		if !MetersAreNear(got.X, want.X, mTol) || !MetersAreNear(got.Y, want.Y, mTol) {
			t.Errorf("%s: ToPoint(angle=%v) = %s, want %s", vec.name, vec.a, got, want)
		}
	}
}

func TestAdvancePose(t *testing.T) {
	const pi = Radians(math.Pi)

	testTable := []struct {
		name         string
		start, delta Pose
		exp          Pose
	}{
		{
			name:  "zero delta leaves the pose unchanged",
			start: Pose{Point: Point{X: 1, Y: 2}, Theta: 0.5 * pi},
			delta: Pose{},
			exp:   Pose{Point: Point{X: 1, Y: 2}, Theta: 0.5 * pi},
		},
		{
			name:  "from origin, heading 0, advances straight along X",
			start: Pose{},
			delta: Pose{Point: Point{X: 1, Y: 0}},
			exp:   Pose{Point: Point{X: 1, Y: 0}},
		},
		{
			name:  "heading pi/2 rotates a forward delta onto +Y",
			start: Pose{Theta: 0.5 * pi},
			delta: Pose{Point: Point{X: 1, Y: 0}},
			exp:   Pose{Point: Point{X: 0, Y: 1}, Theta: 0.5 * pi},
		},
		{
			name:  "heading pi mirrors a forward delta onto -X",
			start: Pose{Point: Point{X: 1, Y: 0}, Theta: pi},
			delta: Pose{Point: Point{X: 1, Y: 0}},
			exp:   Pose{Point: Point{X: 0, Y: 0}, Theta: pi},
		},
		{
			name:  "delta heading adds onto the start heading",
			start: Pose{Point: Point{X: 1, Y: 0}},
			delta: Pose{Theta: 1 * pi},
			exp:   Pose{Point: Point{X: 1, Y: 0}, Theta: pi},
		},
		{
			name:  "lateral and heading delta compose from a non-origin start",
			start: Pose{Point: Point{X: 1, Y: 1}, Theta: 0.25 * pi},
			delta: Pose{Point: Point{X: -2 * Meters(math.Sqrt(2)), Y: 0}, Theta: -1 * pi},
			exp:   Pose{Point: Point{X: -1, Y: -1}, Theta: -0.75 * pi},
		},
	}

	for _, vec := range testTable {
		got := vec.start.AdvancePose(vec.delta)
		if !MetersAreNear(got.X, vec.exp.X, mTol) || !MetersAreNear(got.Y, vec.exp.Y, mTol) || !RadiansAreNear(got.Theta, vec.exp.Theta, rTol) {
			t.Errorf("%s: %s.AdvancePose(%s) = %s, want %s", vec.name, vec.start, vec.delta, got, vec.exp)
		}
	}
}

func TestMetersAreNear(t *testing.T) {
	testTable := []struct {
		name    string
		m1, m2  Meters
		tol     Meters
		expNear bool
	}{
		{name: "exactly equal", m1: 0, m2: 0, tol: 0, expNear: true},
		{name: "just inside tolerance", m1: 0, m2: 0.10, tol: 0.10, expNear: true},
		{name: "just outside tolerance", m1: 0, m2: 0.10, tol: 0.05, expNear: false},
		{name: "negative values within tolerance", m1: -0.05, m2: 0.05, tol: 0.10, expNear: true},
		{name: "negative values outside tolerance", m1: -0.06, m2: 0.06, tol: 0.10, expNear: false},
	}

	for _, vec := range testTable {
		if got := MetersAreNear(vec.m1, vec.m2, vec.tol); got != vec.expNear {
			t.Errorf("%s: MetersAreNear(%v, %v, %v) = %v, want %v", vec.name, vec.m1, vec.m2, vec.tol, got, vec.expNear)
		}
		if got := MetersAreNear(vec.m2, vec.m1, vec.tol); got != vec.expNear {
			t.Errorf("%s: MetersAreNear is not symmetric for (%v, %v, %v)", vec.name, vec.m2, vec.m1, vec.tol)
		}
	}
}
