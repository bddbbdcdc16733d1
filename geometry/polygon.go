// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com
//
// Oriented-rectangle geometry for the collision kernel. A vehicle or
// object footprint is modeled as a rectangle centered on its pose, long
// axis along heading. This package only cares about the rectangle's
// corners and whether two rectangles overlap; it knows nothing about
// risk, agents, or time.

package geometry

import (
	"github.com/anki/riskplanner/phys"
)

// Polygon is an oriented rectangle's four corners, in absolute Cartesian
// space, in a consistent winding order (front-left, front-right,
// back-right, back-left).
type Polygon [4]phys.Point

// Rectangle builds the oriented rectangle centered at pose, with its long
// axis (length) along pose.Theta and its short axis (width) perpendicular
// to it. Corners are returned front-left, front-right, back-right,
// back-left.
func Rectangle(pose phys.Pose, length, width phys.Meters) Polygon {
	halfLen := length / 2
	halfWid := width / 2
	corner := func(dx, dy phys.Meters) phys.Point {
		return pose.AdvancePose(phys.Pose{Point: phys.Point{X: dx, Y: dy}, Theta: 0}).Point
	}
	return Polygon{
		corner(+halfLen, +halfWid), // front-left
		corner(+halfLen, -halfWid), // front-right
		corner(-halfLen, -halfWid), // back-right
		corner(-halfLen, +halfWid), // back-left
	}
}

// axes returns the two distinct outward edge normals of an oriented
// rectangle; for a rectangle, two of the four edge normals suffice as
// separating-axis candidates since opposite edges share an axis.
func (poly Polygon) axes() [2]phys.Point {
	var axes [2]phys.Point
	for i := 0; i < 2; i++ {
		p1 := poly[i]
		p2 := poly[i+1]
		edge := phys.Point{X: p2.X - p1.X, Y: p2.Y - p1.Y}
		// perpendicular, not normalized: SAT only needs the projection order
		axes[i] = phys.Point{X: -edge.Y, Y: edge.X}
	}
	return axes
}

func project(poly Polygon, axis phys.Point) (min, max phys.Meters) {
	min = dot(poly[0], axis)
	max = min
	for i := 1; i < len(poly); i++ {
		d := dot(poly[i], axis)
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}

func dot(p, axis phys.Point) phys.Meters {
	return p.X*axis.X + p.Y*axis.Y
}

func overlaps(aMin, aMax, bMin, bMax phys.Meters) bool {
	return aMin <= bMax && bMin <= aMax
}

// PolygonIntersects reports whether two oriented rectangles overlap, using
// the separating-axis theorem over the (up to) four distinct edge normals
// of the two rectangles. Touching edges count as intersecting.
func PolygonIntersects(a, b Polygon) bool {
	for _, axis := range a.axes() {
		aMin, aMax := project(a, axis)
		bMin, bMax := project(b, axis)
		if !overlaps(aMin, aMax, bMin, bMax) {
			return false
		}
	}
	for _, axis := range b.axes() {
		aMin, aMax := project(a, axis)
		bMin, bMax := project(b, axis)
		if !overlaps(aMin, aMax, bMin, bMax) {
			return false
		}
	}
	return true
}

// InflatedEgoPolygon returns the ego rectangle translated forward along its
// heading by dist, used by static-object checks to account for minimum
// stopping distance before the ego's own footprint would reach the
// obstacle.
func InflatedEgoPolygon(egoPose phys.Pose, length, width, dist phys.Meters) Polygon {
	translated := egoPose.AdvancePose(phys.Pose{Point: phys.Point{X: dist, Y: 0}, Theta: 0})
	return Rectangle(translated, length, width)
}

// Centroid returns the average of a polygon's corners.
func (poly Polygon) Centroid() phys.Point {
	var c phys.Point
	for _, p := range poly {
		c.X += p.X
		c.Y += p.Y
	}
	n := phys.Meters(len(poly))
	return phys.Point{X: c.X / n, Y: c.Y / n}
}

// MinDist returns the minimum Euclidean distance between any corner of a
// and any corner of b. Used by the soft collision indicator when the two
// polygons do not actually intersect; it is an approximation of true
// polygon-to-polygon distance but is adequate away from intersection,
// since the nearest feature between two convex rectangles that don't
// overlap is generically a corner-to-corner or corner-to-edge pair, and
// corner-to-corner dominates at the separations where the indicator still
// matters.
func MinDist(a, b Polygon) phys.Meters {
	min := phys.Dist(a[0], b[0])
	for _, pa := range a {
		for _, pb := range b {
			d := phys.Dist(pa, pb)
			if d < min {
				min = d
			}
		}
	}
	return min
}
