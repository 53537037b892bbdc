// Package geo holds the map geometry primitives used for geofencing.
// Coordinates are normalized to the festival map image: both axes run
// from 0.0 to 1.0 regardless of the image's pixel dimensions.
package geo

import (
	"math"
	"time"
)

// Point is a normalized map coordinate.
type Point struct {
	X float64
	Y float64
}

// Polygon is an ordered vertex sequence. A polygon needs at least three
// vertices to enclose anything; shorter sequences are tolerated but can
// never contain a point.
type Polygon []Point

// Contains reports whether p falls inside the polygon, using the even-odd
// ray casting rule. Points exactly on an edge may be classified either way
// depending on floating point rounding; callers must not rely on edge hits.
func (poly Polygon) Contains(p Point) bool {
	if len(poly) < 3 {
		return false
	}

	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		vi := poly[i]
		vj := poly[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) &&
			p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}

	return inside
}

// Centroid returns the arithmetic mean of the polygon's vertices. Manual
// check-in places the user's marker here. The zero Point is returned for an
// empty polygon.
func (poly Polygon) Centroid() Point {
	if len(poly) == 0 {
		return Point{}
	}

	var sum Point
	for _, v := range poly {
		sum.X += v.X
		sum.Y += v.Y
	}

	n := float64(len(poly))
	return Point{X: sum.X / n, Y: sum.Y / n}
}

// Locate tests p against each polygon in iteration order and returns the
// index of the first match, or -1 when no polygon contains the point.
// Polygons without vertices are skipped.
func Locate(p Point, polygons []Polygon) int {
	for i, poly := range polygons {
		if len(poly) == 0 {
			continue
		}
		if poly.Contains(p) {
			return i
		}
	}

	return -1
}

// SimulatePosition derives a mock position from elapsed session time. The
// path is a Lissajous-style curve that stays within [0.1, 0.9] on both axes,
// so simulated users wander the middle of the map without ever leaving it.
func SimulatePosition(elapsed time.Duration) Point {
	t := elapsed.Seconds()
	return Point{
		X: 0.5 + 0.4*math.Sin(t/5),
		Y: 0.5 + 0.4*math.Cos(t/7),
	}
}
