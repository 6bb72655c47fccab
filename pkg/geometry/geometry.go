// ABOUTME: Clock-face coordinate geometry
// ABOUTME: Maps pivot, radius and angle to screen points (0° up, clockwise)
package geometry

import "math"

// Point is a screen position in pixels. Y grows downward.
type Point struct {
	X, Y float64
}

// PointOnCircle returns the point at distance r from (cx, cy) along angle
// degrees, where 0° points straight up and angles increase clockwise.
func PointOnCircle(cx, cy, r, angle float64) (x, y float64) {
	rad := angle * math.Pi / 180
	return cx + r*math.Sin(rad), cy - r*math.Cos(rad)
}

// DialPositions returns the 12 hour-digit positions around a dial. Index 0
// holds the "1" position (30°), index 11 the "12" position (360°).
func DialPositions(cx, cy, r float64) [12]Point {
	var pts [12]Point
	for h := 1; h <= 12; h++ {
		x, y := PointOnCircle(cx, cy, r, float64(h)*30)
		pts[h-1] = Point{X: x, Y: y}
	}
	return pts
}
