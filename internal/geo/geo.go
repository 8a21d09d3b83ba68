// Package geo provides the planar math the signal search runs on: heading
// arithmetic with 0/360 wraparound and forward projection in the host world's
// axis convention.
//
// Positions are game-world meters. Like map exports, they are treated as
// EPSG:3857 so stored geometry round-trips through standard tooling without a
// projection step.
package geo

import "math"

// Position is a 3D world coordinate in meters.
type Position struct {
	X float64 `json:"x"` // easting
	Y float64 `json:"y"` // northing
	Z float64 `json:"z"` // elevation
}

// AngleDiff returns the absolute circular difference between two headings in
// degrees, in [0,180]. AngleDiff(10, 350) == 20.
func AngleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	return math.Min(d, 360-d)
}

// ProjectForward returns the point dist meters ahead of pos along headingDeg.
//
// The host runtime's convention is heading 0 = north, increasing
// counterclockwise, with forward = (-sin h, +cos h). This must match the
// runtime exactly; flipping the sign mirrors the whole search cone.
func ProjectForward(pos Position, headingDeg, dist float64) Position {
	rad := headingDeg * (math.Pi / 180)
	return Position{
		X: pos.X - math.Sin(rad)*dist,
		Y: pos.Y + math.Cos(rad)*dist,
		Z: pos.Z,
	}
}

// DistSq returns the squared planar distance between two positions. Elevation
// is ignored: signals sit on masts well above the vehicle origin, so a 3D
// distance would reject valid candidates.
func DistSq(a, b Position) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}
