package model

import "math"

// Position is a point in the deployment plane. Units are arbitrary but
// must be consistent with the path loss reference distance (1 unit).
type Position struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance between two positions.
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}
