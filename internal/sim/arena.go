// Package sim implements the simulation core: a wall-bounded arena with ray
// casting, the car kinematics, and the tick engine that drives the fuzzy
// controller and publishes telemetry samples to subscribers.
package sim

import (
	"fmt"
	"math"

	"github.com/steerlab/fuzzdrive/internal/units"
)

// Point is a position in arena coordinates. Y grows downward, matching the
// screen convention the distance readings were calibrated against.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment is a wall segment between two points.
type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// Arena is a bounded rectangle whose boundary is four wall segments.
// Additional interior walls may be added with AddWall.
type Arena struct {
	Width  float64
	Height float64

	walls []Segment
}

// NewBoxArena creates an arena of the given dimensions with the four
// boundary walls installed.
func NewBoxArena(width, height float64) (*Arena, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("arena dimensions must be positive, got %fx%f", width, height)
	}
	a := &Arena{Width: width, Height: height}
	corners := []Point{
		{0, 0},
		{width, 0},
		{width, height},
		{0, height},
	}
	for i := range corners {
		a.walls = append(a.walls, Segment{A: corners[i], B: corners[(i+1)%len(corners)]})
	}
	return a, nil
}

// AddWall installs an interior wall segment.
func (a *Arena) AddWall(s Segment) {
	a.walls = append(a.walls, s)
}

// Walls returns a copy of the wall segments.
func (a *Arena) Walls() []Segment {
	out := make([]Segment, len(a.walls))
	copy(out, a.walls)
	return out
}

// Contains reports whether p lies inside the arena rectangle.
func (a *Arena) Contains(p Point) bool {
	return p.X >= 0 && p.X <= a.Width && p.Y >= 0 && p.Y <= a.Height
}

// CastRay returns the distance from origin along angleDeg to the nearest
// wall, capped at maxRange. A ray that hits nothing within maxRange returns
// maxRange.
func (a *Arena) CastRay(origin Point, angleDeg, maxRange float64) float64 {
	rad := units.DegToRad(angleDeg)
	dir := Point{X: math.Cos(rad), Y: math.Sin(rad)}

	nearest := maxRange
	for _, w := range a.walls {
		if d, ok := raySegment(origin, dir, w); ok && d < nearest {
			nearest = d
		}
	}
	return nearest
}

// raySegment intersects the ray origin+s*dir (s >= 0) with the segment and
// returns the hit distance s. dir must be a unit vector.
func raySegment(origin, dir Point, seg Segment) (float64, bool) {
	ex := seg.B.X - seg.A.X
	ey := seg.B.Y - seg.A.Y

	denom := dir.X*ey - dir.Y*ex
	if math.Abs(denom) < 1e-12 {
		// Parallel (or degenerate segment).
		return 0, false
	}

	ax := seg.A.X - origin.X
	ay := seg.A.Y - origin.Y

	s := (ax*ey - ay*ex) / denom
	t := (ax*dir.Y - ay*dir.X) / denom

	if s < 0 || t < 0 || t > 1 {
		return 0, false
	}
	return s, true
}
