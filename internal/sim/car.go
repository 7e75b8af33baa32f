package sim

import (
	"math"

	"github.com/steerlab/fuzzdrive/internal/units"
)

// Car is the simulated vehicle pose.
type Car struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	HeadingDeg float64 `json:"heading_deg"`
}

// Kinematics holds the per-tick motion parameters.
type Kinematics struct {
	BaseSpeed   float64 // units per tick at full acceleration
	TurnRateDeg float64 // degrees per tick at full turn
}

// Position returns the car position as a Point.
func (c *Car) Position() Point {
	return Point{X: c.X, Y: c.Y}
}

// Step applies one tick of motion: the heading rotates by turn·TurnRateDeg
// and the car advances BaseSpeed·accel along the new heading. A negative
// accel reverses. Returns the signed speed applied this tick.
func (c *Car) Step(turn, accel float64, k Kinematics) float64 {
	c.HeadingDeg = units.NormalizeDeg(c.HeadingDeg + turn*k.TurnRateDeg)

	speed := k.BaseSpeed * accel
	rad := units.DegToRad(c.HeadingDeg)
	c.X += speed * math.Cos(rad)
	c.Y += speed * math.Sin(rad)
	return speed
}
