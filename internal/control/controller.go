// Package control implements the fuzzy steering controller. Three ray
// distances (left, center, right) are fuzzified against near/medium/far
// membership sets and combined with weighted rules into a turn command and
// an acceleration command, both clamped to [-1, 1].
package control

import (
	"fmt"
	"sync"

	"github.com/steerlab/fuzzdrive/internal/config"
	"github.com/steerlab/fuzzdrive/internal/fuzzy"
)

// Set names for the distance variable.
const (
	SetNear   = "near"
	SetMedium = "medium"
	SetFar    = "far"
)

// Weights holds the rule weights for the steering and acceleration laws.
type Weights struct {
	// Steering rules. Positive turn steers right, negative steers left.
	RightNear    float64 // steer away from a near right wall
	RightMedium  float64
	CenterNotFar float64 // bias toward turning when the path ahead closes
	LeftNear     float64 // steer away from a near left wall
	LeftMedium   float64
	LeftNotFar   float64

	// Acceleration rules keyed on the center ray.
	AccelNear   float64 // brake (or reverse) when the wall ahead is near
	AccelMedium float64
	AccelFar    float64
}

// Config holds the membership breakpoints and rule weights.
type Config struct {
	NearLow    float64
	NearHigh   float64
	MediumLow  float64
	MediumHigh float64
	FarLow     float64
	FarHigh    float64

	// MaxRange is the distance universe upper bound; it should equal the
	// ray max range so capped readings grade as fully far.
	MaxRange float64

	Weights Weights
}

// DefaultConfig returns the controller configuration with the canonical
// breakpoints and weights.
func DefaultConfig() Config {
	return Config{
		NearLow:    0,
		NearHigh:   50,
		MediumLow:  40,
		MediumHigh: 180,
		FarLow:     100,
		FarHigh:    200,
		MaxRange:   200,
		Weights: Weights{
			RightNear:    -1.0,
			RightMedium:  0.5,
			CenterNotFar: 0.8,
			LeftNear:     1.0,
			LeftMedium:   0.5,
			LeftNotFar:   -0.6,
			AccelNear:    -1.0,
			AccelMedium:  0.8,
			AccelFar:     1.0,
		},
	}
}

// ConfigFromTuning builds a controller Config from the tuning file values.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		NearLow:    t.GetNearLow(),
		NearHigh:   t.GetNearHigh(),
		MediumLow:  t.GetMediumLow(),
		MediumHigh: t.GetMediumHigh(),
		FarLow:     t.GetFarLow(),
		FarHigh:    t.GetFarHigh(),
		MaxRange:   t.GetRayMaxRange(),
		Weights: Weights{
			RightNear:    t.GetWeightRightNear(),
			RightMedium:  t.GetWeightRightMedium(),
			CenterNotFar: t.GetWeightCenterNotFar(),
			LeftNear:     t.GetWeightLeftNear(),
			LeftMedium:   t.GetWeightLeftMedium(),
			LeftNotFar:   t.GetWeightLeftNotFar(),
			AccelNear:    t.GetWeightAccelNear(),
			AccelMedium:  t.GetWeightAccelMedium(),
			AccelFar:     t.GetWeightAccelFar(),
		},
	}
}

// Grades holds the membership grades of one ray distance.
type Grades struct {
	Near   float64 `json:"near"`
	Medium float64 `json:"medium"`
	Far    float64 `json:"far"`
}

// Decision is the controller output for one tick. Turn and Accel are in
// [-1, 1]; the per-ray grades are carried for telemetry.
type Decision struct {
	Turn  float64 `json:"turn"`
	Accel float64 `json:"accel"`

	Left   Grades `json:"left"`
	Center Grades `json:"center"`
	Right  Grades `json:"right"`
}

// Controller fuzzifies ray distances and applies the weighted rule base.
// It is safe for concurrent use; UpdateConfig may be called while Decide
// is in flight.
type Controller struct {
	mu       sync.RWMutex
	cfg      Config
	distance *fuzzy.Variable
}

// NewController builds a controller from the given configuration.
func NewController(cfg Config) (*Controller, error) {
	c := &Controller{}
	if err := c.UpdateConfig(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateConfig replaces the controller configuration, rebuilding the
// distance variable. The previous configuration is kept on error.
func (c *Controller) UpdateConfig(cfg Config) error {
	if cfg.MaxRange <= 0 {
		return fmt.Errorf("max range must be positive, got %f", cfg.MaxRange)
	}
	v, err := fuzzy.NewVariable("distance", 0, cfg.MaxRange)
	if err != nil {
		return fmt.Errorf("build distance variable: %w", err)
	}
	v.AddSet(SetNear, fuzzy.FallingRamp(cfg.NearLow, cfg.NearHigh))
	v.AddSet(SetMedium, fuzzy.FallingRamp(cfg.MediumLow, cfg.MediumHigh))
	v.AddSet(SetFar, fuzzy.RisingRamp(cfg.FarLow, cfg.FarHigh))

	c.mu.Lock()
	c.cfg = cfg
	c.distance = v
	c.mu.Unlock()
	return nil
}

// Config returns a copy of the current configuration.
func (c *Controller) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *Controller) grade(x float64) Grades {
	g := c.distance.Fuzzify(x)
	return Grades{
		Near:   g[SetNear],
		Medium: g[SetMedium],
		Far:    g[SetFar],
	}
}

// Decide computes the turn and acceleration commands for the given left,
// center and right ray distances.
func (c *Controller) Decide(left, center, right float64) Decision {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d := Decision{
		Left:   c.grade(left),
		Center: c.grade(center),
		Right:  c.grade(right),
	}
	w := c.cfg.Weights

	// Steering: walls on the right push left (negative), walls on the left
	// push right (positive), and a closing center distance biases the turn.
	turnLeft := d.Right.Near*w.RightNear +
		d.Right.Medium*w.RightMedium +
		(1-d.Center.Far)*w.CenterNotFar
	turnRight := d.Left.Near*w.LeftNear +
		d.Left.Medium*w.LeftMedium +
		(1-d.Left.Far)*w.LeftNotFar
	d.Turn = fuzzy.Clamp(turnLeft+turnRight, -1, 1)

	// Acceleration follows the center ray only.
	d.Accel = fuzzy.Clamp(
		d.Center.Near*w.AccelNear+
			d.Center.Medium*w.AccelMedium+
			d.Center.Far*w.AccelFar,
		-1, 1)

	return d
}
