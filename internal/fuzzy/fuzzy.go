// Package fuzzy implements the membership primitives used by the steering
// controller: piecewise-linear ramp and triangle functions and linguistic
// variables that map a crisp input to per-set membership grades.
package fuzzy

import (
	"fmt"
	"sort"
)

// Membership maps a crisp input to a grade in [0, 1].
type Membership func(x float64) float64

// FallingRamp returns a membership function with grade 1 at or below low,
// grade 0 at or above high, and a linear slope in between.
func FallingRamp(low, high float64) Membership {
	return func(x float64) float64 {
		if x <= low {
			return 1
		}
		if x >= high {
			return 0
		}
		return (high - x) / (high - low)
	}
}

// RisingRamp returns a membership function with grade 0 at or below low,
// grade 1 at or above high, and a linear slope in between.
func RisingRamp(low, high float64) Membership {
	return func(x float64) float64 {
		if x <= low {
			return 0
		}
		if x >= high {
			return 1
		}
		return (x - low) / (high - low)
	}
}

// Triangle returns a membership function that peaks at 1 at peak and falls
// linearly to 0 at low and high.
func Triangle(low, peak, high float64) Membership {
	return func(x float64) float64 {
		if x <= low || x >= high {
			return 0
		}
		if x == peak {
			return 1
		}
		if x < peak {
			return (x - low) / (peak - low)
		}
		return (high - x) / (high - peak)
	}
}

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Variable is a linguistic variable: a named universe with named membership
// sets. Inputs outside [Min, Max] are clamped to the universe before grading.
type Variable struct {
	Name string
	Min  float64
	Max  float64

	sets map[string]Membership
}

// NewVariable creates an empty variable over the universe [min, max].
func NewVariable(name string, min, max float64) (*Variable, error) {
	if min >= max {
		return nil, fmt.Errorf("variable %q: universe min %v must be below max %v", name, min, max)
	}
	return &Variable{
		Name: name,
		Min:  min,
		Max:  max,
		sets: make(map[string]Membership),
	}, nil
}

// AddSet registers a named membership set. Re-registering a name replaces it.
func (v *Variable) AddSet(name string, m Membership) {
	v.sets[name] = m
}

// SetNames returns the registered set names in sorted order.
func (v *Variable) SetNames() []string {
	names := make([]string, 0, len(v.sets))
	for name := range v.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Grade evaluates a single named set at x (clamped to the universe).
// Returns an error if the set does not exist.
func (v *Variable) Grade(name string, x float64) (float64, error) {
	m, ok := v.sets[name]
	if !ok {
		return 0, fmt.Errorf("variable %q has no set %q", v.Name, name)
	}
	return m(Clamp(x, v.Min, v.Max)), nil
}

// Fuzzify evaluates all sets at x (clamped to the universe) and returns the
// grade of each by set name.
func (v *Variable) Fuzzify(x float64) map[string]float64 {
	x = Clamp(x, v.Min, v.Max)
	grades := make(map[string]float64, len(v.sets))
	for name, m := range v.sets {
		grades[name] = m(x)
	}
	return grades
}
