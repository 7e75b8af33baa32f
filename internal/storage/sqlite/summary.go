package sqlite

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/steerlab/fuzzdrive/internal/sim"
)

// RunSummary is a statistical rollup of one run's telemetry.
type RunSummary struct {
	RunID string `json:"run_id"`
	Ticks int    `json:"ticks"`

	MeanSpeed float64 `json:"mean_speed"` // mean |speed| in units per tick
	MaxSpeed  float64 `json:"max_speed"`

	MinCenterDistance float64 `json:"min_center_distance"`
	P95AbsTurn        float64 `json:"p95_abs_turn"`

	// DistanceTraveled is the accumulated |speed| over all ticks.
	DistanceTraveled float64 `json:"distance_traveled"`
}

// Summarize loads a run's samples and computes its rollup.
func (db *DB) Summarize(runID string) (*RunSummary, error) {
	if _, err := db.GetRun(runID); err != nil {
		return nil, err
	}
	samples, err := db.GetSamples(runID, 0)
	if err != nil {
		return nil, fmt.Errorf("load samples for summary: %w", err)
	}
	return SummarizeSamples(runID, samples), nil
}

// SummarizeSamples computes the rollup for a sample set already in memory.
func SummarizeSamples(runID string, samples []sim.TickSample) *RunSummary {
	summary := &RunSummary{RunID: runID, Ticks: len(samples)}
	if len(samples) == 0 {
		return summary
	}

	speeds := make([]float64, len(samples))
	turns := make([]float64, len(samples))
	summary.MinCenterDistance = math.Inf(1)

	for i, s := range samples {
		speeds[i] = math.Abs(s.Speed)
		turns[i] = math.Abs(s.Control.Turn)
		if s.CenterDistance < summary.MinCenterDistance {
			summary.MinCenterDistance = s.CenterDistance
		}
		if speeds[i] > summary.MaxSpeed {
			summary.MaxSpeed = speeds[i]
		}
		summary.DistanceTraveled += speeds[i]
	}

	summary.MeanSpeed = stat.Mean(speeds, nil)

	sort.Float64s(turns)
	summary.P95AbsTurn = stat.Quantile(0.95, stat.Empirical, turns, nil)

	return summary
}
