package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/steerlab/fuzzdrive/internal/config"
	"github.com/steerlab/fuzzdrive/internal/control"
	"github.com/steerlab/fuzzdrive/internal/sim"
	"github.com/steerlab/fuzzdrive/internal/storage/sqlite"
	"github.com/steerlab/fuzzdrive/internal/timeutil"
)

func TestRunHeadlessRecordsRunAndPlots(t *testing.T) {
	tuning := config.EmptyTuningConfig()

	controller, err := control.NewController(control.ConfigFromTuning(tuning))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	engine, err := sim.NewEngine(sim.ConfigFromTuning(tuning), controller, timeutil.RealClock{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "telemetry.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	plotDir := filepath.Join(dir, "plots")
	if err := runHeadless(context.Background(), engine, db, tuning, 100, plotDir); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].FinishedUnixNanos == nil {
		t.Error("run was not marked finished")
	}

	samples, err := db.GetSamples(runs[0].ID, 0)
	if err != nil {
		t.Fatalf("GetSamples: %v", err)
	}
	if len(samples) != 100 {
		t.Errorf("recorded %d samples, want 100", len(samples))
	}

	for _, name := range []string{"trajectory.png", "distances.png", "control.png"} {
		if _, err := os.Stat(filepath.Join(plotDir, name)); err != nil {
			t.Errorf("missing plot %s: %v", name, err)
		}
	}
}

func TestRunHeadlessWithoutDB(t *testing.T) {
	tuning := config.EmptyTuningConfig()

	controller, err := control.NewController(control.ConfigFromTuning(tuning))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	engine, err := sim.NewEngine(sim.ConfigFromTuning(tuning), controller, timeutil.RealClock{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := runHeadless(context.Background(), engine, nil, tuning, 10, ""); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	if sample, ok := engine.LastSample(); !ok || sample.Tick != 10 {
		t.Errorf("expected last tick 10, got %+v (ok=%v)", sample, ok)
	}
}
