// Command plot-run renders PNG plots for a stored simulation run.
// With no -run flag it lists the runs in the database.
package main

import (
	"flag"
	"log"

	"github.com/steerlab/fuzzdrive/internal/monitor"
	"github.com/steerlab/fuzzdrive/internal/sim"
	"github.com/steerlab/fuzzdrive/internal/storage/sqlite"
)

func main() {
	dbFile := flag.String("db", "telemetry.db", "SQLite database file")
	runID := flag.String("run", "", "run ID to plot (empty: list runs)")
	outDir := flag.String("o", "plots", "output directory")
	flag.Parse()

	db, err := sqlite.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if *runID == "" {
		listRuns(db)
		return
	}

	run, err := db.GetRun(*runID)
	if err != nil {
		log.Fatalf("failed to load run: %v", err)
	}
	samples, err := db.GetSamples(*runID, 0)
	if err != nil {
		log.Fatalf("failed to load samples: %v", err)
	}
	if len(samples) == 0 {
		log.Fatalf("run %s has no samples", *runID)
	}

	arena, err := sim.NewBoxArena(run.ArenaWidth, run.ArenaHeight)
	if err != nil {
		log.Fatalf("failed to build arena: %v", err)
	}

	tp := monitor.NewTrackPlotter(arena)
	if err := tp.Start(*outDir); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}
	for _, s := range samples {
		tp.Sample(s)
	}
	tp.Stop()

	count, err := tp.GeneratePlots()
	if err != nil {
		log.Fatalf("failed to generate plots: %v", err)
	}

	summary := sqlite.SummarizeSamples(*runID, samples)
	log.Printf("run %s: %d ticks, mean speed %.3f, min center distance %.1f", *runID, summary.Ticks, summary.MeanSpeed, summary.MinCenterDistance)
	log.Printf("✓ wrote %d plots to %s", count, *outDir)
}

func listRuns(db *sqlite.DB) {
	runs, err := db.ListRuns(0)
	if err != nil {
		log.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		log.Print("no runs recorded")
		return
	}
	for _, r := range runs {
		state := "running"
		if r.FinishedUnixNanos != nil {
			state = "finished"
		}
		log.Printf("%s  started=%d  %s  arena=%.0fx%.0f", r.ID, r.StartedUnixNanos, state, r.ArenaWidth, r.ArenaHeight)
	}
}
