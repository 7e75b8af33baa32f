package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steerlab/fuzzdrive/internal/api"
	"github.com/steerlab/fuzzdrive/internal/config"
	"github.com/steerlab/fuzzdrive/internal/control"
	"github.com/steerlab/fuzzdrive/internal/monitor"
	"github.com/steerlab/fuzzdrive/internal/sim"
	"github.com/steerlab/fuzzdrive/internal/storage/sqlite"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	configPath = flag.String("config", "", "Path to tuning JSON (default: built-in values)")
	dbFile     = flag.String("db", "telemetry.db", "SQLite database file (empty to disable recording)")
	ticks      = flag.Int64("ticks", 0, "Run headless for N ticks and exit (0 = serve forever)")
	plotDir    = flag.String("plots", "", "Write PNG plots to this directory after a headless run")
)

func loadTuning() *config.TuningConfig {
	if *configPath == "" {
		return config.EmptyTuningConfig()
	}
	tuning, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return tuning
}

// Main
func main() {
	flag.Parse()

	if *listen == "" && *ticks == 0 {
		log.Fatal("Listen address is required")
	}

	tuning := loadTuning()

	controller, err := control.NewController(control.ConfigFromTuning(tuning))
	if err != nil {
		log.Fatalf("failed to build controller: %v", err)
	}

	engine, err := sim.NewEngine(sim.ConfigFromTuning(tuning), controller, nil)
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}

	var db *sqlite.DB
	if *dbFile != "" {
		db, err = sqlite.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *ticks > 0 {
		if err := runHeadless(ctx, engine, db, tuning, *ticks, *plotDir); err != nil {
			log.Fatalf("headless run failed: %v", err)
		}
		return
	}

	if err := serve(ctx, engine, db, tuning); err != nil {
		log.Fatalf("server failed: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}

func startRun(db *sqlite.DB, tuning *config.TuningConfig, engine *sim.Engine) (string, error) {
	if db == nil {
		return "", nil
	}
	params, err := json.Marshal(tuning)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	arena := engine.Arena()
	return db.CreateRun(time.Now().UnixNano(), arena.Width, arena.Height, string(params))
}

// runHeadless drives the simulation for a fixed number of ticks without the
// tick-rate pacing or the HTTP server, records the run, and logs its summary.
func runHeadless(ctx context.Context, engine *sim.Engine, db *sqlite.DB, tuning *config.TuningConfig, n int64, plotDir string) error {
	runID, err := startRun(db, tuning, engine)
	if err != nil {
		return err
	}

	log.Printf("running %d ticks headless", n)
	samples, err := engine.RunTicks(ctx, n)
	if err != nil {
		return err
	}

	if db != nil {
		if err := db.InsertSamples(runID, samples); err != nil {
			return fmt.Errorf("record samples: %w", err)
		}
		if err := db.FinishRun(runID, time.Now().UnixNano()); err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		log.Printf("recorded run %s (%d samples)", runID, len(samples))
	}

	summary := sqlite.SummarizeSamples(runID, samples)
	log.Printf("summary: ticks=%d mean_speed=%.3f max_speed=%.3f min_center_distance=%.1f p95_abs_turn=%.3f distance=%.1f",
		summary.Ticks, summary.MeanSpeed, summary.MaxSpeed, summary.MinCenterDistance, summary.P95AbsTurn, summary.DistanceTraveled)

	if plotDir != "" {
		tp := monitor.NewTrackPlotter(engine.Arena())
		if err := tp.Start(plotDir); err != nil {
			return err
		}
		for _, s := range samples {
			tp.Sample(s)
		}
		tp.Stop()
		count, err := tp.GeneratePlots()
		if err != nil {
			return fmt.Errorf("generate plots: %w", err)
		}
		log.Printf("wrote %d plots to %s", count, plotDir)
	}
	return nil
}

// serve runs the simulation loop, the telemetry recorder, and the HTTP
// server until the context is cancelled.
func serve(ctx context.Context, engine *sim.Engine, db *sqlite.DB, tuning *config.TuningConfig) error {
	runID, err := startRun(db, tuning, engine)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// simulation loop paced at the configured tick rate
	g.Go(func() error {
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		log.Print("simulation routine terminated")
		return nil
	})

	// recorder routine: batch tick samples into the database
	if db != nil {
		g.Go(func() error {
			defer func() {
				if err := db.FinishRun(runID, time.Now().UnixNano()); err != nil {
					log.Printf("failed to finish run: %v", err)
				}
			}()

			flushSize := tuning.GetSampleFlushSize()
			batch := make([]sim.TickSample, 0, flushSize)
			flush := func() {
				if len(batch) == 0 {
					return
				}
				if err := db.InsertSamples(runID, batch); err != nil {
					log.Printf("failed to record samples: %v", err)
				}
				batch = batch[:0]
			}

			id, c := engine.Subscribe()
			defer engine.Unsubscribe(id)
			for {
				select {
				case sample := <-c:
					batch = append(batch, sample)
					if len(batch) >= flushSize {
						flush()
					}
				case <-ctx.Done():
					flush()
					log.Printf("recorder routine terminated")
					return nil
				}
			}
		})
	}

	// HTTP server goroutine
	g.Go(func() error {
		server := api.NewServer(api.ServerConfig{
			Address: *listen,
			Engine:  engine,
			DB:      db,
			Tuning:  tuning,
		})
		return server.Start(ctx)
	})

	return g.Wait()
}
