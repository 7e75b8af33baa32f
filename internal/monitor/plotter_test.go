package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/steerlab/fuzzdrive/internal/control"
	"github.com/steerlab/fuzzdrive/internal/sim"
)

func testArena(t *testing.T) *sim.Arena {
	t.Helper()
	a, err := sim.NewBoxArena(800, 600)
	if err != nil {
		t.Fatalf("NewBoxArena: %v", err)
	}
	return a
}

func fakeSamples(n int) []sim.TickSample {
	samples := make([]sim.TickSample, n)
	for i := range samples {
		samples[i] = sim.TickSample{
			Tick:           int64(i + 1),
			X:              400 + float64(i),
			Y:              300 + float64(i)/2,
			HeadingDeg:     float64(i),
			LeftDistance:   200,
			CenterDistance: 200 - float64(i),
			RightDistance:  180,
			Control:        control.Decision{Turn: 0.1, Accel: 0.9},
			Speed:          1.8,
		}
	}
	return samples
}

func TestTrackPlotterGeneratesFiles(t *testing.T) {
	tp := NewTrackPlotter(testArena(t))
	dir := filepath.Join(t.TempDir(), "plots")

	if err := tp.Start(dir); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !tp.IsEnabled() {
		t.Fatal("plotter should be enabled after Start")
	}

	for _, s := range fakeSamples(50) {
		tp.Sample(s)
	}
	tp.Stop()

	if got := tp.SampleCount(); got != 50 {
		t.Fatalf("SampleCount = %d, want 50", got)
	}

	count, err := tp.GeneratePlots()
	if err != nil {
		t.Fatalf("GeneratePlots: %v", err)
	}
	if count != 3 {
		t.Errorf("generated %d plots, want 3", count)
	}

	for _, name := range []string{"trajectory.png", "distances.png", "control.png"} {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("expected plot file %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("plot file %s is empty", name)
		}
	}
}

func TestTrackPlotterIgnoresSamplesWhenStopped(t *testing.T) {
	tp := NewTrackPlotter(testArena(t))

	tp.Sample(sim.TickSample{Tick: 1})
	if got := tp.SampleCount(); got != 0 {
		t.Errorf("samples recorded before Start = %d, want 0", got)
	}
}

func TestTrackPlotterNoSamples(t *testing.T) {
	tp := NewTrackPlotter(testArena(t))
	if err := tp.Start(t.TempDir()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	count, err := tp.GeneratePlots()
	if err != nil {
		t.Fatalf("GeneratePlots: %v", err)
	}
	if count != 0 {
		t.Errorf("generated %d plots with no samples, want 0", count)
	}
}

func TestGenerateColorsDistinct(t *testing.T) {
	colors := generateColors(5)
	if len(colors) != 5 {
		t.Fatalf("expected 5 colors, got %d", len(colors))
	}
	seen := make(map[[3]uint32]bool)
	for _, c := range colors {
		r, g, b, _ := c.RGBA()
		key := [3]uint32{r, g, b}
		if seen[key] {
			t.Error("duplicate color generated")
		}
		seen[key] = true
	}
}
