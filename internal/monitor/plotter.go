// Package monitor renders simulation telemetry for inspection: gonum/plot
// PNGs generated after a run and go-echarts HTML charts served over HTTP.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/steerlab/fuzzdrive/internal/sim"
)

// TrackPlotter records tick samples over a run for visualization. Call
// Sample once per tick (or feed it a stored run), then GeneratePlots to
// produce output files.
type TrackPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string

	arena   *sim.Arena
	samples []sim.TickSample
}

// NewTrackPlotter creates a plotter for runs inside the given arena. The
// arena outline is drawn behind the trajectory.
func NewTrackPlotter(arena *sim.Arena) *TrackPlotter {
	return &TrackPlotter{arena: arena}
}

// Start initializes the plotter for a new run, creating outputDir.
func (tp *TrackPlotter) Start(outputDir string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	tp.outputDir = outputDir
	tp.enabled = true
	tp.samples = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (tp *TrackPlotter) Stop() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (tp *TrackPlotter) IsEnabled() bool {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.enabled
}

// Sample records one tick sample.
func (tp *TrackPlotter) Sample(s sim.TickSample) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if !tp.enabled {
		return
	}
	tp.samples = append(tp.samples, s)
}

// SampleCount returns the number of recorded samples.
func (tp *TrackPlotter) SampleCount() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.samples)
}

// OutputDir returns the directory plots are written to.
func (tp *TrackPlotter) OutputDir() string {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.outputDir
}

// GeneratePlots writes the trajectory, distance and control plots and
// returns the number of files produced.
func (tp *TrackPlotter) GeneratePlots() (int, error) {
	tp.mu.Lock()
	samples := make([]sim.TickSample, len(tp.samples))
	copy(samples, tp.samples)
	outputDir := tp.outputDir
	tp.mu.Unlock()

	if len(samples) == 0 {
		return 0, nil
	}
	if outputDir == "" {
		return 0, fmt.Errorf("plotter not started: no output directory")
	}

	count := 0
	if err := tp.generateTrajectoryPlot(samples, filepath.Join(outputDir, "trajectory.png")); err != nil {
		return count, err
	}
	count++
	if err := generateDistancePlot(samples, filepath.Join(outputDir, "distances.png")); err != nil {
		return count, err
	}
	count++
	if err := generateControlPlot(samples, filepath.Join(outputDir, "control.png")); err != nil {
		return count, err
	}
	count++
	return count, nil
}

func (tp *TrackPlotter) generateTrajectoryPlot(samples []sim.TickSample, path string) error {
	p := plot.New()
	p.Title.Text = "Trajectory"
	p.X.Label.Text = "X (units)"
	p.Y.Label.Text = "Y (units)"

	// Draw the arena walls behind the path.
	for _, w := range tp.arena.Walls() {
		wallPts := plotter.XYs{
			{X: w.A.X, Y: w.A.Y},
			{X: w.B.X, Y: w.B.Y},
		}
		wallLine, err := plotter.NewLine(wallPts)
		if err != nil {
			return err
		}
		wallLine.Color = color.Gray{Y: 128}
		wallLine.Width = vg.Points(2)
		p.Add(wallLine)
	}

	pathPts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pathPts[i] = plotter.XY{X: s.X, Y: s.Y}
	}
	pathLine, err := plotter.NewLine(pathPts)
	if err != nil {
		return err
	}
	pathLine.Color = color.RGBA{R: 0, G: 150, B: 255, A: 255}
	pathLine.Width = vg.Points(1)
	p.Add(pathLine)
	p.Legend.Add("car path", pathLine)

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

func generateDistancePlot(samples []sim.TickSample, path string) error {
	p := plot.New()
	p.Title.Text = "Ray Distances"
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Distance (units)"

	series := []struct {
		name  string
		value func(sim.TickSample) float64
	}{
		{"left", func(s sim.TickSample) float64 { return s.LeftDistance }},
		{"center", func(s sim.TickSample) float64 { return s.CenterDistance }},
		{"right", func(s sim.TickSample) float64 { return s.RightDistance }},
	}
	return addSeriesLines(p, samples, series, path)
}

func generateControlPlot(samples []sim.TickSample, path string) error {
	p := plot.New()
	p.Title.Text = "Control Outputs"
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Value"

	series := []struct {
		name  string
		value func(sim.TickSample) float64
	}{
		{"turn", func(s sim.TickSample) float64 { return s.Control.Turn }},
		{"accel", func(s sim.TickSample) float64 { return s.Control.Accel }},
		{"speed", func(s sim.TickSample) float64 { return s.Speed }},
	}
	return addSeriesLines(p, samples, series, path)
}

func addSeriesLines(p *plot.Plot, samples []sim.TickSample, series []struct {
	name  string
	value func(sim.TickSample) float64
}, path string) error {
	colors := generateColors(len(series))
	for i, sr := range series {
		pts := make(plotter.XYs, len(samples))
		for j, s := range samples {
			pts[j] = plotter.XY{X: float64(s.Tick), Y: sr.value(s)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(sr.name, line)
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// generateColors produces n visually distinct colors spread around the hue
// wheel.
func generateColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		h := float64(i) / float64(n)
		r, g, b := hslToRGB(h, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var fr, fg, fb float64
	if s == 0 {
		fr, fg, fb = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		fr = hueToRGB(p, q, h+1.0/3.0)
		fg = hueToRGB(p, q, h)
		fb = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(fr * 255), uint8(fg * 255), uint8(fb * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}

// FormatTimestamp renders a time for use in plot output directory names.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}
