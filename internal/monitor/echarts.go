package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/steerlab/fuzzdrive/internal/sim"
	"github.com/steerlab/fuzzdrive/internal/storage/sqlite"
)

// maxChartSamples limits payload size for the debug charts.
const maxChartSamples = 20000

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func loadChartSamples(db *sqlite.DB, w http.ResponseWriter, r *http.Request) ([]sim.TickSample, string, bool) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing 'run_id' parameter")
		return nil, "", false
	}

	limit := maxChartSamples
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= maxChartSamples {
			limit = v
		}
	}

	if _, err := db.GetRun(runID); err != nil {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("run %q not found", runID))
		return nil, "", false
	}

	samples, err := db.GetSamples(runID, limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load samples: %v", err))
		return nil, "", false
	}
	if len(samples) == 0 {
		writeJSONError(w, http.StatusNotFound, "run has no samples")
		return nil, "", false
	}
	return samples, runID, true
}

// RunChartHandler renders a line chart (HTML) of a stored run's ray
// distances and control outputs using go-echarts. This is a debugging-only
// endpoint to inspect a run without external tooling.
// Query params:
//   - run_id (required)
//   - limit (optional; default 20000)
func RunChartHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		samples, runID, ok := loadChartSamples(db, w, r)
		if !ok {
			return
		}

		ticks := make([]string, len(samples))
		left := make([]opts.LineData, len(samples))
		center := make([]opts.LineData, len(samples))
		right := make([]opts.LineData, len(samples))
		turn := make([]opts.LineData, len(samples))
		accel := make([]opts.LineData, len(samples))
		for i, s := range samples {
			ticks[i] = strconv.FormatInt(s.Tick, 10)
			left[i] = opts.LineData{Value: s.LeftDistance}
			center[i] = opts.LineData{Value: s.CenterDistance}
			right[i] = opts.LineData{Value: s.RightDistance}
			turn[i] = opts.LineData{Value: s.Control.Turn}
			accel[i] = opts.LineData{Value: s.Control.Accel}
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run Telemetry", Theme: "dark", Width: "1200px", Height: "700px"}),
			charts.WithTitleOpts(opts.Title{Title: "Run Telemetry", Subtitle: fmt.Sprintf("run=%s samples=%d", runID, len(samples))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Tick"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		)
		line.SetXAxis(ticks).
			AddSeries("left distance", left).
			AddSeries("center distance", center).
			AddSeries("right distance", right).
			AddSeries("turn", turn).
			AddSeries("accel", accel)

		var buf bytes.Buffer
		if err := line.Render(&buf); err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}

// PathChartHandler renders a scatter plot (HTML) of a stored run's
// trajectory in arena coordinates using go-echarts.
// Query params:
//   - run_id (required)
//   - limit (optional; default 20000)
func PathChartHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		samples, runID, ok := loadChartSamples(db, w, r)
		if !ok {
			return
		}

		run, err := db.GetRun(runID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load run: %v", err))
			return
		}

		data := make([]opts.ScatterData, len(samples))
		for i, s := range samples {
			// Third dimension carries the tick for the visual map gradient.
			data[i] = opts.ScatterData{Value: []interface{}{s.X, s.Y, s.Tick}}
		}

		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run Trajectory", Theme: "dark", Width: "900px", Height: "700px"}),
			charts.WithTitleOpts(opts.Title{Title: "Run Trajectory", Subtitle: fmt.Sprintf("run=%s samples=%d", runID, len(samples))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: run.ArenaWidth, Name: "X (units)"}),
			charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: run.ArenaHeight, Name: "Y (units)"}),
			charts.WithVisualMapOpts(opts.VisualMap{
				Show:       opts.Bool(true),
				Calculable: opts.Bool(true),
				Min:        0,
				Max:        float32(samples[len(samples)-1].Tick),
				Dimension:  "2",
				InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
			}),
		)
		scatter.AddSeries("trajectory", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

		var buf bytes.Buffer
		if err := scatter.Render(&buf); err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}
