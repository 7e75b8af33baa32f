// Package api serves the simulator's HTTP interface: live state, the SSE
// telemetry stream, stored runs, and runtime tuning updates.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/steerlab/fuzzdrive/internal/config"
	"github.com/steerlab/fuzzdrive/internal/control"
	"github.com/steerlab/fuzzdrive/internal/monitor"
	"github.com/steerlab/fuzzdrive/internal/sim"
	"github.com/steerlab/fuzzdrive/internal/storage/sqlite"
	"github.com/steerlab/fuzzdrive/internal/units"
)

// Engine is the simulation surface the server needs: the latest sample,
// the telemetry stream, and the controller for runtime tuning updates.
type Engine interface {
	LastSample() (sim.TickSample, bool)
	Subscribe() (string, chan sim.TickSample)
	Unsubscribe(string)
	Controller() *control.Controller
}

// ServerConfig contains configuration options for the web server.
type ServerConfig struct {
	Address string
	Engine  Engine
	DB      *sqlite.DB
	Tuning  *config.TuningConfig
}

// Server handles the HTTP interface for the simulator.
type Server struct {
	address string
	engine  Engine
	db      *sqlite.DB
	server  *http.Server

	tuningMu sync.Mutex
	tuning   *config.TuningConfig
}

// NewServer creates a new web server with the provided configuration.
func NewServer(cfg ServerConfig) *Server {
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	s := &Server{
		address: cfg.Address,
		engine:  cfg.Engine,
		db:      cfg.DB,
		tuning:  tuning,
	}
	s.server = &http.Server{
		Addr:    s.address,
		Handler: s.ServeMux(),
	}
	return s
}

// ServeMux configures the HTTP routes and handlers.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/samples", s.handleRunSamples)
	mux.HandleFunc("/api/runs/summary", s.handleRunSummary)
	mux.HandleFunc("/api/params", s.handleParams)

	if s.db != nil {
		mux.HandleFunc("/debug/charts/run", monitor.RunChartHandler(s.db))
		mux.HandleFunc("/debug/charts/path", monitor.PathChartHandler(s.db))
	}

	return mux
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
// when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleState returns the most recent tick sample.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	sample, ok := s.engine.LastSample()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no tick has run yet")
		return
	}
	s.writeJSON(w, http.StatusOK, sample)
}

// handleStream issues Server-Sent Events with one data frame per tick.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := s.engine.Subscribe()
	defer s.engine.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case sample, ok := <-c:
			if !ok {
				// Channel closed, exit gracefully
				return
			}
			payload, err := json.Marshal(sample)
			if err != nil {
				log.Printf("failed to marshal tick sample: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleRuns lists stored runs, newest first.
// Query params:
//
//	limit (optional, default 50)
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotFound, "no database configured")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*sqlite.Run{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) runFromQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotFound, "no database configured")
		return "", false
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "missing 'run_id' parameter")
		return "", false
	}
	if _, err := s.db.GetRun(runID); err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("run %q not found", runID))
		return "", false
	}
	return runID, true
}

// handleRunSamples returns a run's samples ordered by tick.
// Query params:
//
//	run_id (required)
//	limit (optional, default all)
func (s *Server) handleRunSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	runID, ok := s.runFromQuery(w, r)
	if !ok {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	samples, err := s.db.GetSamples(runID, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load samples: %v", err))
		return
	}
	if samples == nil {
		samples = []sim.TickSample{}
	}
	s.writeJSON(w, http.StatusOK, samples)
}

// handleRunSummary returns a run's statistical rollup.
// Query params:
//
//	run_id (required)
//	units (optional: ups, mps, kmph, kph; default reports units per tick)
func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	runID, ok := s.runFromQuery(w, r)
	if !ok {
		return
	}

	targetUnits := r.URL.Query().Get("units")
	if targetUnits != "" && !units.IsValid(targetUnits) {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid units %q (valid: %s)", targetUnits, units.GetValidUnitsString()))
		return
	}

	summary, err := s.db.Summarize(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to summarize run: %v", err))
		return
	}

	if targetUnits != "" {
		// Stored speeds are units per tick; scale by the tick rate first.
		s.tuningMu.Lock()
		hz := s.tuning.GetTickRateHz()
		s.tuningMu.Unlock()
		summary.MeanSpeed = units.ConvertSpeed(summary.MeanSpeed*hz, targetUnits)
		summary.MaxSpeed = units.ConvertSpeed(summary.MaxSpeed*hz, targetUnits)
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// handleParams reads or patches the live tuning values. POST accepts the
// same JSON schema as the config file; omitted fields are left unchanged.
// Controller parameters (breakpoints, weights, ray range) take effect
// immediately; arena and kinematics values apply to the next run.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.tuningMu.Lock()
		defer s.tuningMu.Unlock()
		s.writeJSON(w, http.StatusOK, s.tuning)

	case http.MethodPost:
		patch := config.EmptyTuningConfig()
		if err := json.NewDecoder(r.Body).Decode(patch); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
		if err := patch.Validate(); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid params: %v", err))
			return
		}

		s.tuningMu.Lock()
		defer s.tuningMu.Unlock()

		merged := *s.tuning
		merged.Merge(patch)
		if err := merged.Validate(); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid merged params: %v", err))
			return
		}

		if s.engine != nil {
			if err := s.engine.Controller().UpdateConfig(control.ConfigFromTuning(&merged)); err != nil {
				s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("failed to apply params: %v", err))
				return
			}
		}
		s.tuning = &merged
		s.writeJSON(w, http.StatusOK, s.tuning)

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
