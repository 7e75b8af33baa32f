package sim

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/steerlab/fuzzdrive/internal/config"
	"github.com/steerlab/fuzzdrive/internal/control"
	"github.com/steerlab/fuzzdrive/internal/monitoring"
	"github.com/steerlab/fuzzdrive/internal/timeutil"
)

// subscriberBuffer is the channel depth for each subscriber. A subscriber
// that falls more than this many ticks behind starts dropping samples; the
// tick loop never blocks on a slow consumer.
const subscriberBuffer = 64

// Config holds the engine parameters.
type Config struct {
	ArenaWidth   float64
	ArenaHeight  float64
	BaseSpeed    float64
	TurnRateDeg  float64
	RaySpreadDeg float64
	RayMaxRange  float64
	TickInterval time.Duration
}

// DefaultEngineConfig returns the canonical engine parameters.
func DefaultEngineConfig() Config {
	return Config{
		ArenaWidth:   800,
		ArenaHeight:  600,
		BaseSpeed:    2.0,
		TurnRateDeg:  2.0,
		RaySpreadDeg: 45.0,
		RayMaxRange:  200.0,
		TickInterval: time.Second / 144,
	}
}

// ConfigFromTuning builds an engine Config from the tuning file values.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		ArenaWidth:   t.GetArenaWidth(),
		ArenaHeight:  t.GetArenaHeight(),
		BaseSpeed:    t.GetBaseSpeed(),
		TurnRateDeg:  t.GetTurnRateDeg(),
		RaySpreadDeg: t.GetRaySpreadDeg(),
		RayMaxRange:  t.GetRayMaxRange(),
		TickInterval: t.GetTickInterval(),
	}
}

// TickSample is the telemetry record produced once per tick.
type TickSample struct {
	Tick      int64 `json:"tick"`
	UnixNanos int64 `json:"unix_nanos"`

	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	HeadingDeg float64 `json:"heading_deg"`

	LeftDistance   float64 `json:"left_distance"`
	CenterDistance float64 `json:"center_distance"`
	RightDistance  float64 `json:"right_distance"`

	Control control.Decision `json:"control"`

	// Speed is the signed speed applied this tick (units per tick).
	Speed float64 `json:"speed"`
}

// Engine advances the simulated world one tick at a time and publishes a
// TickSample per tick to subscribers. Exactly one goroutine mutates car
// state: the Run loop (or a test calling StepOnce directly).
type Engine struct {
	cfg        Config
	arena      *Arena
	controller *control.Controller
	clock      timeutil.Clock

	mu         sync.Mutex
	car        Car
	tick       int64
	lastSample *TickSample

	subscriberMu sync.Mutex
	subscribers  map[string]chan TickSample
}

// NewEngine builds an engine with a box arena from cfg and the car placed at
// the arena center with heading 0.
func NewEngine(cfg Config, controller *control.Controller, clock timeutil.Clock) (*Engine, error) {
	if controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %v", cfg.TickInterval)
	}
	if cfg.RayMaxRange <= 0 {
		return nil, fmt.Errorf("ray max range must be positive, got %f", cfg.RayMaxRange)
	}

	arena, err := NewBoxArena(cfg.ArenaWidth, cfg.ArenaHeight)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		arena:      arena,
		controller: controller,
		clock:      clock,
		car: Car{
			X: cfg.ArenaWidth / 2,
			Y: cfg.ArenaHeight / 2,
		},
		subscribers: make(map[string]chan TickSample),
	}, nil
}

// Arena returns the engine's arena.
func (e *Engine) Arena() *Arena {
	return e.arena
}

// Controller returns the engine's controller.
func (e *Engine) Controller() *control.Controller {
	return e.controller
}

// Car returns a copy of the current car pose.
func (e *Engine) Car() Car {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.car
}

// PlaceCar repositions the car. Rejects positions outside the arena.
func (e *Engine) PlaceCar(x, y, headingDeg float64) error {
	if !e.arena.Contains(Point{X: x, Y: y}) {
		return fmt.Errorf("position (%f, %f) is outside the arena", x, y)
	}
	e.mu.Lock()
	e.car = Car{X: x, Y: y, HeadingDeg: headingDeg}
	e.mu.Unlock()
	return nil
}

// LastSample returns the most recent tick sample, if any tick has run.
func (e *Engine) LastSample() (TickSample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSample == nil {
		return TickSample{}, false
	}
	return *e.lastSample, true
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a new channel receiving one TickSample per tick. The
// returned ID identifies the channel when unsubscribing.
func (e *Engine) Subscribe() (string, chan TickSample) {
	id := randomID()
	ch := make(chan TickSample, subscriberBuffer)
	e.subscriberMu.Lock()
	defer e.subscriberMu.Unlock()
	e.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (e *Engine) Unsubscribe(id string) {
	e.subscriberMu.Lock()
	defer e.subscriberMu.Unlock()
	if ch, ok := e.subscribers[id]; ok {
		close(ch)
		delete(e.subscribers, id)
	}
}

func (e *Engine) publish(sample TickSample) {
	e.subscriberMu.Lock()
	defer e.subscriberMu.Unlock()
	for id, ch := range e.subscribers {
		select {
		case ch <- sample:
		default:
			// Slow subscriber; drop rather than stall the tick loop.
			monitoring.Logf("dropping tick %d for subscriber %s", sample.Tick, id)
		}
	}
}

// StepOnce advances the world a single tick: cast the three rays, run the
// controller, apply kinematics, publish and return the sample.
func (e *Engine) StepOnce() TickSample {
	e.mu.Lock()

	pos := e.car.Position()
	left := e.arena.CastRay(pos, e.car.HeadingDeg-e.cfg.RaySpreadDeg, e.cfg.RayMaxRange)
	center := e.arena.CastRay(pos, e.car.HeadingDeg, e.cfg.RayMaxRange)
	right := e.arena.CastRay(pos, e.car.HeadingDeg+e.cfg.RaySpreadDeg, e.cfg.RayMaxRange)

	decision := e.controller.Decide(left, center, right)
	speed := e.car.Step(decision.Turn, decision.Accel, Kinematics{
		BaseSpeed:   e.cfg.BaseSpeed,
		TurnRateDeg: e.cfg.TurnRateDeg,
	})

	e.tick++
	sample := TickSample{
		Tick:           e.tick,
		UnixNanos:      e.clock.Now().UnixNano(),
		X:              e.car.X,
		Y:              e.car.Y,
		HeadingDeg:     e.car.HeadingDeg,
		LeftDistance:   left,
		CenterDistance: center,
		RightDistance:  right,
		Control:        decision,
		Speed:          speed,
	}
	e.lastSample = &sample
	e.mu.Unlock()

	e.publish(sample)
	return sample
}

// Run drives StepOnce from a ticker at the configured tick interval until
// ctx is done. Returns ctx.Err() on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	monitoring.Logf("engine running: arena %gx%g, tick interval %v",
		e.cfg.ArenaWidth, e.cfg.ArenaHeight, e.cfg.TickInterval)

	for {
		select {
		case <-ticker.C():
			e.StepOnce()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunTicks advances the world exactly n ticks without a ticker. Used by
// headless mode and tests.
func (e *Engine) RunTicks(ctx context.Context, n int64) ([]TickSample, error) {
	samples := make([]TickSample, 0, n)
	for i := int64(0); i < n; i++ {
		select {
		case <-ctx.Done():
			return samples, ctx.Err()
		default:
		}
		samples = append(samples, e.StepOnce())
	}
	return samples, nil
}
