package sim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/steerlab/fuzzdrive/internal/control"
	"github.com/steerlab/fuzzdrive/internal/timeutil"
)

func newTestEngine(t *testing.T, clock timeutil.Clock) *Engine {
	t.Helper()
	controller, err := control.NewController(control.DefaultConfig())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	e, err := NewEngine(DefaultEngineConfig(), controller, clock)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestNewEngineValidation(t *testing.T) {
	controller, _ := control.NewController(control.DefaultConfig())

	if _, err := NewEngine(DefaultEngineConfig(), nil, nil); err == nil {
		t.Error("expected error for nil controller")
	}

	cfg := DefaultEngineConfig()
	cfg.TickInterval = 0
	if _, err := NewEngine(cfg, controller, nil); err == nil {
		t.Error("expected error for zero tick interval")
	}

	cfg = DefaultEngineConfig()
	cfg.RayMaxRange = 0
	if _, err := NewEngine(cfg, controller, nil); err == nil {
		t.Error("expected error for zero ray range")
	}
}

func TestStepOnceFromCenter(t *testing.T) {
	e := newTestEngine(t, timeutil.NewMockClock(time.Unix(0, 1000)))

	s := e.StepOnce()
	if s.Tick != 1 {
		t.Errorf("tick = %d, want 1", s.Tick)
	}
	if s.UnixNanos != 1000 {
		t.Errorf("unix nanos = %d, want 1000", s.UnixNanos)
	}

	// From the center of an 800x600 box every ray exceeds the 200 unit cap.
	for name, d := range map[string]float64{
		"left": s.LeftDistance, "center": s.CenterDistance, "right": s.RightDistance,
	} {
		if d != 200 {
			t.Errorf("%s distance = %v, want 200 (capped)", name, d)
		}
	}

	// Open space: no turn, full acceleration, car advances by base speed.
	if math.Abs(s.Control.Turn) > 1e-9 {
		t.Errorf("turn = %v, want 0", s.Control.Turn)
	}
	if math.Abs(s.Control.Accel-1) > 1e-9 {
		t.Errorf("accel = %v, want 1", s.Control.Accel)
	}
	if s.Speed != 2 {
		t.Errorf("speed = %v, want 2", s.Speed)
	}
	if math.Abs(s.X-402) > 1e-9 || math.Abs(s.Y-300) > 1e-9 {
		t.Errorf("car at (%v, %v), want (402, 300)", s.X, s.Y)
	}

	last, ok := e.LastSample()
	if !ok || last.Tick != 1 {
		t.Errorf("LastSample = %+v, %v; want tick 1", last, ok)
	}
}

func TestCarStaysInsideArena(t *testing.T) {
	e := newTestEngine(t, timeutil.NewMockClock(time.Now()))

	samples, err := e.RunTicks(context.Background(), 5000)
	if err != nil {
		t.Fatalf("RunTicks: %v", err)
	}
	for _, s := range samples {
		if !e.Arena().Contains(Point{X: s.X, Y: s.Y}) {
			t.Fatalf("tick %d: car escaped arena at (%v, %v)", s.Tick, s.X, s.Y)
		}
	}
}

func TestPlaceCar(t *testing.T) {
	e := newTestEngine(t, nil)

	if err := e.PlaceCar(10, 10, 135); err != nil {
		t.Fatalf("PlaceCar: %v", err)
	}
	car := e.Car()
	if car.X != 10 || car.Y != 10 || car.HeadingDeg != 135 {
		t.Errorf("car = %+v, want (10, 10, 135)", car)
	}

	if err := e.PlaceCar(-5, 10, 0); err == nil {
		t.Error("expected error placing car outside the arena")
	}
}

func TestSubscribeReceivesSamples(t *testing.T) {
	e := newTestEngine(t, nil)

	id, ch := e.Subscribe()
	defer e.Unsubscribe(id)

	want := e.StepOnce()
	select {
	case got := <-ch:
		if got.Tick != want.Tick || got.X != want.X {
			t.Errorf("subscriber sample = %+v, want %+v", got, want)
		}
	default:
		t.Fatal("subscriber did not receive the published sample")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	e := newTestEngine(t, nil)

	id, ch := e.Subscribe()
	e.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}

	// Unsubscribing twice must not panic.
	e.Unsubscribe(id)
}

func TestSlowSubscriberDoesNotStallTicks(t *testing.T) {
	e := newTestEngine(t, nil)

	_, ch := e.Subscribe()

	// Publish far more samples than the subscriber buffer holds without
	// draining; StepOnce must never block.
	const ticks = subscriberBuffer + 32
	done := make(chan struct{})
	go func() {
		for i := 0; i < ticks; i++ {
			e.StepOnce()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tick loop stalled on a slow subscriber")
	}

	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered samples = %d, want %d (overflow dropped)", got, subscriberBuffer)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	e := newTestEngine(t, clock)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Run(ctx)
	}()

	id, ch := e.Subscribe()
	defer e.Unsubscribe(id)

	// Drive one tick through the mock clock. Retry the advance until the
	// Run goroutine has registered its ticker.
	deadline := time.After(5 * time.Second)
	for {
		clock.Advance(e.cfg.TickInterval)
		select {
		case <-ch:
		case <-deadline:
			t.Fatal("no sample produced by Run loop")
		case <-time.After(10 * time.Millisecond):
			continue
		}
		break
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestRunTicksHonorsCancellation(t *testing.T) {
	e := newTestEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples, err := e.RunTicks(ctx, 100)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples after immediate cancel, got %d", len(samples))
	}
}
