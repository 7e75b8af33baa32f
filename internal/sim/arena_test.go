package sim

import (
	"math"
	"testing"
)

func mustBoxArena(t *testing.T, w, h float64) *Arena {
	t.Helper()
	a, err := NewBoxArena(w, h)
	if err != nil {
		t.Fatalf("NewBoxArena: %v", err)
	}
	return a
}

func TestNewBoxArenaInvalid(t *testing.T) {
	if _, err := NewBoxArena(0, 600); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := NewBoxArena(800, -1); err == nil {
		t.Error("expected error for negative height")
	}
}

func TestBoxArenaWalls(t *testing.T) {
	a := mustBoxArena(t, 800, 600)
	if got := len(a.Walls()); got != 4 {
		t.Fatalf("expected 4 boundary walls, got %d", got)
	}
}

func TestContains(t *testing.T) {
	a := mustBoxArena(t, 800, 600)

	inside := []Point{{400, 300}, {0, 0}, {800, 600}, {800, 0}}
	for _, p := range inside {
		if !a.Contains(p) {
			t.Errorf("expected %v inside", p)
		}
	}
	outside := []Point{{-1, 300}, {801, 300}, {400, -0.5}, {400, 601}}
	for _, p := range outside {
		if a.Contains(p) {
			t.Errorf("expected %v outside", p)
		}
	}
}

func TestCastRayHitsWalls(t *testing.T) {
	a := mustBoxArena(t, 800, 600)
	origin := Point{400, 300}

	tests := []struct {
		name     string
		angleDeg float64
		want     float64
	}{
		{"right wall", 0, 400},
		{"bottom wall", 90, 300}, // y grows downward
		{"left wall", 180, 400},
		{"top wall", 270, 300},
		{"diagonal to bottom", 45, 300 / math.Sin(math.Pi/4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.CastRay(origin, tt.angleDeg, 1000)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CastRay(%v°) = %v, want %v", tt.angleDeg, got, tt.want)
			}
		})
	}
}

func TestCastRayCapsAtMaxRange(t *testing.T) {
	a := mustBoxArena(t, 800, 600)

	got := a.CastRay(Point{400, 300}, 0, 200)
	if got != 200 {
		t.Errorf("distance beyond max range should cap: got %v, want 200", got)
	}
}

func TestCastRayThroughCorner(t *testing.T) {
	a := mustBoxArena(t, 800, 600)

	// Ray aimed exactly at the (0,0) corner where two walls meet.
	got := a.CastRay(Point{100, 100}, 225, 1000)
	want := math.Hypot(100, 100)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("corner ray = %v, want %v", got, want)
	}
}

func TestCastRayFromOutsideArena(t *testing.T) {
	a := mustBoxArena(t, 800, 600)

	// Origin beyond the right wall, pointing away from the box.
	got := a.CastRay(Point{900, 300}, 0, 200)
	if got != 200 {
		t.Errorf("ray away from arena should cap at max range, got %v", got)
	}

	// Pointing back toward the box hits the right wall.
	got = a.CastRay(Point{900, 300}, 180, 200)
	if math.Abs(got-100) > 1e-9 {
		t.Errorf("ray back into arena = %v, want 100", got)
	}
}

func TestCastRayParallelToWall(t *testing.T) {
	a := mustBoxArena(t, 800, 600)

	// Running along the top wall: the collinear wall never intersects,
	// the perpendicular right wall does.
	got := a.CastRay(Point{400, 0}, 0, 1000)
	if math.Abs(got-400) > 1e-9 {
		t.Errorf("parallel ray = %v, want 400", got)
	}
}

func TestCastRayInteriorWall(t *testing.T) {
	a := mustBoxArena(t, 800, 600)
	a.AddWall(Segment{A: Point{500, 100}, B: Point{500, 500}})

	got := a.CastRay(Point{400, 300}, 0, 1000)
	if math.Abs(got-100) > 1e-9 {
		t.Errorf("interior wall distance = %v, want 100", got)
	}
	if got := len(a.Walls()); got != 5 {
		t.Errorf("expected 5 walls after AddWall, got %d", got)
	}
}
