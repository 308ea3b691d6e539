package components

import (
	"math/rand"
	"testing"

	"github.com/spaghettifunk/texlab/engine/math"
)

func TestZoomAnchorsPointUnderCursor(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		vc := NewViewportController()
		// Non-zero starting pan.
		vc.BeginPan(math.NewVec2(0, 0))
		vc.UpdatePan(math.NewVec2(rng.Float32()*400-200, rng.Float32()*400-200))
		vc.EndPan()

		p := math.NewVec2(rng.Float32()*1600, rng.Float32()*900)
		anchor := vc.State().ScreenToImage(p)
		for step := 0; step < 20; step++ {
			delta := rng.Float32()*20 - 10
			vc.Zoom(delta, p)
			got := vc.State().ImageToScreen(anchor)
			if !got.Compare(p, 0.25) {
				t.Fatalf("run %d step %d: anchor drifted to %+v, want %+v (zoom %v)", run, step, got, p, vc.State().Zoom)
			}
		}
	}
}

func TestZoomClamp(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	vc := NewViewportController()
	for i := 0; i < 2000; i++ {
		vc.Zoom(rng.Float32()*400-200, math.NewVec2(rng.Float32()*100, rng.Float32()*100))
		z := vc.State().Zoom
		if z < 1.0 || z > 64.0 {
			t.Fatalf("step %d: zoom %v outside [1, 64]", i, z)
		}
	}
}

func TestZoomAtLimitLeavesPan(t *testing.T) {
	vc := NewViewportController()
	vc.Zoom(-5, math.NewVec2(100, 100))
	s := vc.State()
	if s.Zoom != 1.0 || s.Pan != (math.Vec2{}) {
		t.Fatalf("got zoom %v pan %+v, want 1 and zero pan", s.Zoom, s.Pan)
	}
}

func TestWheelZoomScenario(t *testing.T) {
	vc := NewViewportController()
	vc.Zoom(5, math.NewVec2(100, 100))
	s := vc.State()
	if s.Zoom != 1.5 {
		t.Fatalf("zoom: got %v, want 1.5", s.Zoom)
	}
	want := math.NewVec2(-50, -50)
	if !s.Pan.Compare(want, 1e-5) {
		t.Fatalf("pan: got %+v, want %+v", s.Pan, want)
	}
}

func TestBeginPanFirstCallWins(t *testing.T) {
	vc := NewViewportController()
	vc.BeginPan(math.NewVec2(10, 10))
	vc.BeginPan(math.NewVec2(50, 50))
	vc.UpdatePan(math.NewVec2(15, 20))
	if got, want := vc.State().Pan, math.NewVec2(5, 10); got != want {
		t.Fatalf("pan: got %+v, want %+v", got, want)
	}
}

func TestEndPanIdempotent(t *testing.T) {
	once := NewViewportController()
	twice := NewViewportController()
	for _, vc := range []*ViewportController{once, twice} {
		vc.BeginPan(math.NewVec2(0, 0))
		vc.UpdatePan(math.NewVec2(3, 4))
	}
	once.EndPan()
	twice.EndPan()
	twice.EndPan()
	if once.State() != twice.State() {
		t.Fatalf("got %+v and %+v, want equal", once.State(), twice.State())
	}

	fresh := NewViewportController()
	fresh.EndPan()
	if fresh.State() != NewViewportController().State() {
		t.Fatal("EndPan without BeginPan changed state")
	}
}

func TestUpdatePanWithoutBeginIsNoop(t *testing.T) {
	vc := NewViewportController()
	vc.UpdatePan(math.NewVec2(30, 40))
	if vc.State().Pan != (math.Vec2{}) {
		t.Fatalf("pan: got %+v, want zero", vc.State().Pan)
	}
}
