package capture

import (
	"testing"
	"time"
)

func TestGate_StartsIdle(t *testing.T) {
	g := NewGate(5, 15, 2*time.Second)

	if g.Active() {
		t.Error("gate should start idle")
	}
	if g.FPS() != 5 {
		t.Errorf("expected idle FPS 5, got %d", g.FPS())
	}
	if g.Interval() != 200*time.Millisecond {
		t.Errorf("expected interval 200ms, got %s", g.Interval())
	}
}

func TestGate_Transitions(t *testing.T) {
	g := NewGate(5, 15, 2*time.Second)
	t0 := time.Unix(1000, 0)

	steps := []struct {
		name        string
		motion      bool
		at          time.Duration
		wantActive  bool
		wantChanged bool
	}{
		{"still scene stays idle", false, 0, false, false},
		{"motion activates", true, 100 * time.Millisecond, true, true},
		{"more motion keeps active", true, 200 * time.Millisecond, true, false},
		{"quiet within timeout", false, 2 * time.Second, true, false},
		{"quiet past timeout", false, 2300 * time.Millisecond, false, true},
		{"still idle", false, 3 * time.Second, false, false},
		{"motion again", true, 4 * time.Second, true, true},
	}

	for _, s := range steps {
		active, changed := g.Update(s.motion, t0.Add(s.at))
		if active != s.wantActive || changed != s.wantChanged {
			t.Errorf("%s: expected (active=%v, changed=%v), got (%v, %v)",
				s.name, s.wantActive, s.wantChanged, active, changed)
		}
	}

	if g.FPS() != 15 {
		t.Errorf("expected active FPS 15, got %d", g.FPS())
	}
}

func TestGate_IntervalFallsBackForZeroFPS(t *testing.T) {
	g := NewGate(0, 0, time.Second)

	if g.Interval() != time.Second/DefaultFPS {
		t.Errorf("expected default interval, got %s", g.Interval())
	}
}
