package capture

import "time"

// Gate switches frame processing between an idle and an active rate based
// on motion. It starts idle. Motion makes it active at once; it returns to
// idle after IdleTimeout without motion.
type Gate struct {
	IdleFPS     int
	ActiveFPS   int
	IdleTimeout time.Duration

	active     bool
	lastMotion time.Time
}

// NewGate creates an idle Gate.
func NewGate(idleFPS, activeFPS int, idleTimeout time.Duration) *Gate {
	return &Gate{
		IdleFPS:     idleFPS,
		ActiveFPS:   activeFPS,
		IdleTimeout: idleTimeout,
	}
}

// Update records whether motion was seen in the frame taken at now and
// reports the resulting state and whether it changed.
func (g *Gate) Update(motion bool, now time.Time) (active, changed bool) {
	if motion {
		g.lastMotion = now
		if !g.active {
			g.active = true
			return true, true
		}
		return true, false
	}

	if g.active && now.Sub(g.lastMotion) > g.IdleTimeout {
		g.active = false
		return false, true
	}

	return g.active, false
}

// Reset returns the gate to idle and forgets the last motion.
func (g *Gate) Reset() {
	g.active = false
	g.lastMotion = time.Time{}
}

// Active reports whether the gate is in the active state.
func (g *Gate) Active() bool {
	return g.active
}

// FPS returns the frame rate for the current state.
func (g *Gate) FPS() int {
	if g.active {
		return g.ActiveFPS
	}
	return g.IdleFPS
}

// Interval returns the time between frames for the current state.
func (g *Gate) Interval() time.Duration {
	fps := g.FPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
