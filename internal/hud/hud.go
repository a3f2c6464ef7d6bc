// Package hud renders a one-line terminal heads-up display of the gesture
// pipeline: committed gesture, finger pattern, active mode, last action and
// frame rate.
package hud

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
)

// redrawInterval limits redraws when nothing but the frame rate changed.
const redrawInterval = 100 * time.Millisecond

// Color palette
var (
	colorGesture = lipgloss.Color("#ffe66d")
	colorMode    = lipgloss.Color("#4ecdc4")
	colorAction  = lipgloss.Color("#a8e6cf")
	colorMuted   = lipgloss.Color("#666666")
	colorOpen    = lipgloss.Color("#FF6B6B")
)

type styles struct {
	gesture lipgloss.Style
	mode    lipgloss.Style
	action  lipgloss.Style
	muted   lipgloss.Style
	open    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		gesture: r.NewStyle().Bold(true).Foreground(colorGesture).Width(10),
		mode:    r.NewStyle().Foreground(colorMode),
		action:  r.NewStyle().Foreground(colorAction),
		muted:   r.NewStyle().Foreground(colorMuted),
		open:    r.NewStyle().Bold(true).Foreground(colorOpen),
	}
}

// HUD draws pipeline results to a terminal. Observe is an app.Observer.
type HUD struct {
	mu     sync.Mutex
	w      io.Writer
	styles styles
	now    func() time.Time

	lastFrame  time.Time
	lastDraw   time.Time
	fps        float64
	lastAction string
}

// New creates a HUD writing to w.
func New(w io.Writer) *HUD {
	return &HUD{
		w:      w,
		styles: newStyles(lipgloss.NewRenderer(w)),
		now:    time.Now,
	}
}

// SetClock replaces the clock used for frame rate and redraw throttling.
func (h *HUD) SetClock(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}

// Observe updates the frame rate and redraws the line. Committed changes
// always redraw; other frames redraw at most every redrawInterval.
func (h *HUD) Observe(res app.FrameResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if !h.lastFrame.IsZero() {
		if dt := now.Sub(h.lastFrame).Seconds(); dt > 0 {
			inst := 1 / dt
			if h.fps == 0 {
				h.fps = inst
			} else {
				h.fps = 0.9*h.fps + 0.1*inst
			}
		}
	}
	h.lastFrame = now

	if res.Dispatch != nil && res.Dispatch.Status == dispatch.StatusFired {
		h.lastAction = res.Dispatch.Action
	}

	if res.Change == nil && now.Sub(h.lastDraw) < redrawInterval {
		return
	}
	h.lastDraw = now
	fmt.Fprintf(h.w, "\r\033[K%s", h.line(res))
}

// Line renders res without drawing it.
func (h *HUD) Line(res app.FrameResult) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.line(res)
}

// FPS returns the smoothed frame rate.
func (h *HUD) FPS() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fps
}

// Clear erases the line, leaving the cursor at column zero.
func (h *HUD) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprint(h.w, "\r\033[K")
}

func (h *HUD) line(res app.FrameResult) string {
	s := h.styles
	parts := []string{
		s.gesture.Render(res.Committed.String()),
		h.pattern(res.Features),
		s.muted.Render("mode ") + s.mode.Render(modeName(res.Mode)),
	}

	action := h.lastAction
	if action == "" {
		action = "-"
	}
	parts = append(parts, s.muted.Render("last ")+s.action.Render(action))
	parts = append(parts, s.muted.Render(fmt.Sprintf("%4.1f fps", h.fps)))
	return strings.Join(parts, s.muted.Render(" | "))
}

// pattern shows one glyph per finger, thumb first.
func (h *HUD) pattern(f *gesture.Features) string {
	if f == nil {
		return h.styles.muted.Render("no hand")
	}
	var b strings.Builder
	for i, open := range f.Open {
		if i > 0 {
			b.WriteByte(' ')
		}
		name := gesture.Finger(i).String()[:1]
		if open {
			b.WriteString(h.styles.open.Render(strings.ToUpper(name)))
		} else {
			b.WriteString(h.styles.muted.Render(strings.ToLower(name)))
		}
	}
	return b.String()
}

func modeName(mode string) string {
	if mode == "" {
		return "default"
	}
	return mode
}
