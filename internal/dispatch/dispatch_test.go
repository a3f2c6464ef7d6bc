package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
)

// counter records every label it is fired with.
type counter struct {
	fired []gesture.Label
}

func (c *counter) Fire(label gesture.Label) {
	c.fired = append(c.fired, label)
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func change(to gesture.Label, offset time.Duration) gesture.StableChange {
	return gesture.StableChange{To: to, At: t0.Add(offset)}
}

func TestDispatcher_FiresBoundAction(t *testing.T) {
	c := &counter{}
	d, err := New("", []Binding{{Label: gesture.OpenPalm, Name: "play-pause", Action: c}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := d.OnStableChange(change(gesture.OpenPalm, 0))
	if res.Status != StatusFired {
		t.Fatalf("expected fired, got %s", res.Status)
	}
	if res.Action != "play-pause" || res.Mode != DefaultMode {
		t.Errorf("unexpected result %+v", res)
	}
	if len(c.fired) != 1 || c.fired[0] != gesture.OpenPalm {
		t.Errorf("expected one OPEN_PALM fire, got %v", c.fired)
	}
}

func TestDispatcher_CooldownSuppression(t *testing.T) {
	c := &counter{}
	d, _ := New("", []Binding{{Label: gesture.Fist, Name: "prev", Action: c, Cooldown: 800 * time.Millisecond}})

	first := d.OnStableChange(change(gesture.Fist, 0))
	second := d.OnStableChange(change(gesture.Fist, 500*time.Millisecond))

	if first.Status != StatusFired {
		t.Errorf("expected first change to fire, got %s", first.Status)
	}
	if second.Status != StatusCooldown {
		t.Errorf("expected second change suppressed, got %s", second.Status)
	}
	if len(c.fired) != 1 {
		t.Errorf("expected exactly one fire, got %d", len(c.fired))
	}

	third := d.OnStableChange(change(gesture.Fist, 900*time.Millisecond))
	if third.Status != StatusFired || len(c.fired) != 2 {
		t.Errorf("expected fire after cooldown elapsed, got %s (%d fires)", third.Status, len(c.fired))
	}
}

func TestDispatcher_CooldownIsPerBinding(t *testing.T) {
	fist, palm := &counter{}, &counter{}
	d, _ := New("", []Binding{
		{Label: gesture.Fist, Name: "prev", Action: fist, Cooldown: time.Second},
		{Label: gesture.OpenPalm, Name: "play", Action: palm, Cooldown: time.Second},
	})

	d.OnStableChange(change(gesture.Fist, 0))
	res := d.OnStableChange(change(gesture.OpenPalm, 100*time.Millisecond))
	if res.Status != StatusFired {
		t.Errorf("expected a different binding to fire, got %s", res.Status)
	}
}

func TestDispatcher_NoneNeverFires(t *testing.T) {
	c := &counter{}
	d, _ := New("", []Binding{{Label: gesture.Fist, Name: "prev", Action: c}})

	res := d.OnStableChange(gesture.StableChange{From: gesture.Fist, To: gesture.None, At: t0})
	if res.Status != StatusIgnored {
		t.Errorf("expected ignored, got %s", res.Status)
	}
	if len(c.fired) != 0 {
		t.Errorf("expected no fires, got %v", c.fired)
	}
}

func TestDispatcher_Unbound(t *testing.T) {
	d, _ := New("", nil)

	if res := d.OnStableChange(change(gesture.Pinch, 0)); res.Status != StatusUnbound {
		t.Errorf("expected unbound, got %s", res.Status)
	}
}

func TestDispatcher_ModeSwitch(t *testing.T) {
	media, slides, toggle := &counter{}, &counter{}, &counter{}
	d, err := New("media", []Binding{
		{Mode: "media", Label: gesture.Pointing, Name: "next-track", Action: media},
		{Mode: "slides", Label: gesture.Pointing, Name: "next-slide", Action: slides},
		{Mode: "media", Label: gesture.Pinch, Name: "to-slides", Action: toggle, NextMode: "slides"},
		{Mode: "slides", Label: gesture.Pinch, Name: "to-media", Action: toggle, NextMode: "media"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	d.OnStableChange(change(gesture.Pointing, 0))
	res := d.OnStableChange(change(gesture.Pinch, time.Second))
	if res.Switch != "slides" || d.Mode() != "slides" {
		t.Fatalf("expected switch to slides, got %+v (mode %s)", res, d.Mode())
	}

	d.OnStableChange(change(gesture.Pointing, 2*time.Second))
	if len(media.fired) != 1 || len(slides.fired) != 1 {
		t.Errorf("expected one fire per mode, got media=%d slides=%d", len(media.fired), len(slides.fired))
	}
}

func TestDispatcher_SuppressedFireKeepsMode(t *testing.T) {
	c := &counter{}
	d, _ := New("a", []Binding{
		{Mode: AnyMode, Label: gesture.Pinch, Name: "toggle", Action: c, Cooldown: time.Minute, NextMode: "b"},
	})

	d.OnStableChange(change(gesture.Pinch, 0))
	d.SetMode("a")
	res := d.OnStableChange(change(gesture.Pinch, time.Second))
	if res.Status != StatusCooldown || d.Mode() != "a" {
		t.Errorf("expected suppressed fire to leave mode alone, got %+v (mode %s)", res, d.Mode())
	}
}

func TestDispatcher_AnyModeFallback(t *testing.T) {
	global, local := &counter{}, &counter{}
	d, _ := New("slides", []Binding{
		{Mode: AnyMode, Label: gesture.Fist, Name: "stop", Action: global},
		{Mode: "slides", Label: gesture.OpenPalm, Name: "blank", Action: local},
	})

	d.OnStableChange(change(gesture.Fist, 0))
	d.OnStableChange(change(gesture.OpenPalm, time.Second))
	if len(global.fired) != 1 || len(local.fired) != 1 {
		t.Errorf("expected both bindings to fire, got global=%d local=%d", len(global.fired), len(local.fired))
	}
}

func TestDispatcher_ZeroTimestampUsesClock(t *testing.T) {
	c := &counter{}
	d, _ := New("", []Binding{{Label: gesture.Fist, Name: "prev", Action: c, Cooldown: time.Second}})
	now := t0
	d.SetClock(func() time.Time { return now })

	d.OnStableChange(gesture.StableChange{To: gesture.Fist})
	now = now.Add(100 * time.Millisecond)
	if res := d.OnStableChange(gesture.StableChange{To: gesture.Fist}); res.Status != StatusCooldown {
		t.Errorf("expected cooldown from injected clock, got %s", res.Status)
	}
}

func TestDispatcher_SetBindingsKeepsHistory(t *testing.T) {
	c := &counter{}
	bindings := []Binding{{Label: gesture.Fist, Name: "prev", Action: c, Cooldown: time.Second}}
	d, _ := New("", bindings)

	d.OnStableChange(change(gesture.Fist, 0))
	if err := d.SetBindings(bindings); err != nil {
		t.Fatalf("SetBindings() error = %v", err)
	}
	if res := d.OnStableChange(change(gesture.Fist, 10*time.Millisecond)); res.Status != StatusCooldown {
		t.Errorf("expected cooldown to survive reload, got %s", res.Status)
	}
}

func TestNew_InvalidBindings(t *testing.T) {
	noop := ActionFunc(func(gesture.Label) {})

	tests := []struct {
		name     string
		bindings []Binding
	}{
		{"none label", []Binding{{Label: gesture.None, Name: "x", Action: noop}}},
		{"empty label", []Binding{{Name: "x", Action: noop}}},
		{"missing name", []Binding{{Label: gesture.Fist, Action: noop}}},
		{"missing action", []Binding{{Label: gesture.Fist, Name: "x"}}},
		{"negative cooldown", []Binding{{Label: gesture.Fist, Name: "x", Action: noop, Cooldown: -time.Second}}},
		{"duplicate", []Binding{
			{Label: gesture.Fist, Name: "x", Action: noop},
			{Label: gesture.Fist, Name: "y", Action: noop},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("", tt.bindings)
			if !errors.Is(err, ErrInvalidBinding) {
				t.Errorf("expected ErrInvalidBinding, got %v", err)
			}
		})
	}
}

func TestStatus_String(t *testing.T) {
	if StatusFired.String() != "fired" || StatusCooldown.String() != "cooldown" {
		t.Error("unexpected status names")
	}
	if Status(9).String() != "status(9)" {
		t.Errorf("unexpected name %s", Status(9))
	}
}
