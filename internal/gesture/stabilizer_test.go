package gesture

import (
	"testing"
	"time"
)

func newTestStabilizer(t *testing.T, n int) *Stabilizer {
	t.Helper()
	s, err := NewStabilizer(n)
	if err != nil {
		t.Fatalf("NewStabilizer(%d) error = %v", n, err)
	}
	return s
}

// feed observes labels in order and returns the 1-based frames that emitted.
func feed(s *Stabilizer, labels ...Label) map[int]StableChange {
	events := make(map[int]StableChange)
	for i, l := range labels {
		if ev, ok := s.Observe(l); ok {
			events[i+1] = ev
		}
	}
	return events
}

func repeat(l Label, n int) []Label {
	out := make([]Label, n)
	for i := range out {
		out[i] = l
	}
	return out
}

func TestNewStabilizer_RejectsRunLength(t *testing.T) {
	for _, n := range []int{0, -3} {
		if _, err := NewStabilizer(n); err == nil {
			t.Errorf("expected error for run length %d", n)
		}
	}
}

func TestStabilizer_InitialState(t *testing.T) {
	s := newTestStabilizer(t, DefaultRunLength)

	if s.Committed() != None {
		t.Errorf("expected committed NONE, got %s", s.Committed())
	}
	if c, run := s.Candidate(); c != None || run != 0 {
		t.Errorf("expected candidate (NONE, 0), got (%s, %d)", c, run)
	}
}

func TestStabilizer_Scenario(t *testing.T) {
	s := newTestStabilizer(t, 5)

	labels := []Label{None, None, Fist, Fist, Fist, Fist, Fist, Fist}
	events := feed(s, labels...)

	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d: %v", len(events), events)
	}
	ev, ok := events[7]
	if !ok {
		t.Fatalf("expected event on frame 7, got %v", events)
	}
	if ev.From != None || ev.To != Fist || ev.Frame != 7 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestStabilizer_LatencyBound(t *testing.T) {
	const n = 5
	s := newTestStabilizer(t, n)
	feed(s, repeat(Fist, n)...)

	for i := 1; i <= n; i++ {
		ev, ok := s.Observe(OpenPalm)
		if i < n && ok {
			t.Fatalf("unexpected event on frame %d", i)
		}
		if i == n {
			if !ok {
				t.Fatal("expected event on the N-th frame")
			}
			if ev.From != Fist || ev.To != OpenPalm {
				t.Errorf("unexpected event %+v", ev)
			}
		}
	}
}

func TestStabilizer_IdempotentCommit(t *testing.T) {
	const n = 5
	s := newTestStabilizer(t, n)

	first := feed(s, repeat(Pointing, n)...)
	if len(first) != 1 {
		t.Fatalf("expected initial commit, got %v", first)
	}

	if again := feed(s, repeat(Pointing, n+5)...); len(again) != 0 {
		t.Errorf("expected no further events, got %v", again)
	}
}

func TestStabilizer_AlternatingNeverCommits(t *testing.T) {
	s := newTestStabilizer(t, 5)

	var labels []Label
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			labels = append(labels, Fist)
		} else {
			labels = append(labels, OpenPalm)
		}
	}

	if events := feed(s, labels...); len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
	if s.Committed() != None {
		t.Errorf("expected committed NONE, got %s", s.Committed())
	}
}

func TestStabilizer_DropoutDoesNotClear(t *testing.T) {
	s := newTestStabilizer(t, 5)
	feed(s, repeat(Fist, 5)...)

	// A four-frame tracking dropout followed by the same gesture.
	labels := append(repeat(None, 4), repeat(Fist, 5)...)
	if events := feed(s, labels...); len(events) != 0 {
		t.Errorf("expected dropout to be absorbed, got %v", events)
	}
	if s.Committed() != Fist {
		t.Errorf("expected FIST to stay committed, got %s", s.Committed())
	}

	events := feed(s, repeat(None, 5)...)
	if ev, ok := events[5]; !ok || ev.To != None {
		t.Errorf("expected NONE commit after a full run, got %v", events)
	}
}

func TestStabilizer_RunLengthOne(t *testing.T) {
	s := newTestStabilizer(t, 1)

	events := feed(s, Fist, Fist, OpenPalm, Fist)
	if len(events) != 3 {
		t.Errorf("expected a commit on every change, got %v", events)
	}
}

func TestStabilizer_ClockAndReset(t *testing.T) {
	s := newTestStabilizer(t, 2)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.SetClock(func() time.Time { return at })

	events := feed(s, Pinch, Pinch)
	if ev := events[2]; !ev.At.Equal(at) {
		t.Errorf("expected event stamped %v, got %v", at, ev.At)
	}

	s.Reset()
	if s.Committed() != None {
		t.Errorf("expected NONE after reset, got %s", s.Committed())
	}
	events = feed(s, Pinch, Pinch)
	if ev, ok := events[2]; !ok || ev.Frame != 2 {
		t.Errorf("expected recommit with frame counter restarted, got %v", events)
	}
}
