package gesture

import (
	"fmt"
	"time"
)

// DefaultRunLength is the number of consecutive frames a label must hold
// before it is committed.
const DefaultRunLength = 5

// StableChange reports that the committed label moved from From to To.
type StableChange struct {
	From  Label     `json:"from"`
	To    Label     `json:"to"`
	Frame uint64    `json:"frame"` // 1-based index of the frame that completed the run
	At    time.Time `json:"at"`    // clock reading at that frame
}

// Stabilizer debounces the per-frame label stream. It commits a label only
// after it has been observed for runLength consecutive frames, and emits a
// StableChange only when the committed label actually changes. None is an
// ordinary label: a committed gesture clears only after None itself has
// persisted for the full run.
//
// A Stabilizer is owned by a single frame loop and is not safe for
// concurrent use.
type Stabilizer struct {
	runLength int
	committed Label
	candidate Label
	run       int
	frame     uint64
	now       func() time.Time
}

// NewStabilizer creates a Stabilizer in the (None, None, 0) state.
func NewStabilizer(runLength int) (*Stabilizer, error) {
	if runLength < 1 {
		return nil, fmt.Errorf("stabilizer run length must be >= 1, got %d", runLength)
	}
	s := &Stabilizer{runLength: runLength, now: time.Now}
	s.Reset()
	return s, nil
}

// SetClock replaces the clock used to stamp events.
func (s *Stabilizer) SetClock(now func() time.Time) {
	s.now = now
}

// Observe consumes the label of the next frame. It returns a StableChange
// and true on the frame where a new label is committed.
func (s *Stabilizer) Observe(raw Label) (StableChange, bool) {
	s.frame++

	if raw == s.candidate {
		if s.run < s.runLength {
			s.run++
		}
	} else {
		s.candidate = raw
		s.run = 1
	}

	if s.run < s.runLength || s.candidate == s.committed {
		return StableChange{}, false
	}

	ev := StableChange{
		From:  s.committed,
		To:    s.candidate,
		Frame: s.frame,
		At:    s.now(),
	}
	s.committed = s.candidate
	return ev, true
}

// Committed returns the current stable label.
func (s *Stabilizer) Committed() Label {
	return s.committed
}

// Candidate returns the label under observation and its run length.
func (s *Stabilizer) Candidate() (Label, int) {
	return s.candidate, s.run
}

// RunLength returns the configured number of frames needed to commit.
func (s *Stabilizer) RunLength() int {
	return s.runLength
}

// Reset returns to the (None, None, 0) state, as at stream start.
func (s *Stabilizer) Reset() {
	s.committed = None
	s.candidate = None
	s.run = 0
	s.frame = 0
}
