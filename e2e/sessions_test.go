package e2e

import (
	"bytes"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
)

// step is a run of identical detector results; a nil hand is an empty frame.
type step struct {
	hand   *detector.HandLandmarks
	frames int
}

func hold(h detector.HandLandmarks, n int) step {
	return step{hand: &h, frames: n}
}

func empty(n int) step {
	return step{frames: n}
}

// session renders steps as a recorded session, one line per frame, with
// frames tsStep milliseconds apart starting at ts0. A zero tsStep leaves
// the lines untimed.
func session(t *testing.T, ts0, tsStep int64, steps ...step) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	ts := ts0
	for _, s := range steps {
		for i := 0; i < s.frames; i++ {
			var hands []detector.HandLandmarks
			if s.hand != nil {
				hands = []detector.HandLandmarks{*s.hand}
			}
			var stamp int64
			if tsStep > 0 {
				stamp = ts
				ts += tsStep
			}
			line, err := detector.EncodeHands(hands, stamp)
			if err != nil {
				t.Fatalf("EncodeHands() error = %v", err)
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}
	}
	return &buf
}

// script converts steps into MockDetector frames.
func script(steps ...step) [][]detector.HandLandmarks {
	var frames [][]detector.HandLandmarks
	for _, s := range steps {
		for i := 0; i < s.frames; i++ {
			if s.hand == nil {
				frames = append(frames, nil)
				continue
			}
			frames = append(frames, []detector.HandLandmarks{*s.hand})
		}
	}
	return frames
}
