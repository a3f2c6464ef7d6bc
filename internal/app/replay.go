package app

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/dispatch"
)

// maxLineSize bounds one recorded frame.
const maxLineSize = 1 << 20

// ReplayStats summarizes a replayed session.
type ReplayStats struct {
	Frames  uint64
	Changes int
	Fired   int
	Skipped int // lines that failed to decode
}

// Replay feeds a recorded session through the pipeline in place of the
// camera. Each line is one detector result in the format DecodeFrame
// reads. The pipeline clock follows the recorded timestamps; lines without
// one are spaced at the configured camera rate. Lines that fail to decode
// are skipped like detector errors. The previous clock is restored when
// Replay returns.
func (a *App) Replay(r io.Reader) (ReplayStats, error) {
	var stats ReplayStats

	a.frameMu.Lock()
	prev := a.pipeline.Clock()
	a.frameMu.Unlock()

	step := time.Second / time.Duration(a.settings.Camera.FPS)
	var now time.Time
	a.SetClock(func() time.Time { return now })
	defer a.SetClock(prev)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}

		hands, ts, err := detector.DecodeFrame(data)
		if err != nil {
			stats.Skipped++
			continue
		}

		switch {
		case ts != 0:
			now = time.UnixMilli(ts)
		case now.IsZero():
			now = time.Unix(0, 0)
		default:
			now = now.Add(step)
		}

		res := a.ProcessHands(hands)
		stats.Frames = res.Frame
		if res.Change != nil {
			stats.Changes++
			if res.Dispatch.Status == dispatch.StatusFired {
				stats.Fired++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("reading session line %d: %w", line+1, err)
	}

	return stats, nil
}

// Recorder writes the primary hand of every frame as one line in the
// format Replay reads.
type Recorder struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
	err error
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w, now: time.Now}
}

// Observe is an Observer. After the first write error it stops writing.
func (r *Recorder) Observe(res FrameResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}

	var hands []detector.HandLandmarks
	if res.Hand != nil {
		hands = []detector.HandLandmarks{*res.Hand}
	}

	line, err := detector.EncodeHands(hands, r.now().UnixMilli())
	if err != nil {
		r.err = err
		return
	}
	if _, err := r.w.Write(append(line, '\n')); err != nil {
		r.err = err
	}
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
