package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing parameters.
const (
	// GaussianBlurSize is the kernel size used to suppress sensor noise.
	GaussianBlurSize = 21
	// DiffThreshold is the per-pixel intensity change counted as motion.
	DiffThreshold = 25
)

// MotionDetector compares consecutive frames and reports the share of
// pixels that changed. It feeds a Gate in the frame loop.
type MotionDetector struct {
	threshold   float64 // percent of pixels
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage
// of pixels that must change, e.g. 1.0 for 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect reports whether frame differs from the previous one by more than
// the threshold, and the measured change percentage. The first frame only
// sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	blurred := blurredGray(frame)
	defer blurred.Close()

	if !m.initialized {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

func blurredGray(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)
	return blurred
}

// Reset drops the baseline so the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

// Close releases the baseline frame.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

func (m *MotionDetector) clear() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold sets the change percentage that counts as motion.
// Values less than or equal to 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

// Threshold returns the change percentage that counts as motion.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// MotionGate drives a Gate from the frame differences of a MotionDetector.
// It is used from the frame loop goroutine only.
type MotionGate struct {
	*Gate
	motion *MotionDetector
}

// NewMotionGate creates an idle MotionGate. threshold is the percentage of
// changed pixels that counts as motion.
func NewMotionGate(threshold float64, idleFPS, activeFPS int, idleTimeout time.Duration) *MotionGate {
	return &MotionGate{
		Gate:   NewGate(idleFPS, activeFPS, idleTimeout),
		motion: NewMotionDetector(threshold),
	}
}

// Observe measures the change between frame and the previous frame, taken
// at now, and updates the gate. It returns the gate state, whether it
// changed, and the measured change percentage.
func (g *MotionGate) Observe(frame *gocv.Mat, now time.Time) (active, changed bool, percent float64) {
	moved, percent := g.motion.Detect(frame)
	active, changed = g.Update(moved, now)
	return active, changed, percent
}

// Reset drops the motion baseline and returns the gate to idle.
func (g *MotionGate) Reset() {
	g.motion.Reset()
	g.Gate.Reset()
}

// Close releases the motion baseline.
func (g *MotionGate) Close() {
	g.motion.Close()
}
