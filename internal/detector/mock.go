package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It replays a scripted sequence of per-frame results, then keeps
// returning the last configured hands.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	script [][]HandLandmarks
	err    error
	calls  int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetScript queues per-frame results consumed one per Detect call.
func (m *MockDetector) SetScript(frames [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = frames
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next scripted frame, the configured hands, or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Fixture poses share one right hand, wrist at the bottom and palm facing
// the camera, so only the finger joints differ between gestures. As in a
// mirrored webcam image, the thumb sits on the small-x side.
var (
	fixtureWrist = Point3D{X: 0.50, Y: 0.90}
	fixtureMCP   = map[int]Point3D{
		IndexMCP:  {X: 0.44, Y: 0.70},
		MiddleMCP: {X: 0.50, Y: 0.70},
		RingMCP:   {X: 0.55, Y: 0.71},
		PinkyMCP:  {X: 0.60, Y: 0.73},
	}
)

func fixtureBase() HandLandmarks {
	h := HandLandmarks{Handedness: HandRight, Score: 0.95}
	h.Points[Wrist] = fixtureWrist
	h.Points[ThumbCMC] = Point3D{X: 0.45, Y: 0.85}
	h.Points[ThumbMCP] = Point3D{X: 0.40, Y: 0.80}
	for mcp, p := range fixtureMCP {
		h.Points[mcp] = p
	}
	return h
}

// extend points a finger straight up from its MCP.
func extend(h *HandLandmarks, mcp int) {
	base := h.Points[mcp]
	h.Points[mcp+1] = Point3D{X: base.X, Y: base.Y - 0.10}
	h.Points[mcp+2] = Point3D{X: base.X, Y: base.Y - 0.17}
	h.Points[mcp+3] = Point3D{X: base.X, Y: base.Y - 0.24}
}

// curl folds a finger so its tip rests on the palm below the knuckle.
func curl(h *HandLandmarks, mcp int) {
	base := h.Points[mcp]
	h.Points[mcp+1] = Point3D{X: base.X, Y: base.Y - 0.08}
	h.Points[mcp+2] = Point3D{X: base.X, Y: base.Y - 0.05}
	h.Points[mcp+3] = Point3D{X: base.X, Y: base.Y + 0.03}
}

func thumbOut(h *HandLandmarks) {
	h.Points[ThumbIP] = Point3D{X: 0.34, Y: 0.76}
	h.Points[ThumbTip] = Point3D{X: 0.28, Y: 0.72}
}

func thumbUp(h *HandLandmarks) {
	h.Points[ThumbIP] = Point3D{X: 0.38, Y: 0.68}
	h.Points[ThumbTip] = Point3D{X: 0.36, Y: 0.58}
}

func thumbTucked(h *HandLandmarks) {
	h.Points[ThumbIP] = Point3D{X: 0.44, Y: 0.76}
	h.Points[ThumbTip] = Point3D{X: 0.53, Y: 0.75}
}

// FistLandmarks returns a closed fist with the thumb folded across the fingers.
func FistLandmarks() HandLandmarks {
	h := fixtureBase()
	thumbTucked(&h)
	for _, mcp := range []int{IndexMCP, MiddleMCP, RingMCP, PinkyMCP} {
		curl(&h, mcp)
	}
	return h
}

// ThumbsUpLandmarks returns a preset HandLandmarks representing a thumbs up gesture.
// The thumb is extended upward while other fingers are curled.
func ThumbsUpLandmarks() HandLandmarks {
	h := FistLandmarks()
	thumbUp(&h)
	return h
}

// PointingLandmarks returns a hand with only the index finger extended.
func PointingLandmarks() HandLandmarks {
	h := FistLandmarks()
	extend(&h, IndexMCP)
	return h
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm gesture.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	h := fixtureBase()
	thumbOut(&h)
	for _, mcp := range []int{IndexMCP, MiddleMCP, RingMCP, PinkyMCP} {
		extend(&h, mcp)
	}
	return h
}

// PinchLandmarks returns a hand with thumb and index tips touching and the
// remaining fingers extended.
func PinchLandmarks() HandLandmarks {
	h := OpenPalmLandmarks()
	h.Points[IndexPIP] = Point3D{X: 0.42, Y: 0.62}
	h.Points[IndexDIP] = Point3D{X: 0.39, Y: 0.58}
	h.Points[IndexTip] = Point3D{X: 0.37, Y: 0.60}
	h.Points[ThumbIP] = Point3D{X: 0.37, Y: 0.72}
	h.Points[ThumbTip] = Point3D{X: 0.36, Y: 0.61}
	return h
}

// Mirror flips a hand horizontally and swaps its handedness label.
func Mirror(h HandLandmarks) HandLandmarks {
	out := h
	for i := range out.Points {
		out.Points[i].X = 1 - out.Points[i].X
	}
	switch h.Handedness {
	case HandLeft:
		out.Handedness = HandRight
	case HandRight:
		out.Handedness = HandLeft
	}
	return out
}
