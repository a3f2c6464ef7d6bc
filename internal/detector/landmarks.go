// Package detector wraps the external hand landmark source and defines the
// landmark types the rest of mudra consumes.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by MediaPipe.
const (
	HandLeft  = "Left"
	HandRight = "Right"
)

// minScale is the smallest wrist to middle MCP length treated as a real hand.
const minScale = 1e-6

// Point3D is a landmark position in normalized image coordinates
// ([0,1] per axis, origin top-left). Z is relative depth and may be zero.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - q.
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Len returns the Euclidean length of p treated as a vector.
func (p Point3D) Len() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point3D) float64 {
	return a.Sub(b).Len()
}

// HandLandmarks is one tracked hand: all 21 landmarks of a single frame.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left", "Right" or empty
	Score      float64               `json:"score"`
}

// Normalize returns a copy of the hand translated so the wrist sits at the
// origin and scaled so the wrist to middle MCP length is 1.0. When planar is
// true the depth axis is discarded before scaling.
// Returns nil for a nil hand or one whose reference length collapses to zero.
func (h *HandLandmarks) Normalize(planar bool) *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		p := h.Points[i].Sub(wrist)
		if planar {
			p.Z = 0
		}
		normalized.Points[i] = p
	}

	scale := normalized.Points[MiddleMCP].Len()
	if scale < minScale {
		return nil
	}

	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i].X /= scale
		normalized.Points[i].Y /= scale
		normalized.Points[i].Z /= scale
	}

	return normalized
}
