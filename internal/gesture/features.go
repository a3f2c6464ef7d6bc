package gesture

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ayusman/mudra/internal/detector"
)

// Finger indexes the per-finger arrays of Features.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
	NumFingers
)

var fingerNames = [NumFingers]string{"thumb", "index", "middle", "ring", "pinky"}

func (f Finger) String() string {
	if f < 0 || f >= NumFingers {
		return fmt.Sprintf("finger(%d)", int(f))
	}
	return fingerNames[f]
}

// fingerJoints maps each non-thumb finger to its PIP and tip landmarks.
var fingerJoints = [NumFingers][2]int{
	Index:  {detector.IndexPIP, detector.IndexTip},
	Middle: {detector.MiddlePIP, detector.MiddleTip},
	Ring:   {detector.RingPIP, detector.RingTip},
	Pinky:  {detector.PinkyPIP, detector.PinkyTip},
}

// Thresholds tune feature extraction and classification. All distances are
// expressed in units of the wrist to middle MCP length, which keeps them
// independent of how far the hand is from the camera.
type Thresholds struct {
	// OpenMargin is how much farther from the palm center a fingertip must be
	// than its PIP joint for the finger to count as open.
	OpenMargin float64
	// ThumbMargin is the minimum sideways offset of the thumb tip past the
	// index MCP, toward the thumb side, for an open thumb.
	ThumbMargin float64
	// ThumbReach is the thumb tip to palm center distance above which the
	// thumb is open when handedness is unknown.
	ThumbReach float64
	// PinchThreshold is the thumb tip to index tip distance below which the
	// hand is pinching.
	PinchThreshold float64
	// UseDepth includes the z axis in distance computations.
	UseDepth bool
}

// DefaultThresholds returns starting values for a webcam at arm's length.
func DefaultThresholds() Thresholds {
	return Thresholds{
		OpenMargin:     0.10,
		ThumbMargin:    0.25,
		ThumbReach:     0.80,
		PinchThreshold: 0.25,
	}
}

// Validate reports the first threshold that cannot produce sensible output.
func (t Thresholds) Validate() error {
	var errs []error
	if t.OpenMargin < 0 {
		errs = append(errs, fmt.Errorf("open margin must be >= 0, got %g", t.OpenMargin))
	}
	if t.ThumbMargin < 0 {
		errs = append(errs, fmt.Errorf("thumb margin must be >= 0, got %g", t.ThumbMargin))
	}
	if t.ThumbReach <= 0 {
		errs = append(errs, fmt.Errorf("thumb reach must be > 0, got %g", t.ThumbReach))
	}
	if t.PinchThreshold <= 0 {
		errs = append(errs, fmt.Errorf("pinch threshold must be > 0, got %g", t.PinchThreshold))
	}
	return errors.Join(errs...)
}

// Features is the per-frame description of one hand. It is computed fresh
// for every frame and never cached.
type Features struct {
	// Open reports whether each finger is extended.
	Open [NumFingers]bool `json:"open"`
	// Extension is the raw, scale-normalized signal each Open value was
	// thresholded from.
	Extension [NumFingers]float64 `json:"extension"`
	// PinchDistance is the thumb tip to index tip distance.
	PinchDistance float64 `json:"pinch_distance"`
	// IndexMiddleDistance is the index tip to middle tip distance.
	IndexMiddleDistance float64 `json:"index_middle_distance"`
	// ThumbAngle is the angle in degrees between the thumb (MCP to tip) and
	// the palm axis (wrist to middle MCP).
	ThumbAngle float64 `json:"thumb_angle"`
	// Handedness is copied from the detector, possibly empty.
	Handedness string `json:"handedness,omitempty"`
}

// OpenCount returns the number of open fingers.
func (f Features) OpenCount() int {
	n := 0
	for _, open := range f.Open {
		if open {
			n++
		}
	}
	return n
}

// Pattern renders openness as five digits, thumb first: "01000" is pointing.
func (f Features) Pattern() string {
	var b strings.Builder
	for _, open := range f.Open {
		if open {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Extractor derives Features from landmarks. It holds only configuration.
type Extractor struct {
	th Thresholds
}

// NewExtractor creates an Extractor with the given thresholds.
func NewExtractor(th Thresholds) *Extractor {
	return &Extractor{th: th}
}

// Extract computes the features of one hand. A nil hand, or one whose
// reference length is degenerate, yields nil: the frame is empty.
func (e *Extractor) Extract(hand *detector.HandLandmarks) *Features {
	n := hand.Normalize(!e.th.UseDepth)
	if n == nil {
		return nil
	}

	p := n.Points
	palm := palmCenter(p)
	f := &Features{Handedness: hand.Handedness}

	for finger := Index; finger < NumFingers; finger++ {
		pip, tip := p[fingerJoints[finger][0]], p[fingerJoints[finger][1]]
		ext := detector.Distance(tip, palm) - detector.Distance(pip, palm)
		f.Extension[finger] = ext
		f.Open[finger] = ext > e.th.OpenMargin
	}

	if sign, ok := thumbSign(hand.Handedness); ok {
		ext := sign * (p[detector.ThumbTip].X - p[detector.IndexMCP].X)
		f.Extension[Thumb] = ext
		f.Open[Thumb] = ext > e.th.ThumbMargin
	} else {
		reach := detector.Distance(p[detector.ThumbTip], palm)
		f.Extension[Thumb] = reach
		f.Open[Thumb] = reach > e.th.ThumbReach
	}

	f.PinchDistance = detector.Distance(p[detector.ThumbTip], p[detector.IndexTip])
	f.IndexMiddleDistance = detector.Distance(p[detector.IndexTip], p[detector.MiddleTip])
	f.ThumbAngle = angleBetween(
		p[detector.ThumbTip].Sub(p[detector.ThumbMCP]),
		p[detector.MiddleMCP].Sub(p[detector.Wrist]),
	)

	return f
}

// thumbSign returns +1 when an open thumb lies at larger x than the index MCP.
// The detector labels handedness from the image as it is fed, so a Right
// hand holds its thumb on the small-x side whether or not frames were
// flipped. ok is false when handedness is unknown.
func thumbSign(handedness string) (float64, bool) {
	switch handedness {
	case detector.HandRight:
		return -1, true
	case detector.HandLeft:
		return 1, true
	}
	return 0, false
}

// palmCenter is the mean of the wrist and the four non-thumb MCP joints.
func palmCenter(p [detector.NumLandmarks]detector.Point3D) detector.Point3D {
	joints := []int{detector.Wrist, detector.IndexMCP, detector.MiddleMCP, detector.RingMCP, detector.PinkyMCP}
	var c detector.Point3D
	for _, j := range joints {
		c.X += p[j].X
		c.Y += p[j].Y
		c.Z += p[j].Z
	}
	n := float64(len(joints))
	return detector.Point3D{X: c.X / n, Y: c.Y / n, Z: c.Z / n}
}

// angleBetween returns the angle between a and b in degrees, 0 if either is zero.
func angleBetween(a, b detector.Point3D) float64 {
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return 0
	}
	cos := (a.X*b.X + a.Y*b.Y + a.Z*b.Z) / (la * lb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
