package detector

import "gocv.io/x/gocv"

// Detector is the external landmark source. It is called once per frame.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// An empty slice means no hand was detected in this frame.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// Script overrides the location of mediapipe_service.py.
	Script string

	// Python overrides the interpreter used to run the script.
	Python string
}

// DefaultConfig mirrors the detector settings of the media controller:
// one hand, 0.6 detection and tracking confidence.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.6,
		MinTrackingConf: 0.6,
	}
}

// Primary returns the first hand in hands, or nil when none was detected.
// Only one hand drives the gesture pipeline.
func Primary(hands []HandLandmarks) *HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	return &hands[0]
}
