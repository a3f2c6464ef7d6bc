package gesture

import (
	"errors"
	"testing"

	"github.com/ayusman/mudra/internal/detector"
)

// features builds a vector from a thumb-first openness pattern and a pinch distance.
func features(pattern string, pinch float64) *Features {
	f := &Features{PinchDistance: pinch}
	for i, c := range pattern {
		f.Open[i] = c == '1'
	}
	return f
}

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(DefaultRules(DefaultThresholds()))

	tests := []struct {
		name     string
		features *Features
		want     Label
	}{
		{"empty input", nil, None},
		{"fist", features("00000", 1.0), Fist},
		{"thumbs up", features("10000", 1.0), ThumbsUp},
		{"pointing thumb closed", features("01000", 1.0), Pointing},
		{"pointing thumb open", features("11000", 1.0), Pointing},
		{"open palm", features("11111", 1.0), OpenPalm},
		{"pinch with open fingers", features("11111", 0.1), Pinch},
		{"victory is unknown", features("01100", 1.0), None},
		{"four fingers no thumb", features("01111", 1.0), None},
		{"pinky only", features("00001", 1.0), None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.features); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassifier_PinchBeatsFist(t *testing.T) {
	c := NewClassifier(DefaultRules(DefaultThresholds()))

	// Thumb and index tips adjacent with every finger flexed satisfies both
	// the pinch rule and the fist rule.
	f := features("00000", 0.05)
	if got := c.Classify(f); got != Pinch {
		t.Errorf("expected PINCH, got %s", got)
	}
}

func TestClassifier_ThumbsUpBeatsPointing(t *testing.T) {
	c := NewClassifier(DefaultRules(DefaultThresholds()))

	if got := c.Classify(features("10000", 1.0)); got != ThumbsUp {
		t.Errorf("expected THUMBS_UP, got %s", got)
	}
}

func TestClassifier_PinchThresholdIsConfigurable(t *testing.T) {
	th := DefaultThresholds()
	th.PinchThreshold = 0.05
	c := NewClassifier(DefaultRules(th))

	if got := c.Classify(features("00000", 0.1)); got != Fist {
		t.Errorf("expected FIST with tighter pinch threshold, got %s", got)
	}
}

func TestClassifier_Fixtures(t *testing.T) {
	th := DefaultThresholds()
	ex := NewExtractor(th)
	c := NewClassifier(DefaultRules(th))

	tests := []struct {
		hand detector.HandLandmarks
		want Label
	}{
		{detector.FistLandmarks(), Fist},
		{detector.ThumbsUpLandmarks(), ThumbsUp},
		{detector.PointingLandmarks(), Pointing},
		{detector.OpenPalmLandmarks(), OpenPalm},
		{detector.PinchLandmarks(), Pinch},
		{detector.Mirror(detector.OpenPalmLandmarks()), OpenPalm},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			hand := tt.hand
			if got := c.Classify(ex.Extract(&hand)); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassifier_CustomRules(t *testing.T) {
	victory := Label("VICTORY")
	rules := append([]Rule{{
		Label: victory,
		Match: func(f *Features) bool { return f.Pattern() == "01100" },
	}}, DefaultRules(DefaultThresholds())...)

	c := NewClassifier(rules)
	if got := c.Classify(features("01100", 1.0)); got != victory {
		t.Errorf("expected VICTORY, got %s", got)
	}
	if got := c.Rules(); len(got) != 6 || got[0] != victory || got[1] != Pinch {
		t.Errorf("unexpected rule order %v", got)
	}
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in   string
		want Label
	}{
		{"FIST", Fist},
		{"thumbs-up", ThumbsUp},
		{"open palm", OpenPalm},
		{" pinch ", Pinch},
		{"none", None},
	}
	for _, tt := range tests {
		got, err := ParseLabel(tt.in)
		if err != nil {
			t.Errorf("ParseLabel(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLabel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLabel("wave"); !errors.Is(err, ErrUnknownLabel) {
		t.Errorf("expected ErrUnknownLabel, got %v", err)
	}
}
