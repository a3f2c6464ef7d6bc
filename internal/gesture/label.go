// Package gesture turns hand landmarks into debounced gesture labels.
//
// A frame flows through three stages: Extract derives a Features value from
// one hand, a Classifier maps it to a Label using an ordered rule table, and
// a Stabilizer reports a StableChange only after a label has persisted for a
// configured number of consecutive frames.
package gesture

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLabel is returned by ParseLabel for names outside the label set.
var ErrUnknownLabel = errors.New("unknown gesture label")

// Label identifies a recognized gesture.
type Label string

// Built-in labels. None means no hand or no rule matched.
const (
	None     Label = "NONE"
	Fist     Label = "FIST"
	ThumbsUp Label = "THUMBS_UP"
	Pointing Label = "POINTING"
	OpenPalm Label = "OPEN_PALM"
	Pinch    Label = "PINCH"
)

// Labels returns the built-in gesture labels in rule priority order.
// None is not included.
func Labels() []Label {
	return []Label{Pinch, Fist, ThumbsUp, Pointing, OpenPalm}
}

func (l Label) String() string {
	return string(l)
}

// ParseLabel resolves a label name case-insensitively. Dashes and spaces are
// accepted in place of underscores, so "thumbs-up" parses as ThumbsUp.
func ParseLabel(s string) (Label, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.NewReplacer("-", "_", " ", "_").Replace(name)

	if Label(name) == None {
		return None, nil
	}
	for _, l := range Labels() {
		if Label(name) == l {
			return l, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}
