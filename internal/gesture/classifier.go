package gesture

// Rule pairs a predicate over features with the label it yields.
type Rule struct {
	Label Label
	Match func(f *Features) bool
}

// DefaultRules returns the built-in rule table in priority order.
//
// Order matters: a pinch can pass for a loose fist, so it is checked first,
// and thumbs-up precedes pointing so a fist with a raised thumb is not read
// as a point.
func DefaultRules(th Thresholds) []Rule {
	return []Rule{
		{Label: Pinch, Match: func(f *Features) bool {
			return f.PinchDistance < th.PinchThreshold
		}},
		{Label: Fist, Match: func(f *Features) bool {
			return f.OpenCount() == 0
		}},
		{Label: ThumbsUp, Match: func(f *Features) bool {
			return f.Open[Thumb] && f.OpenCount() == 1
		}},
		{Label: Pointing, Match: func(f *Features) bool {
			return f.Open[Index] && !f.Open[Middle] && !f.Open[Ring] && !f.Open[Pinky]
		}},
		{Label: OpenPalm, Match: func(f *Features) bool {
			return f.OpenCount() == int(NumFingers)
		}},
	}
}

// Classifier maps features to a label by evaluating rules in order; the
// first matching rule wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a Classifier over rules. The slice is copied.
func NewClassifier(rules []Rule) *Classifier {
	c := &Classifier{rules: make([]Rule, len(rules))}
	copy(c.rules, rules)
	return c
}

// Classify returns the label of the first matching rule, or None for empty
// input or when nothing matches.
func (c *Classifier) Classify(f *Features) Label {
	if f == nil {
		return None
	}
	for _, r := range c.rules {
		if r.Match(f) {
			return r.Label
		}
	}
	return None
}

// Rules returns the labels of the rule table in evaluation order.
func (c *Classifier) Rules() []Label {
	labels := make([]Label, len(c.rules))
	for i, r := range c.rules {
		labels[i] = r.Label
	}
	return labels
}
