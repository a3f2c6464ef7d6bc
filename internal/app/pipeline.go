package app

import (
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
)

// FrameResult describes what one frame did to the gesture state.
type FrameResult struct {
	Frame     uint64                  `json:"frame"`
	Hand      *detector.HandLandmarks `json:"-"`
	Features  *gesture.Features       `json:"features,omitempty"`
	Raw       gesture.Label           `json:"raw"`
	Committed gesture.Label           `json:"committed"`
	Mode      string                  `json:"mode"`
	Change    *gesture.StableChange   `json:"change,omitempty"`
	Dispatch  *dispatch.Result        `json:"dispatch,omitempty"`
}

// Observer receives every FrameResult, on the frame loop goroutine.
// Observers must return quickly.
type Observer func(FrameResult)

// Pipeline runs extract, classify, stabilize and dispatch for one frame
// at a time. It is owned by a single goroutine.
//
// Stages:
// 1. Extract finger features from the primary hand (nil hand -> EMPTY)
// 2. Classify the features with the ordered rule table
// 3. Feed the raw label to the run-length stabilizer
// 4. On a committed change, let the dispatcher fire the bound action
type Pipeline struct {
	extractor  *gesture.Extractor
	classifier *gesture.Classifier
	stabilizer *gesture.Stabilizer
	dispatcher *dispatch.Dispatcher
	observers  []Observer
	frames     uint64
	now        func() time.Time
}

// NewPipeline wires the stages together around an existing dispatcher.
func NewPipeline(th gesture.Thresholds, runLength int, d *dispatch.Dispatcher) (*Pipeline, error) {
	if err := th.Validate(); err != nil {
		return nil, fmt.Errorf("feature thresholds: %w", err)
	}

	stab, err := gesture.NewStabilizer(runLength)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		extractor:  gesture.NewExtractor(th),
		classifier: gesture.NewClassifier(gesture.DefaultRules(th)),
		stabilizer: stab,
		dispatcher: d,
		now:        time.Now,
	}, nil
}

// OnFrame registers an observer.
func (p *Pipeline) OnFrame(fn Observer) {
	p.observers = append(p.observers, fn)
}

// SetClock replaces the clock of the stabilizer and dispatcher.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
	p.stabilizer.SetClock(now)
	p.dispatcher.SetClock(now)
}

// Clock returns the clock last installed by SetClock, time.Now by default.
func (p *Pipeline) Clock() func() time.Time {
	return p.now
}

// Process consumes one frame. hand is the primary hand, or nil when the
// frame has none.
func (p *Pipeline) Process(hand *detector.HandLandmarks) FrameResult {
	p.frames++

	feats := p.extractor.Extract(hand)
	raw := p.classifier.Classify(feats)

	res := FrameResult{
		Frame:    p.frames,
		Hand:     hand,
		Features: feats,
		Raw:      raw,
	}

	if ev, changed := p.stabilizer.Observe(raw); changed {
		res.Change = &ev
		out := p.dispatcher.OnStableChange(ev)
		res.Dispatch = &out
	}

	res.Committed = p.stabilizer.Committed()
	res.Mode = p.dispatcher.Mode()

	for _, fn := range p.observers {
		fn(res)
	}

	return res
}

// ProcessHands picks the primary hand from a detector result and processes it.
func (p *Pipeline) ProcessHands(hands []detector.HandLandmarks) FrameResult {
	return p.Process(detector.Primary(hands))
}

// Reset clears the stabilizer as at stream start. The dispatcher keeps its
// mode and cooldown history.
func (p *Pipeline) Reset() {
	p.stabilizer.Reset()
}

// Committed returns the current stable label.
func (p *Pipeline) Committed() gesture.Label {
	return p.stabilizer.Committed()
}

// Frames returns how many frames have been processed.
func (p *Pipeline) Frames() uint64 {
	return p.frames
}

// Dispatcher returns the dispatcher driven by this pipeline.
func (p *Pipeline) Dispatcher() *dispatch.Dispatcher {
	return p.dispatcher
}
