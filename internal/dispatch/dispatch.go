// Package dispatch fires actions bound to stable gesture changes.
//
// The Dispatcher is the second debounce layer after the gesture Stabilizer:
// it only ever sees committed label transitions, looks up the binding for
// the active mode, enforces a per-(label, action) cooldown and then invokes
// the bound action exactly once.
package dispatch

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
)

// DefaultMode is the mode a Dispatcher starts in when none is given.
const DefaultMode = "default"

// AnyMode binds a gesture in every mode that has no binding of its own.
const AnyMode = ""

// ErrInvalidBinding is wrapped by every binding validation error.
var ErrInvalidBinding = errors.New("invalid binding")

// Action is a caller-supplied capability invoked when a gesture fires.
// Fire must not block the frame loop; slow actions run asynchronously.
type Action interface {
	Fire(label gesture.Label)
}

// ActionFunc adapts a plain function to Action.
type ActionFunc func(label gesture.Label)

// Fire calls f(label).
func (f ActionFunc) Fire(label gesture.Label) {
	f(label)
}

// LogAction is the "print" action: it only logs the gesture.
type LogAction struct {
	Description string
}

// Fire logs the action description and label.
func (a LogAction) Fire(label gesture.Label) {
	log.Printf("Action: %s (%s)", a.Description, label)
}

// Binding maps a gesture in a mode to an action.
type Binding struct {
	Mode     string // AnyMode applies to all modes
	Label    gesture.Label
	Name     string // identifies the action in logs and cooldown tracking
	Action   Action
	Cooldown time.Duration
	NextMode string // mode to switch to after a successful fire, if set
}

// Status describes what the Dispatcher did with a change.
type Status int

const (
	// StatusIgnored means the change was into None.
	StatusIgnored Status = iota
	// StatusUnbound means no binding exists for the label in the active mode.
	StatusUnbound
	// StatusCooldown means the binding fired too recently.
	StatusCooldown
	// StatusFired means the action was invoked.
	StatusFired
)

func (s Status) String() string {
	switch s {
	case StatusIgnored:
		return "ignored"
	case StatusUnbound:
		return "unbound"
	case StatusCooldown:
		return "cooldown"
	case StatusFired:
		return "fired"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result reports the outcome of one stable change.
type Result struct {
	Status Status        `json:"status"`
	Label  gesture.Label `json:"label"`
	Mode   string        `json:"mode"`             // active mode when the change arrived
	Action string        `json:"action,omitempty"` // binding name, empty if unbound
	Switch string        `json:"switch,omitempty"` // mode switched to, empty if unchanged
}

type bindingKey struct {
	mode  string
	label gesture.Label
}

type cooldownKey struct {
	label gesture.Label
	name  string
}

// Dispatcher holds the active mode and the last fire time of each binding.
// It is driven by the single frame loop and is not safe for concurrent use.
type Dispatcher struct {
	mode     string
	bindings map[bindingKey]Binding
	lastFire map[cooldownKey]time.Time
	now      func() time.Time
}

// New creates a Dispatcher starting in initialMode (DefaultMode if empty).
func New(initialMode string, bindings []Binding) (*Dispatcher, error) {
	if initialMode == "" {
		initialMode = DefaultMode
	}

	d := &Dispatcher{
		mode:     initialMode,
		lastFire: make(map[cooldownKey]time.Time),
		now:      time.Now,
	}
	if err := d.SetBindings(bindings); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks a single binding.
func (b Binding) Validate() error {
	switch {
	case b.Label == "":
		return fmt.Errorf("%w: empty label", ErrInvalidBinding)
	case b.Label == gesture.None:
		return fmt.Errorf("%w: %s cannot be bound", ErrInvalidBinding, gesture.None)
	case b.Name == "":
		return fmt.Errorf("%w: %s has no action name", ErrInvalidBinding, b.Label)
	case b.Action == nil:
		return fmt.Errorf("%w: %s/%s has no action", ErrInvalidBinding, b.Label, b.Name)
	case b.Cooldown < 0:
		return fmt.Errorf("%w: %s/%s has negative cooldown %v", ErrInvalidBinding, b.Label, b.Name, b.Cooldown)
	}
	return nil
}

// SetBindings replaces the binding table. The active mode and cooldown
// history are kept.
func (d *Dispatcher) SetBindings(bindings []Binding) error {
	table := make(map[bindingKey]Binding, len(bindings))
	for _, b := range bindings {
		if err := b.Validate(); err != nil {
			return err
		}
		key := bindingKey{mode: b.Mode, label: b.Label}
		if _, dup := table[key]; dup {
			return fmt.Errorf("%w: %s bound twice in mode %q", ErrInvalidBinding, b.Label, b.Mode)
		}
		table[key] = b
	}
	d.bindings = table
	return nil
}

// SetClock replaces the clock used for changes that carry no timestamp.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Mode returns the active mode.
func (d *Dispatcher) Mode() string {
	return d.mode
}

// SetMode switches the active mode directly.
func (d *Dispatcher) SetMode(mode string) {
	d.mode = mode
}

// OnStableChange handles one committed label transition. A suppressed fire
// is not an error; the returned Result says what happened.
func (d *Dispatcher) OnStableChange(ev gesture.StableChange) Result {
	res := Result{Label: ev.To, Mode: d.mode}
	if ev.To == gesture.None {
		res.Status = StatusIgnored
		return res
	}

	b, ok := d.lookup(ev.To)
	if !ok {
		res.Status = StatusUnbound
		return res
	}
	res.Action = b.Name

	at := ev.At
	if at.IsZero() {
		at = d.now()
	}

	key := cooldownKey{label: b.Label, name: b.Name}
	if last, fired := d.lastFire[key]; fired && at.Sub(last) < b.Cooldown {
		res.Status = StatusCooldown
		return res
	}

	b.Action.Fire(ev.To)
	d.lastFire[key] = at
	res.Status = StatusFired

	if b.NextMode != "" && b.NextMode != d.mode {
		d.mode = b.NextMode
		res.Switch = b.NextMode
	}
	return res
}

func (d *Dispatcher) lookup(label gesture.Label) (Binding, bool) {
	if b, ok := d.bindings[bindingKey{mode: d.mode, label: label}]; ok {
		return b, true
	}
	b, ok := d.bindings[bindingKey{mode: AnyMode, label: label}]
	return b, ok
}
