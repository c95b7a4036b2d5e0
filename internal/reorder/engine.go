// Package reorder turns drag gestures into a new todo order.
//
// An Engine tracks one gesture at a time. Pointer and touch gestures must pass
// an activation threshold before they count as a drag, so that clicks and taps
// on an item are not mistaken for reorders. Keyboard pick-up activates at once.
package reorder

import (
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"todosync/internal/logging"
	"todosync/internal/order"
)

// Input is the kind of device driving a gesture.
type Input int

const (
	Pointer Input = iota
	Touch
	Keyboard
)

func (i Input) String() string {
	switch i {
	case Touch:
		return "touch"
	case Keyboard:
		return "keyboard"
	default:
		return "pointer"
	}
}

// State of the engine.
type State int

const (
	// Idle: no gesture.
	Idle State = iota
	// Armed: pressed but below the activation threshold.
	Armed
	// Dragging: an item is being dragged.
	Dragging
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Dragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Point is a position in screen units.
type Point struct {
	X, Y float64
}

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Activation holds the thresholds separating drags from clicks and taps.
type Activation struct {
	// PointerDistance is the movement needed before a pointer drag starts.
	PointerDistance float64
	// TouchDelay is how long a touch must be held before a drag starts.
	TouchDelay time.Duration
	// TouchTolerance is the movement allowed during TouchDelay.
	TouchTolerance float64
}

// DefaultActivation returns the standard thresholds.
func DefaultActivation() Activation {
	return Activation{
		PointerDistance: 10,
		TouchDelay:      250 * time.Millisecond,
		TouchTolerance:  5,
	}
}

// Saver persists a new order.
type Saver interface {
	Save(order.List) error
}

// Options configures an Engine.
type Options struct {
	Activation Activation
	Now        func() time.Time
	Logger     *log.Logger
}

// Engine is the drag state machine.
type Engine struct {
	saver  Saver
	act    Activation
	now    func() time.Time
	logger *log.Logger

	mu       sync.Mutex
	state    State
	activeID string
	input    Input
	origin   Point
	pressed  time.Time
}

// NewEngine creates an Engine that saves drops through saver.
func NewEngine(saver Saver, opts Options) *Engine {
	if opts.Activation == (Activation{}) {
		opts.Activation = DefaultActivation()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		saver:  saver,
		act:    opts.Activation,
		now:    opts.Now,
		logger: logging.OrDiscard(opts.Logger).WithPrefix("reorder"),
	}
}

// State returns the current state and the dragged id, if any.
func (e *Engine) State() (State, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.activeID
}

// Start presses on the item id. A gesture already in progress is replaced.
func (e *Engine) Start(id string, input Input, at Point) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.activeID = id
	e.input = input
	e.origin = at
	e.pressed = e.now()
	e.state = Armed
	if input == Keyboard {
		e.state = Dragging
	}
	e.logger.Debug("start", "id", id, "input", input, "state", e.state)
	return e.state
}

// Track reports movement of the pressed pointer or finger and returns the
// resulting state. A touch moving past the tolerance before the delay elapsed
// aborts the gesture.
func (e *Engine) Track(at Point) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Armed {
		return e.state
	}
	moved := distance(e.origin, at)

	switch e.input {
	case Pointer:
		if moved >= e.act.PointerDistance {
			e.activateLocked()
		}
	case Touch:
		if moved > e.act.TouchTolerance {
			e.logger.Debug("touch moved before delay, aborting", "id", e.activeID)
			e.resetLocked()
			return e.state
		}
		if e.now().Sub(e.pressed) >= e.act.TouchDelay {
			e.activateLocked()
		}
	}
	return e.state
}

// heldLocked reports whether an armed touch has been held still for the
// activation delay.
func (e *Engine) heldLocked() bool {
	return e.state == Armed && e.input == Touch && e.now().Sub(e.pressed) >= e.act.TouchDelay
}

func (e *Engine) activateLocked() {
	e.state = Dragging
	e.logger.Debug("dragging", "id", e.activeID, "input", e.input)
}

func (e *Engine) resetLocked() {
	e.state = Idle
	e.activeID = ""
}

// Drop releases the gesture over target and returns the new order for list.
// A touch held for the activation delay counts as dragging even without
// movement. The engine is Idle afterwards in every case. When no drag was active, or the
// move is a no-op, list is returned unchanged and nothing is saved.
func (e *Engine) Drop(list order.List, target DropTarget) (order.List, error) {
	e.mu.Lock()
	if e.heldLocked() {
		e.activateLocked()
	}
	state, active := e.state, e.activeID
	e.resetLocked()
	e.mu.Unlock()

	if state != Dragging {
		return list.Clone(), nil
	}
	out, changed := Move(list, active, target)
	if !changed {
		e.logger.Debug("drop without change", "id", active, "target", target.TargetID)
		return out, nil
	}
	if err := e.saver.Save(out); err != nil {
		return list.Clone(), err
	}
	e.logger.Debug("dropped", "id", active, "target", target.TargetID, "position", target.Position)
	return out, nil
}

// Cancel abandons the gesture.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}
