// Package drag implements press-and-hold rescheduling: a long press turns
// into a drag, and the release position is converted into a new start
// time snapped to the quarter hour.
package drag

import (
	"math"
	"sync"
	"time"

	"keycal/internal/calendar"
	"keycal/internal/log"
	"keycal/internal/model"
)

type State int

const (
	Idle State = iota
	Pressing
	Dragging
)

func (s State) String() string {
	switch s {
	case Pressing:
		return "pressing"
	case Dragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Point is a pointer position in viewport pixels.
type Point struct {
	X, Y float64
}

// Viewport is the visible area the edge thresholds are measured against.
// A zero Height disables edge scrolling and a zero Width disables day
// switching.
type Viewport struct {
	Width, Height float64
}

// Effects receives the side effects of a drag. Calls are made without the
// recognizer's lock held, so implementations may call back into it.
type Effects interface {
	// Scroll scrolls the day view by dy pixels.
	Scroll(dy float64)
	// SelectDay changes the displayed day.
	SelectDay(day time.Time)
	// Haptic signals that the long press turned into a drag.
	Haptic()
}

// Timer is the part of *time.Timer the recognizer uses.
type Timer interface {
	Stop() bool
}

// Clock schedules the long-press timer. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// OutcomeKind says how an interaction ended.
type OutcomeKind int

const (
	// None: the input did not end an interaction.
	None OutcomeKind = iota
	// Click: released before the long press fired.
	Click
	// Cancelled: moved too far before the long press fired.
	Cancelled
	// Dropped: released while dragging; Move is set.
	Dropped
)

// Outcome is returned by inputs that may end an interaction.
type Outcome struct {
	Kind  OutcomeKind
	Event model.Event
	Move  *Move
}

type effect func(Effects)

// Recognizer is the Idle -> Pressing -> Dragging state machine. A
// generation counter invalidates long-press timers from earlier presses.
type Recognizer struct {
	cfg     Config
	clock   Clock
	effects Effects

	mu       sync.Mutex
	state    State
	gen      uint64
	timer    Timer
	event    model.Event
	start    Point
	current  Point
	day      time.Time
	viewport Viewport
}

type Option func(*Recognizer)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(r *Recognizer) { r.clock = c }
}

// New returns an idle recognizer. A nil effects discards side effects.
func New(cfg Config, vp Viewport, effects Effects, opts ...Option) *Recognizer {
	r := &Recognizer{
		cfg:      cfg.Normalize(),
		clock:    realClock{},
		effects:  effects,
		viewport: vp,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Recognizer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetViewport updates the edge-threshold reference, e.g. on resize.
func (r *Recognizer) SetViewport(vp Viewport) {
	r.mu.Lock()
	r.viewport = vp
	r.mu.Unlock()
}

// Offset is the live vertical travel of a dragged event, 0 otherwise.
func (r *Recognizer) Offset() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Dragging {
		return 0
	}
	return r.current.Y - r.start.Y
}

// Day is the day the event will be dropped on.
func (r *Recognizer) Day() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.day
}

// Press starts an interaction on e. selected is the currently displayed
// day. A press while another interaction is active restarts it.
func (r *Recognizer) Press(e model.Event, p Point, selected time.Time) {
	r.mu.Lock()
	r.stopTimerLocked()
	r.gen++
	gen := r.gen
	r.state = Pressing
	r.event = e
	r.start = p
	r.current = p
	r.day = selected
	r.timer = r.clock.AfterFunc(r.cfg.LongPress, func() { r.fire(gen) })
	r.mu.Unlock()
}

func (r *Recognizer) fire(gen uint64) {
	r.mu.Lock()
	if gen != r.gen || r.state != Pressing {
		r.mu.Unlock()
		return
	}
	r.state = Dragging
	r.timer = nil
	id := r.event.ID
	r.mu.Unlock()

	log.Debug("drag started", "event_id", id)
	r.apply([]effect{func(fx Effects) { fx.Haptic() }})
}

// Move feeds a pointer position. While pressing, travel beyond the
// tolerance cancels the press. While dragging, positions near the
// viewport edges scroll or switch day on every call.
func (r *Recognizer) Move(p Point) Outcome {
	r.mu.Lock()
	var (
		out     Outcome
		effects []effect
	)
	switch r.state {
	case Pressing:
		r.current = p
		if math.Hypot(p.X-r.start.X, p.Y-r.start.Y) > r.cfg.MoveTolerance {
			out = Outcome{Kind: Cancelled, Event: r.event}
			r.resetLocked()
		}
	case Dragging:
		r.current = p
		effects = r.edgeEffectsLocked(p)
	}
	r.mu.Unlock()

	r.apply(effects)
	return out
}

func (r *Recognizer) edgeEffectsLocked(p Point) []effect {
	var out []effect
	switch {
	case r.viewport.Height <= 0:
	case p.Y > r.viewport.Height-r.cfg.ScrollThreshold:
		step := r.cfg.ScrollStep
		out = append(out, func(fx Effects) { fx.Scroll(step) })
	case p.Y < r.cfg.ScrollThreshold:
		step := -r.cfg.ScrollStep
		out = append(out, func(fx Effects) { fx.Scroll(step) })
	}

	shift := 0
	switch {
	case r.viewport.Width <= 0:
	case p.X < r.cfg.DaySwitchThreshold:
		shift = -1
	case p.X > r.viewport.Width-r.cfg.DaySwitchThreshold:
		shift = 1
	}
	if shift != 0 {
		r.day = calendar.Shift(r.day, shift)
		day := r.day
		out = append(out, func(fx Effects) { fx.SelectDay(day) })
	}
	return out
}

// Release ends the interaction at p. A release while pressing is a click;
// a release while dragging computes the drop on the current day.
func (r *Recognizer) Release(p Point) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Pressing:
		out := Outcome{Kind: Click, Event: r.event}
		r.resetLocked()
		return out
	case Dragging:
		d := ComputeDrop(r.event, p.Y-r.start.Y, r.cfg)
		mv := &Move{
			EventID:   r.event.ID,
			Date:      model.DateOf(r.day),
			StartTime: d.StartTime,
			EndTime:   d.EndTime,
			Previous:  r.event,
		}
		out := Outcome{Kind: Dropped, Event: r.event, Move: mv}
		log.Debug("drag dropped", "event_id", mv.EventID, "start", mv.StartTime, "end", mv.EndTime,
			"date", mv.Date.Format(time.DateOnly))
		r.resetLocked()
		return out
	}
	return Outcome{}
}

// Cancel abandons any interaction without an outcome.
func (r *Recognizer) Cancel() {
	r.mu.Lock()
	r.resetLocked()
	r.mu.Unlock()
}

func (r *Recognizer) resetLocked() {
	r.stopTimerLocked()
	r.gen++
	r.state = Idle
	r.event = model.Event{}
	r.start = Point{}
	r.current = Point{}
}

func (r *Recognizer) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Recognizer) apply(effects []effect) {
	if r.effects == nil {
		return
	}
	for _, e := range effects {
		e(r.effects)
	}
}
