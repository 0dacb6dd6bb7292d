package drag

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keycal/internal/model"
)

var selected = time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC)

func nineToTen() model.Event {
	return model.Event{
		ID:        "evt-1",
		Category:  model.CategoryWork,
		Title:     "Standup",
		Date:      selected,
		StartTime: "9:00 AM",
		EndTime:   "10:00 AM",
	}
}

// pixels converts minutes of travel into pixels at the default hour height.
func pixels(minutes float64) float64 {
	return minutes / 60 * DefaultConfig().HourHeight
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 3, RoundHalfUp(2.5))
	assert.Equal(t, 2, RoundHalfUp(2.49))
	assert.Equal(t, -2, RoundHalfUp(-2.5))
	assert.Equal(t, -3, RoundHalfUp(-2.51))
}

func TestSnap(t *testing.T) {
	assert.Equal(t, 570, Snap(577, 15))
	assert.Equal(t, 585, Snap(578, 15))
	assert.Equal(t, 0, Snap(-7, 15))
	assert.Equal(t, -15, Snap(-8, 15))
	// Exact halves go up.
	assert.Equal(t, 10, Snap(5, 10))
	assert.Equal(t, 0, Snap(-5, 10))
	assert.Equal(t, 7, Snap(7, 0))
}

func TestComputeDropPinnedRounding(t *testing.T) {
	cfg := DefaultConfig()
	e := nineToTen()

	// +37 minutes is nearer the half hour than the three-quarter mark.
	d := ComputeDrop(e, pixels(37), cfg)
	assert.Equal(t, "9:30 AM", d.StartTime)
	assert.Equal(t, "10:30 AM", d.EndTime)

	d = ComputeDrop(e, pixels(38), cfg)
	assert.Equal(t, "9:45 AM", d.StartTime)
	assert.Equal(t, "10:45 AM", d.EndTime)

	d = ComputeDrop(e, pixels(-45), cfg)
	assert.Equal(t, "8:15 AM", d.StartTime)
}

func TestComputeDropClamps(t *testing.T) {
	cfg := DefaultConfig()
	e := nineToTen()

	d := ComputeDrop(e, pixels(20*60), cfg)
	assert.Equal(t, LatestStart, d.StartMinutes)
	assert.Equal(t, "11:45 PM", d.StartTime)
	// The duration is kept, so the end wraps past midnight.
	assert.Equal(t, "12:45 AM", d.EndTime)

	d = ComputeDrop(e, pixels(-12*60), cfg)
	assert.Equal(t, 0, d.StartMinutes)
	assert.Equal(t, "12:00 AM", d.StartTime)
	assert.Equal(t, "1:00 AM", d.EndTime)
}

func TestComputeDropUsesMinutesOfStart(t *testing.T) {
	e := nineToTen()
	e.StartTime = "9:50 AM"
	e.EndTime = "10:20 AM"

	d := ComputeDrop(e, 0, DefaultConfig())
	assert.Equal(t, "9:45 AM", d.StartTime)
	assert.Equal(t, "10:15 AM", d.EndTime)
}

func TestMovePatches(t *testing.T) {
	prev := nineToTen()
	next := selected.AddDate(0, 0, 1)
	mv := Move{EventID: prev.ID, Date: next, StartTime: "1:00 PM", EndTime: "2:00 PM", Previous: prev}

	moved := mv.Patch().Apply(prev)
	assert.Equal(t, next, moved.Date)
	assert.Equal(t, "1:00 PM", moved.StartTime)

	restored := mv.Undo().Apply(moved)
	assert.Equal(t, prev, restored)
}

type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// fireAll runs every pending timer, including stopped ones, to exercise
// stale callbacks.
func (c *manualClock) fireAll() {
	c.mu.Lock()
	timers := append([]*manualTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, t := range timers {
		t.f()
	}
}

type recordedEffects struct {
	scrolls []float64
	days    []time.Time
	haptics int
}

func (r *recordedEffects) Scroll(dy float64)       { r.scrolls = append(r.scrolls, dy) }
func (r *recordedEffects) SelectDay(day time.Time) { r.days = append(r.days, day) }
func (r *recordedEffects) Haptic()                 { r.haptics++ }

func newTestRecognizer() (*Recognizer, *manualClock, *recordedEffects) {
	clock := &manualClock{}
	fx := &recordedEffects{}
	r := New(DefaultConfig(), Viewport{Width: 400, Height: 800}, fx, WithClock(clock))
	return r, clock, fx
}

func TestReleaseBeforeLongPressIsClick(t *testing.T) {
	r, clock, fx := newTestRecognizer()
	r.Press(nineToTen(), Point{X: 200, Y: 300}, selected)
	assert.Equal(t, Pressing, r.State())

	out := r.Release(Point{X: 200, Y: 300})
	assert.Equal(t, Click, out.Kind)
	assert.Equal(t, "evt-1", out.Event.ID)
	assert.Equal(t, Idle, r.State())

	clock.fireAll()
	assert.Equal(t, Idle, r.State())
	assert.Zero(t, fx.haptics)
}

func TestMoveBeyondToleranceCancelsPress(t *testing.T) {
	r, clock, fx := newTestRecognizer()
	r.Press(nineToTen(), Point{X: 200, Y: 300}, selected)

	out := r.Move(Point{X: 206, Y: 306})
	assert.Equal(t, None, out.Kind, "8.5px is within tolerance")
	assert.Equal(t, Pressing, r.State())

	out = r.Move(Point{X: 200, Y: 311})
	assert.Equal(t, Cancelled, out.Kind)
	assert.Equal(t, Idle, r.State())

	clock.fireAll()
	assert.Equal(t, Idle, r.State())
	assert.Zero(t, fx.haptics)
	assert.Equal(t, None, r.Release(Point{X: 200, Y: 311}).Kind)
}

func TestLongPressDragAndDrop(t *testing.T) {
	r, clock, fx := newTestRecognizer()
	r.Press(nineToTen(), Point{X: 200, Y: 300}, selected)
	clock.fireAll()
	require.Equal(t, Dragging, r.State())
	assert.Equal(t, 1, fx.haptics)

	r.Move(Point{X: 200, Y: 300 + pixels(20)})
	assert.InDelta(t, pixels(20), r.Offset(), 1e-9)
	assert.Empty(t, fx.scrolls)
	assert.Empty(t, fx.days)

	out := r.Release(Point{X: 200, Y: 300 + pixels(37)})
	require.Equal(t, Dropped, out.Kind)
	require.NotNil(t, out.Move)
	assert.Equal(t, "evt-1", out.Move.EventID)
	assert.Equal(t, "9:30 AM", out.Move.StartTime)
	assert.Equal(t, "10:30 AM", out.Move.EndTime)
	assert.Equal(t, selected, out.Move.Date)
	assert.Equal(t, nineToTen(), out.Move.Previous)
	assert.Equal(t, Idle, r.State())
	assert.Zero(t, r.Offset())
}

func TestDragEdgesScrollAndSwitchDayOnEveryMove(t *testing.T) {
	r, clock, fx := newTestRecognizer()
	r.Press(nineToTen(), Point{X: 200, Y: 400}, selected)
	clock.fireAll()

	r.Move(Point{X: 200, Y: 750})
	r.Move(Point{X: 200, Y: 760})
	r.Move(Point{X: 200, Y: 50})
	assert.Equal(t, []float64{10, 10, -10}, fx.scrolls)

	r.Move(Point{X: 350, Y: 400})
	r.Move(Point{X: 390, Y: 400})
	require.Len(t, fx.days, 2)
	assert.Equal(t, selected.AddDate(0, 0, 2), fx.days[1])

	r.Move(Point{X: 10, Y: 400})
	assert.Equal(t, selected.AddDate(0, 0, 1), r.Day())

	out := r.Release(Point{X: 200, Y: 400})
	require.Equal(t, Dropped, out.Kind)
	assert.Equal(t, selected.AddDate(0, 0, 1), out.Move.Date)
	assert.Equal(t, "9:00 AM", out.Move.StartTime)
}

func TestZeroViewportHasNoEdgeEffects(t *testing.T) {
	clock := &manualClock{}
	fx := &recordedEffects{}
	r := New(DefaultConfig(), Viewport{}, fx, WithClock(clock))
	r.Press(nineToTen(), Point{X: 200, Y: 300}, selected)
	clock.fireAll()
	require.Equal(t, Dragging, r.State())

	r.Move(Point{X: 200, Y: 300 + pixels(20)})
	r.Move(Point{X: 200, Y: 300 + pixels(40)})
	assert.Empty(t, fx.scrolls)
	assert.Empty(t, fx.days)
	assert.Equal(t, selected, r.Day())

	r.SetViewport(Viewport{Width: 400, Height: 800})
	r.Move(Point{X: 390, Y: 750})
	assert.Equal(t, []float64{10}, fx.scrolls)
	require.Len(t, fx.days, 1)
	assert.Equal(t, selected.AddDate(0, 0, 1), fx.days[0])
}

func TestStaleTimerDoesNotStartDrag(t *testing.T) {
	r, clock, _ := newTestRecognizer()
	r.Press(nineToTen(), Point{X: 200, Y: 300}, selected)
	r.Release(Point{X: 200, Y: 300})

	other := nineToTen()
	other.ID = "evt-2"
	r.Press(other, Point{X: 100, Y: 100}, selected)

	// The first timer belongs to a finished press; only the second may
	// promote the current one.
	clock.mu.Lock()
	first := clock.timers[0]
	clock.mu.Unlock()
	first.f()
	assert.Equal(t, Pressing, r.State())

	clock.fireAll()
	assert.Equal(t, Dragging, r.State())
	out := r.Release(Point{X: 100, Y: 100})
	assert.Equal(t, "evt-2", out.Move.EventID)
}

func TestCancelResets(t *testing.T) {
	r, clock, fx := newTestRecognizer()
	r.Press(nineToTen(), Point{X: 200, Y: 300}, selected)
	r.Cancel()
	clock.fireAll()
	assert.Equal(t, Idle, r.State())
	assert.Zero(t, fx.haptics)
}

func TestNilEffects(t *testing.T) {
	clock := &manualClock{}
	r := New(Config{}, Viewport{Width: 400, Height: 800}, nil, WithClock(clock))
	r.Press(nineToTen(), Point{X: 200, Y: 790}, selected)
	clock.fireAll()
	r.Move(Point{X: 5, Y: 795})
	out := r.Release(Point{X: 5, Y: 795})
	assert.Equal(t, Dropped, out.Kind)
}
