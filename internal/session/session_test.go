package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keycal/internal/drag"
	"keycal/internal/model"
	"keycal/internal/store"
)

var today = time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC)

// flakyStore wraps the memory store and fails or blocks updates on demand.
type flakyStore struct {
	*store.Memory
	failUpdate error
	failGet    error
	failCreate error
	gate       chan struct{}
	entered    chan struct{}
}

func (f *flakyStore) UpdateEvent(ctx context.Context, userID, id string, p model.EventPatch) (model.Event, error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	if f.failUpdate != nil {
		return model.Event{}, f.failUpdate
	}
	return f.Memory.UpdateEvent(ctx, userID, id, p)
}

func (f *flakyStore) GetEvent(ctx context.Context, userID, id string) (model.Event, error) {
	if f.failGet != nil {
		return model.Event{}, f.failGet
	}
	return f.Memory.GetEvent(ctx, userID, id)
}

func (f *flakyStore) CreateEvent(ctx context.Context, userID string, d model.EventDraft) (model.Event, error) {
	if f.failCreate != nil {
		return model.Event{}, f.failCreate
	}
	return f.Memory.CreateEvent(ctx, userID, d)
}

func newTestSession(t *testing.T) (*Session, *flakyStore, model.Event) {
	t.Helper()
	ctx := context.Background()
	fs := &flakyStore{Memory: store.NewMemory()}
	e, err := fs.Memory.CreateEvent(ctx, "u1", model.EventDraft{
		Category: model.CategoryWork, Title: "Standup", Date: today, StartTime: "9:00 AM", EndTime: "10:00 AM",
	})
	require.NoError(t, err)
	_, err = fs.Memory.CreateIndicator(ctx, "u1", model.IndicatorDraft{Category: model.CategoryWork, MeasurementType: model.MeasureTime, Goal: 20})
	require.NoError(t, err)

	s := New("u1", fs, fs, today)
	require.True(t, s.Load(ctx, model.DateRange{}))
	return s, fs, e
}

func moveOf(e model.Event, start, end string) drag.Move {
	return drag.Move{EventID: e.ID, Date: e.Date, StartTime: start, EndTime: end, Previous: e}
}

func TestLoadAndProgress(t *testing.T) {
	s, _, _ := newTestSession(t)
	assert.Len(t, s.Events(), 1)
	p := s.Indicators(today)
	require.Len(t, p, 1)
	assert.Equal(t, 1.0, p[0].ActualHours)
	assert.Len(t, s.DayLayout(), 1)
}

func TestLoadFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t)
	broken := New("u1", failingStore{}, failingStore{}, today)
	assert.False(t, broken.Load(ctx, model.DateRange{}))
	assert.Empty(t, broken.Events())
	assert.Len(t, s.Events(), 1)
}

func TestCommitMoveConfirms(t *testing.T) {
	ctx := context.Background()
	s, _, e := newTestSession(t)

	require.True(t, s.CommitMove(ctx, moveOf(e, "9:30 AM", "10:30 AM")))
	got, ok := s.Event(e.ID)
	require.True(t, ok)
	assert.Equal(t, "9:30 AM", got.StartTime)
	assert.False(t, s.Pending(e.ID))
	assert.True(t, s.CanUndo())

	require.True(t, s.Undo(ctx))
	got, _ = s.Event(e.ID)
	assert.Equal(t, "9:00 AM", got.StartTime)
	assert.False(t, s.CanUndo())
	assert.False(t, s.Undo(ctx))
}

func TestCommitMoveIsVisibleWhilePending(t *testing.T) {
	ctx := context.Background()
	s, fs, e := newTestSession(t)
	fs.gate = make(chan struct{})
	fs.entered = make(chan struct{})

	done := make(chan bool)
	go func() { done <- s.CommitMove(ctx, moveOf(e, "1:00 PM", "2:00 PM")) }()

	<-fs.entered
	assert.True(t, s.Pending(e.ID))
	got, _ := s.Event(e.ID)
	assert.Equal(t, "1:00 PM", got.StartTime)

	close(fs.gate)
	assert.True(t, <-done)
	assert.False(t, s.Pending(e.ID))
}

func TestCommitMoveFailureReverts(t *testing.T) {
	ctx := context.Background()
	s, fs, e := newTestSession(t)
	fs.failUpdate = errors.New("network down")

	assert.False(t, s.CommitMove(ctx, moveOf(e, "4:00 PM", "5:00 PM")))
	got, ok := s.Event(e.ID)
	require.True(t, ok)
	assert.Equal(t, "9:00 AM", got.StartTime)
	assert.False(t, s.Pending(e.ID))
	assert.False(t, s.CanUndo())
}

func TestCommitMoveFailureRefetchesServerTruth(t *testing.T) {
	ctx := context.Background()
	s, fs, e := newTestSession(t)

	// Another device renamed the event meanwhile.
	title := "Renamed elsewhere"
	_, err := fs.Memory.UpdateEvent(ctx, "u1", e.ID, model.EventPatch{Title: &title})
	require.NoError(t, err)

	fs.failUpdate = errors.New("conflict")
	assert.False(t, s.CommitMove(ctx, moveOf(e, "4:00 PM", "5:00 PM")))
	got, _ := s.Event(e.ID)
	assert.Equal(t, "Renamed elsewhere", got.Title)
	assert.Equal(t, "9:00 AM", got.StartTime)

	fs.failGet = errors.New("still down")
	assert.False(t, s.CommitMove(ctx, moveOf(e, "4:00 PM", "5:00 PM")))
	got, _ = s.Event(e.ID)
	assert.Equal(t, "9:00 AM", got.StartTime)
}

func TestHandleDrop(t *testing.T) {
	ctx := context.Background()
	s, _, e := newTestSession(t)

	assert.True(t, s.HandleDrop(ctx, drag.Outcome{Kind: drag.Click, Event: e}))
	got, _ := s.Event(e.ID)
	assert.Equal(t, "9:00 AM", got.StartTime)

	mv := moveOf(e, "11:00 AM", "12:00 PM")
	mv.Date = today.AddDate(0, 0, 1)
	assert.True(t, s.HandleDrop(ctx, drag.Outcome{Kind: drag.Dropped, Event: e, Move: &mv}))
	got, _ = s.Event(e.ID)
	assert.Equal(t, today.AddDate(0, 0, 1), got.Date)
	assert.Empty(t, s.DayLayout(), "the event left the selected day")
}

func TestDragEffectsSelectDay(t *testing.T) {
	s, _, _ := newTestSession(t)
	var scrolled float64
	fx := DragEffects{Session: s, OnScroll: func(dy float64) { scrolled += dy }}
	fx.Scroll(10)
	fx.Haptic()
	fx.SelectDay(time.Date(2026, time.April, 3, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, 10.0, scrolled)
	assert.Equal(t, today.AddDate(0, 0, 1), s.Selected())
}

func TestCreateFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s, fs, e := newTestSession(t)
	fs.failCreate = errors.New("quota")

	_, ok := s.DuplicateEvent(ctx, e.ID)
	assert.False(t, ok)
	assert.Len(t, s.Events(), 1)

	fs.failCreate = nil
	dup, ok := s.DuplicateEvent(ctx, e.ID)
	require.True(t, ok)
	assert.NotEqual(t, e.ID, dup.ID)
	assert.Equal(t, e.StartTime, dup.StartTime)
	assert.Len(t, s.Events(), 2)

	_, ok = s.DuplicateEvent(ctx, "missing")
	assert.False(t, ok)
}

func TestEventAndIndicatorCRUD(t *testing.T) {
	ctx := context.Background()
	s, _, e := newTestSession(t)

	notes := "bring laptop"
	upd, ok := s.UpdateEvent(ctx, e.ID, model.EventPatch{Notes: &notes})
	require.True(t, ok)
	assert.Equal(t, notes, upd.Notes)

	_, ok = s.UpdateEvent(ctx, "missing", model.EventPatch{Notes: &notes})
	assert.False(t, ok)

	ind, ok := s.CreateIndicator(ctx, model.IndicatorDraft{Category: model.CategoryMeal, MeasurementType: model.MeasureFrequency, Goal: 14})
	require.True(t, ok)
	assert.Len(t, s.Indicators(today), 2)

	zero := 0
	_, ok = s.UpdateIndicator(ctx, ind.ID, model.IndicatorPatch{DisplayOrder: &zero})
	require.True(t, ok)

	assert.True(t, s.DeleteIndicator(ctx, ind.ID))
	assert.False(t, s.DeleteIndicator(ctx, ind.ID))
	assert.Len(t, s.Indicators(today), 1)

	assert.True(t, s.DeleteEvent(ctx, e.ID))
	assert.Empty(t, s.Events())
	assert.Equal(t, 0.0, s.Indicators(today)[0].ActualHours)
}

type failingStore struct{}

var errDown = errors.New("store down")

func (failingStore) ListEvents(context.Context, string, model.DateRange) ([]model.Event, error) {
	return nil, errDown
}
func (failingStore) GetEvent(context.Context, string, string) (model.Event, error) {
	return model.Event{}, errDown
}
func (failingStore) CreateEvent(context.Context, string, model.EventDraft) (model.Event, error) {
	return model.Event{}, errDown
}
func (failingStore) UpdateEvent(context.Context, string, string, model.EventPatch) (model.Event, error) {
	return model.Event{}, errDown
}
func (failingStore) DeleteEvent(context.Context, string, string) error { return errDown }
func (failingStore) ListIndicators(context.Context, string) ([]model.Indicator, error) {
	return nil, errDown
}
func (failingStore) CreateIndicator(context.Context, string, model.IndicatorDraft) (model.Indicator, error) {
	return model.Indicator{}, errDown
}
func (failingStore) UpdateIndicator(context.Context, string, string, model.IndicatorPatch) (model.Indicator, error) {
	return model.Indicator{}, errDown
}
func (failingStore) DeleteIndicator(context.Context, string, string) error { return errDown }
