// Package session is the view model of one signed-in user. It owns the
// local copies of events and indicators, applies only authoritative store
// responses to them, and stages drag reschedules until the store confirms.
//
// Store failures are logged and reported as false; they never propagate
// as errors.
package session

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"keycal/internal/drag"
	"keycal/internal/goals"
	"keycal/internal/layout"
	"keycal/internal/log"
	"keycal/internal/model"
	"keycal/internal/store"
)

type pendingMove struct {
	token uint64
	patch model.EventPatch
	prev  model.Event
}

type Session struct {
	userID     string
	events     store.EventStore
	indicators store.IndicatorStore

	mu        sync.Mutex
	selected  time.Time
	confirmed map[string]model.Event
	inds      []model.Indicator
	pending   map[string]pendingMove
	nextToken uint64
	lastMove  *drag.Move
}

// New binds a session to userID. The selected day starts at today.
func New(userID string, events store.EventStore, indicators store.IndicatorStore, today time.Time) *Session {
	return &Session{
		userID:     userID,
		events:     events,
		indicators: indicators,
		selected:   model.DateOf(today),
		confirmed:  make(map[string]model.Event),
		pending:    make(map[string]pendingMove),
	}
}

func (s *Session) UserID() string { return s.userID }

// Selected is the day the calendar shows.
func (s *Session) Selected() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) SelectDay(day time.Time) {
	s.mu.Lock()
	s.selected = model.DateOf(day)
	s.mu.Unlock()
}

// Load replaces the local collections with the store's contents.
func (s *Session) Load(ctx context.Context, r model.DateRange) bool {
	events, err := s.events.ListEvents(ctx, s.userID, r)
	if err != nil {
		log.Error("load events failed", err, "user", s.userID)
		return false
	}
	inds, err := s.indicators.ListIndicators(ctx, s.userID)
	if err != nil {
		log.Error("load indicators failed", err, "user", s.userID)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = make(map[string]model.Event, len(events))
	for _, e := range events {
		s.confirmed[e.ID] = e
	}
	s.inds = goals.Sorted(inds)
	return true
}

// Events is the current view: confirmed events with staged moves applied,
// ordered by start.
func (s *Session) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Event, 0, len(s.confirmed)+len(s.pending))
	for id, e := range s.confirmed {
		if p, ok := s.pending[id]; ok {
			e = p.patch.Apply(e)
		}
		out = append(out, e)
	}
	for id, p := range s.pending {
		if _, ok := s.confirmed[id]; !ok {
			out = append(out, p.patch.Apply(p.prev))
		}
	}
	slices.SortFunc(out, func(a, b model.Event) int {
		return cmp.Or(a.StartAt().Compare(b.StartAt()), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// Event looks up one event in the current view.
func (s *Session) Event(id string) (model.Event, bool) {
	for _, e := range s.Events() {
		if e.ID == id {
			return e, true
		}
	}
	return model.Event{}, false
}

// Pending reports whether a move of id awaits the store.
func (s *Session) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// DayLayout lays out the selected day.
func (s *Session) DayLayout() []layout.Slot {
	return layout.Day(s.Events(), s.Selected())
}

// Indicators returns indicators with progress for the week around ref.
func (s *Session) Indicators(ref time.Time) []model.IndicatorProgress {
	s.mu.Lock()
	inds := slices.Clone(s.inds)
	s.mu.Unlock()
	return goals.Progress(inds, s.Events(), ref)
}

func (s *Session) CreateEvent(ctx context.Context, d model.EventDraft) (model.Event, bool) {
	e, err := s.events.CreateEvent(ctx, s.userID, d)
	if err != nil {
		log.Error("create event failed", err, "user", s.userID, "title", d.Title)
		return model.Event{}, false
	}
	s.mu.Lock()
	s.confirmed[e.ID] = e
	s.mu.Unlock()
	return e, true
}

func (s *Session) UpdateEvent(ctx context.Context, id string, p model.EventPatch) (model.Event, bool) {
	e, err := s.events.UpdateEvent(ctx, s.userID, id, p)
	if err != nil {
		log.Error("update event failed", err, "user", s.userID, "event_id", id)
		return model.Event{}, false
	}
	s.mu.Lock()
	s.confirmed[e.ID] = e
	s.mu.Unlock()
	return e, true
}

func (s *Session) DeleteEvent(ctx context.Context, id string) bool {
	if err := s.events.DeleteEvent(ctx, s.userID, id); err != nil {
		log.Error("delete event failed", err, "user", s.userID, "event_id", id)
		return false
	}
	s.mu.Lock()
	delete(s.confirmed, id)
	delete(s.pending, id)
	if s.lastMove != nil && s.lastMove.EventID == id {
		s.lastMove = nil
	}
	s.mu.Unlock()
	return true
}

// DuplicateEvent creates a copy of id with the same fields.
func (s *Session) DuplicateEvent(ctx context.Context, id string) (model.Event, bool) {
	e, ok := s.Event(id)
	if !ok {
		log.Warn("duplicate of unknown event", "user", s.userID, "event_id", id)
		return model.Event{}, false
	}
	return s.CreateEvent(ctx, e.Draft())
}

func (s *Session) CreateIndicator(ctx context.Context, d model.IndicatorDraft) (model.Indicator, bool) {
	ind, err := s.indicators.CreateIndicator(ctx, s.userID, d)
	if err != nil {
		log.Error("create indicator failed", err, "user", s.userID, "category", d.Category)
		return model.Indicator{}, false
	}
	s.mu.Lock()
	s.inds = goals.Sorted(append(s.inds, ind))
	s.mu.Unlock()
	return ind, true
}

func (s *Session) UpdateIndicator(ctx context.Context, id string, p model.IndicatorPatch) (model.Indicator, bool) {
	ind, err := s.indicators.UpdateIndicator(ctx, s.userID, id, p)
	if err != nil {
		log.Error("update indicator failed", err, "user", s.userID, "indicator_id", id)
		return model.Indicator{}, false
	}
	s.mu.Lock()
	for i := range s.inds {
		if s.inds[i].ID == id {
			s.inds[i] = ind
		}
	}
	s.inds = goals.Sorted(s.inds)
	s.mu.Unlock()
	return ind, true
}

func (s *Session) DeleteIndicator(ctx context.Context, id string) bool {
	if err := s.indicators.DeleteIndicator(ctx, s.userID, id); err != nil {
		log.Error("delete indicator failed", err, "user", s.userID, "indicator_id", id)
		return false
	}
	s.mu.Lock()
	s.inds = slices.DeleteFunc(s.inds, func(ind model.Indicator) bool { return ind.ID == id })
	s.mu.Unlock()
	return true
}
