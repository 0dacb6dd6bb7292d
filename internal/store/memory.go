package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"keycal/internal/model"
)

var _ Store = (*Memory)(nil)

// Memory is a goroutine-safe Store held entirely in process memory.
type Memory struct {
	mu         sync.RWMutex
	events     map[string]map[string]model.Event
	indicators map[string]map[string]model.Indicator

	now   func() time.Time
	newID func() string
}

type MemoryOption func(*Memory)

// WithNow overrides the timestamp source.
func WithNow(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithIDs overrides id generation.
func WithIDs(newID func() string) MemoryOption {
	return func(m *Memory) { m.newID = newID }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		events:     make(map[string]map[string]model.Event),
		indicators: make(map[string]map[string]model.Indicator),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Memory) ListEvents(_ context.Context, userID string, r model.DateRange) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Event, 0, len(m.events[userID]))
	for _, e := range m.events[userID] {
		if r.Contains(e.StartAt()) {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

func (m *Memory) GetEvent(_ context.Context, userID, id string) (model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[userID][id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) CreateEvent(_ context.Context, userID string, d model.EventDraft) (model.Event, error) {
	e := CanonicalTimes(d.Event(userID))
	if err := ValidateEvent(e); err != nil {
		return model.Event{}, err
	}
	now := m.now()
	e.ID = m.newID()
	e.CreatedAt, e.UpdatedAt = now, now

	m.mu.Lock()
	defer m.mu.Unlock()
	m.userEvents(userID)[e.ID] = e
	return e, nil
}

func (m *Memory) UpdateEvent(_ context.Context, userID, id string, p model.EventPatch) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.events[userID][id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	next := CanonicalTimes(p.Apply(cur))
	if err := ValidateEvent(next); err != nil {
		return model.Event{}, err
	}
	next.UpdatedAt = m.now()
	m.events[userID][id] = next
	return next, nil
}

func (m *Memory) DeleteEvent(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[userID][id]; !ok {
		return ErrNotFound
	}
	delete(m.events[userID], id)
	return nil
}

func (m *Memory) ReplaceSource(_ context.Context, userID, source string, drafts []model.EventDraft) (int, error) {
	fresh := make([]model.Event, 0, len(drafts))
	now := m.now()
	for _, d := range drafts {
		d.Source = source
		e := CanonicalTimes(d.Event(userID))
		if err := ValidateEvent(e); err != nil {
			return 0, err
		}
		e.ID = m.newID()
		e.CreatedAt, e.UpdatedAt = now, now
		fresh = append(fresh, e)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.userEvents(userID)
	for id, e := range events {
		if e.Source == source {
			delete(events, id)
		}
	}
	for _, e := range fresh {
		events[e.ID] = e
	}
	return len(fresh), nil
}

func (m *Memory) ListIndicators(_ context.Context, userID string) ([]model.Indicator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Indicator, 0, len(m.indicators[userID]))
	for _, ind := range m.indicators[userID] {
		out = append(out, ind)
	}
	slices.SortFunc(out, func(a, b model.Indicator) int {
		return cmp.Or(cmp.Compare(a.DisplayOrder, b.DisplayOrder), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (m *Memory) CreateIndicator(_ context.Context, userID string, d model.IndicatorDraft) (model.Indicator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ind := d.Indicator(userID, len(m.indicators[userID]))
	if err := ValidateIndicator(ind); err != nil {
		return model.Indicator{}, err
	}
	now := m.now()
	ind.ID = m.newID()
	ind.CreatedAt, ind.UpdatedAt = now, now
	if m.indicators[userID] == nil {
		m.indicators[userID] = make(map[string]model.Indicator)
	}
	m.indicators[userID][ind.ID] = ind
	return ind, nil
}

func (m *Memory) UpdateIndicator(_ context.Context, userID, id string, p model.IndicatorPatch) (model.Indicator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.indicators[userID][id]
	if !ok {
		return model.Indicator{}, ErrNotFound
	}
	next := p.Apply(cur)
	if err := ValidateIndicator(next); err != nil {
		return model.Indicator{}, err
	}
	next.UpdatedAt = m.now()
	m.indicators[userID][id] = next
	return next, nil
}

func (m *Memory) DeleteIndicator(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indicators[userID][id]; !ok {
		return ErrNotFound
	}
	delete(m.indicators[userID], id)
	return nil
}

func (m *Memory) UserIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for u, evs := range m.events {
		if len(evs) > 0 {
			seen[u] = struct{}{}
		}
	}
	for u, inds := range m.indicators {
		if len(inds) > 0 {
			seen[u] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	slices.Sort(out)
	return out, nil
}

func (m *Memory) userEvents(userID string) map[string]model.Event {
	evs := m.events[userID]
	if evs == nil {
		evs = make(map[string]model.Event)
		m.events[userID] = evs
	}
	return evs
}

// sortEvents orders by start instant, then id for a stable listing.
func sortEvents(events []model.Event) {
	slices.SortFunc(events, func(a, b model.Event) int {
		return cmp.Or(a.StartAt().Compare(b.StartAt()), cmp.Compare(a.ID, b.ID))
	})
}
