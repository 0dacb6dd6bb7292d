package session

import (
	"context"
	"time"

	"keycal/internal/drag"
	"keycal/internal/log"
	"keycal/internal/model"
	"keycal/internal/observability"
)

// stage records a speculative patch for id and returns its token.
func (s *Session) stage(id string, patch model.EventPatch, prev model.Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextToken++
	s.pending[id] = pendingMove{token: s.nextToken, patch: patch, prev: prev}
	return s.nextToken
}

// settle folds the store's answer into the confirmed state. A newer staged
// move of the same event stays pending.
func (s *Session) settle(id string, token uint64, confirmed *model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[id]; ok && p.token == token {
		delete(s.pending, id)
	}
	if confirmed != nil {
		s.confirmed[id] = *confirmed
	}
}

// reschedule stages patch, sends it, and settles on the response. On
// failure the event is refetched; if that fails too the pre-move snapshot
// stays in place.
func (s *Session) reschedule(ctx context.Context, id string, patch model.EventPatch, prev model.Event) bool {
	token := s.stage(id, patch, prev)

	e, err := s.events.UpdateEvent(ctx, s.userID, id, patch)
	if err == nil {
		s.settle(id, token, &e)
		return true
	}
	log.Error("reschedule failed, reverting", err, "user", s.userID, "event_id", id)

	if fresh, gerr := s.events.GetEvent(ctx, s.userID, id); gerr == nil {
		s.settle(id, token, &fresh)
	} else {
		s.settle(id, token, nil)
	}
	return false
}

// CommitMove applies a drag drop. The view reflects the move at once;
// it becomes confirmed when the store accepts it and is reverted
// otherwise. A confirmed move becomes the undo target.
func (s *Session) CommitMove(ctx context.Context, mv drag.Move) bool {
	ok := s.reschedule(ctx, mv.EventID, mv.Patch(), mv.Previous)
	if !ok {
		observability.RecordDragCommit("reverted")
		return false
	}
	observability.RecordDragCommit("confirmed")
	s.mu.Lock()
	s.lastMove = &mv
	s.mu.Unlock()
	return true
}

// CanUndo reports whether a confirmed move can be undone.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMove != nil
}

// Undo restores the date and times of the last confirmed move.
func (s *Session) Undo(ctx context.Context) bool {
	s.mu.Lock()
	mv := s.lastMove
	s.mu.Unlock()
	if mv == nil {
		return false
	}

	cur, ok := s.Event(mv.EventID)
	if !ok {
		cur = mv.Previous
	}
	if !s.reschedule(ctx, mv.EventID, mv.Undo(), cur) {
		return false
	}
	observability.RecordDragCommit("undone")
	s.mu.Lock()
	if s.lastMove == mv {
		s.lastMove = nil
	}
	s.mu.Unlock()
	return true
}

// HandleDrop acts on a recognizer outcome. Drops are committed; clicks and
// cancels leave state untouched.
func (s *Session) HandleDrop(ctx context.Context, out drag.Outcome) bool {
	if out.Kind != drag.Dropped || out.Move == nil {
		return true
	}
	return s.CommitMove(ctx, *out.Move)
}

// DragEffects adapts a session to drag.Effects. Day switches change the
// selected day; scroll and haptic feedback go to the optional callbacks.
type DragEffects struct {
	Session  *Session
	OnScroll func(dy float64)
	OnHaptic func()
}

func (d DragEffects) Scroll(dy float64) {
	if d.OnScroll != nil {
		d.OnScroll(dy)
	}
}

func (d DragEffects) SelectDay(day time.Time) {
	d.Session.SelectDay(day)
}

func (d DragEffects) Haptic() {
	if d.OnHaptic != nil {
		d.OnHaptic()
	}
}
