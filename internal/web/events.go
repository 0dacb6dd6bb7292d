package web

import (
	"io"
	"net/http"
	"time"

	"keycal/internal/auth"
	"keycal/internal/drag"
	"keycal/internal/ics"
	appLog "keycal/internal/log"
	"keycal/internal/model"
	"keycal/internal/observability"
)

// GET /api/events?startDate=YYYY-MM-DD&endDate=YYYY-MM-DD
//
// Both bounds are optional and inclusive by calendar day; events are
// filtered on their start and returned ascending by start.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	rng, ok := s.rangeParams(w, r)
	if !ok {
		return
	}
	events, err := s.store.ListEvents(r.Context(), auth.UserID(r.Context()), rng)
	if err != nil {
		storeError(w, "list events", err)
		return
	}
	out := make([]EventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, NewEventJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) rangeParams(w http.ResponseWriter, r *http.Request) (model.DateRange, bool) {
	var rng model.DateRange
	q := r.URL.Query()
	if v := q.Get("startDate"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "startDate must be YYYY-MM-DD")
			return rng, false
		}
		rng.Start = t
	}
	if v := q.Get("endDate"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "endDate must be YYYY-MM-DD")
			return rng, false
		}
		rng.End = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !rng.Start.IsZero() && !rng.End.IsZero() && rng.End.Before(rng.Start) {
		writeError(w, http.StatusBadRequest, "invalid_request", "endDate is before startDate")
		return rng, false
	}
	return rng, true
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decode(w, r, &req) {
		return
	}
	draft, err := req.Draft(s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	e, err := s.store.CreateEvent(r.Context(), auth.UserID(r.Context()), draft)
	if err != nil {
		storeError(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, NewEventJSON(e))
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventPatchRequest
	if !decode(w, r, &req) {
		return
	}
	patch, err := req.Patch(s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	e, err := s.store.UpdateEvent(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		storeError(w, "update event", err)
		return
	}
	writeJSON(w, http.StatusOK, NewEventJSON(e))
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteEvent(r.Context(), auth.UserID(r.Context()), r.PathValue("id")); err != nil {
		storeError(w, "delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// moveEvent applies the drop math of a drag gesture server-side: the
// start snaps and clamps, the end keeps the duration, and the optional
// date switches the day. The previous snapshot is returned for undo.
func (s *Server) moveEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	prev, err := s.store.GetEvent(ctx, userID, r.PathValue("id"))
	if err != nil {
		storeError(w, "get event", err)
		return
	}

	date := prev.Date
	if req.Date != "" {
		d, err := time.ParseInLocation(time.DateOnly, req.Date, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	drop := drag.ComputeDrop(prev, req.DeltaY, s.drag)
	mv := drag.Move{EventID: prev.ID, Date: date, StartTime: drop.StartTime, EndTime: drop.EndTime, Previous: prev}

	updated, err := s.store.UpdateEvent(ctx, userID, mv.EventID, mv.Patch())
	if err != nil {
		observability.RecordDragCommit("failed")
		storeError(w, "move event", err)
		return
	}
	observability.RecordDragCommit("confirmed")
	writeJSON(w, http.StatusOK, MoveResponse{Event: NewEventJSON(updated), Previous: NewEventJSON(prev)})
}

func (s *Server) duplicateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	src, err := s.store.GetEvent(ctx, userID, r.PathValue("id"))
	if err != nil {
		storeError(w, "get event", err)
		return
	}
	dup, err := s.store.CreateEvent(ctx, userID, src.Draft())
	if err != nil {
		storeError(w, "duplicate event", err)
		return
	}
	writeJSON(w, http.StatusCreated, NewEventJSON(dup))
}

// GET /api/calendar.ics streams the user's events as an iCalendar feed.
func (s *Server) calendarFeed(w http.ResponseWriter, r *http.Request) {
	rng, ok := s.rangeParams(w, r)
	if !ok {
		return
	}
	userID := auth.UserID(r.Context())
	events, err := s.store.ListEvents(r.Context(), userID, rng)
	if err != nil {
		storeError(w, "list events", err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="keycal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ics.Export("keycal", events, s.now()))
}

// POST /api/import?category=Work with an ICS body creates one event per
// timed VEVENT. category is the fallback for unrecognised CATEGORIES.
func (s *Server) importICS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	fallback := model.CategoryOther
	if v := r.URL.Query().Get("category"); v != "" {
		c, ok := model.ParseCategory(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "validation_failed", "unknown category "+v)
			return
		}
		fallback = c
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return
	}
	drafts, err := ics.Parse(ics.Source{Category: fallback}, body, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse calendar: "+err.Error())
		return
	}

	var resp ImportResponse
	for _, d := range drafts {
		if _, err := s.store.CreateEvent(ctx, userID, d); err != nil {
			appLog.Warn("import: event rejected", "user", userID, "uid", d.ExternalID, "error", err)
			resp.Failed++
			continue
		}
		resp.Imported++
	}
	appLog.Info("import completed", "user", userID, "imported", resp.Imported, "failed", resp.Failed)
	writeJSON(w, http.StatusOK, resp)
}
