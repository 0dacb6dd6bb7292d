package web

import (
	"net/http"

	"keycal/internal/auth"
	"keycal/internal/calendar"
	"keycal/internal/goals"
	"keycal/internal/model"
)

// GET /api/indicators?date=YYYY-MM-DD returns indicators in display order
// with their progress over the Monday–Sunday week containing date.
func (s *Server) listIndicators(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	ref, err := s.dayParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	indicators, err := s.store.ListIndicators(ctx, userID)
	if err != nil {
		storeError(w, "list indicators", err)
		return
	}
	start := calendar.WeekStart(ref)
	events, err := s.store.ListEvents(ctx, userID, model.DateRange{Start: start, End: start.AddDate(0, 0, 7)})
	if err != nil {
		storeError(w, "list events", err)
		return
	}

	progress := goals.Progress(indicators, events, ref)
	out := make([]IndicatorJSON, 0, len(progress))
	for _, p := range progress {
		out = append(out, NewIndicatorJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createIndicator(w http.ResponseWriter, r *http.Request) {
	var req IndicatorRequest
	if !decode(w, r, &req) {
		return
	}
	draft, err := req.Draft()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	ind, err := s.store.CreateIndicator(r.Context(), auth.UserID(r.Context()), draft)
	if err != nil {
		storeError(w, "create indicator", err)
		return
	}
	writeJSON(w, http.StatusCreated, NewIndicatorJSON(model.IndicatorProgress{Indicator: ind}))
}

func (s *Server) updateIndicator(w http.ResponseWriter, r *http.Request) {
	var req IndicatorPatchRequest
	if !decode(w, r, &req) {
		return
	}
	patch, err := req.Patch()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	ind, err := s.store.UpdateIndicator(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		storeError(w, "update indicator", err)
		return
	}
	writeJSON(w, http.StatusOK, NewIndicatorJSON(model.IndicatorProgress{Indicator: ind}))
}

func (s *Server) deleteIndicator(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteIndicator(r.Context(), auth.UserID(r.Context()), r.PathValue("id")); err != nil {
		storeError(w, "delete indicator", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
