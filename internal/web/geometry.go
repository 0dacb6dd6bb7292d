package web

import (
	"net/http"
	"time"

	"keycal/internal/auth"
	"keycal/internal/calendar"
	"keycal/internal/layout"
	"keycal/internal/model"
	"keycal/internal/timefmt"
)

// GET /api/calendar/week?date=YYYY-MM-DD&start=monday
func (s *Server) calendarWeek(w http.ResponseWriter, r *http.Request) {
	selected, err := s.dayParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	start := s.cfg.StripStart()
	if v := r.URL.Query().Get("start"); v != "" {
		d, ok := calendar.ParseWeekday(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown weekday "+v)
			return
		}
		start = d
	}

	days := calendar.WeekDays(selected, start)
	resp := WeekResponse{Header: timefmt.FormatHeaderDate(selected), Days: make([]WeekDayJSON, 0, len(days))}
	for _, d := range days {
		resp.Days = append(resp.Days, WeekDayJSON{
			DayName:    d.DayName,
			DayOfMonth: d.DayOfMonth,
			Date:       d.FullDate.Format(time.DateOnly),
			IsSelected: d.IsSelected,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/calendar/month?month=0-11&year=2026
//
// month is 0-based; both default to the current month.
func (s *Server) calendarMonth(w http.ResponseWriter, r *http.Request) {
	today := s.today()
	q := r.URL.Query()
	month0 := parseIntDefault(q.Get("month"), int(today.Month())-1)
	year := parseIntDefault(q.Get("year"), today.Year())
	if month0 < 0 || month0 > 11 {
		writeError(w, http.StatusBadRequest, "invalid_request", "month must be 0-11")
		return
	}

	writeJSON(w, http.StatusOK, MonthResponse{
		Month:       month0,
		Year:        year,
		DaysInMonth: calendar.DaysInMonth(time.Month(month0+1), year),
		LeapYear:    calendar.IsLeapYear(year),
		Cells:       calendar.CalendarDays(month0, year),
	})
}

func (s *Server) calendarHours(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HoursResponse{Labels: calendar.HourLabels(), HourHeight: s.drag.HourHeight})
}

// GET /api/calendar/day?date=YYYY-MM-DD lays out the day's events in
// columns.
func (s *Server) calendarDay(w http.ResponseWriter, r *http.Request) {
	day, err := s.dayParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	events, err := s.store.ListEvents(r.Context(), auth.UserID(r.Context()), model.DateRange{
		Start: day,
		End:   day.AddDate(0, 0, 1).Add(-time.Nanosecond),
	})
	if err != nil {
		storeError(w, "list events", err)
		return
	}

	slots := layout.Day(events, day)
	resp := DayResponse{
		Date:   day.Format(time.DateOnly),
		Header: timefmt.FormatHeaderDate(day),
		Slots:  make([]SlotJSON, 0, len(slots)),
	}
	for _, sl := range slots {
		resp.Slots = append(resp.Slots, NewSlotJSON(sl, s.drag.HourHeight))
	}
	writeJSON(w, http.StatusOK, resp)
}

func NewSlotJSON(sl layout.Slot, hourHeight float64) SlotJSON {
	return SlotJSON{
		Event:        NewEventJSON(sl.Event),
		Column:       sl.Column,
		TotalColumns: sl.TotalColumns,
		WidthPercent: sl.WidthPercent(),
		LeftPercent:  sl.LeftPercent(),
		TopPx:        sl.TopPx(hourHeight),
		HeightPx:     sl.HeightPx(hourHeight),
	}
}
