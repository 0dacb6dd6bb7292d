package web

import (
	"fmt"
	"time"

	"keycal/internal/model"
	"keycal/internal/timefmt"
)

// EventJSON is the wire form of an event.
type EventJSON struct {
	ID                string    `json:"id"`
	Category          string    `json:"category"`
	Color             string    `json:"color"`
	Date              string    `json:"date"`
	StartTime         string    `json:"start_time"`
	EndTime           string    `json:"end_time"`
	StartAt           string    `json:"start_at"`
	EndAt             string    `json:"end_at"`
	DurationHours     float64   `json:"duration_hours"`
	Title             string    `json:"title"`
	Notes             string    `json:"notes"`
	Location          string    `json:"location"`
	RepeatPattern     string    `json:"repeat_pattern"`
	IsBackup          bool      `json:"is_backup"`
	RecurrenceEndDate *string   `json:"recurrence_end_date"`
	Source            string    `json:"source,omitempty"`
	ExternalID        string    `json:"external_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func NewEventJSON(e model.Event) EventJSON {
	out := EventJSON{
		ID:            e.ID,
		Category:      string(e.Category),
		Color:         e.Color(),
		Date:          e.Date.Format(time.DateOnly),
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		StartAt:       e.StartAt().Format(time.RFC3339),
		EndAt:         e.EndAt().Format(time.RFC3339),
		DurationHours: e.DurationHours(),
		Title:         e.Title,
		Notes:         e.Notes,
		Location:      e.Location,
		RepeatPattern: string(e.Repeat),
		IsBackup:      e.IsBackup,
		Source:        e.Source,
		ExternalID:    e.ExternalID,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.RecurrenceEnd != nil {
		s := e.RecurrenceEnd.Format(time.DateOnly)
		out.RecurrenceEndDate = &s
	}
	return out
}

// Event decodes the wire form, placing the calendar day in loc.
func (j EventJSON) Event(loc *time.Location) (model.Event, error) {
	date, err := timefmt.DayDate(j.Date, loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s: date: %w", j.ID, err)
	}
	e := model.Event{
		ID:         j.ID,
		Category:   model.Category(j.Category),
		Title:      j.Title,
		Notes:      j.Notes,
		Location:   j.Location,
		Date:       date,
		StartTime:  j.StartTime,
		EndTime:    j.EndTime,
		Repeat:     model.ParseRepeatPattern(j.RepeatPattern),
		IsBackup:   j.IsBackup,
		Source:     j.Source,
		ExternalID: j.ExternalID,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
	if j.RecurrenceEndDate != nil && *j.RecurrenceEndDate != "" {
		end, err := timefmt.DayDate(*j.RecurrenceEndDate, loc)
		if err != nil {
			return model.Event{}, fmt.Errorf("event %s: recurrence_end_date: %w", j.ID, err)
		}
		e.RecurrenceEnd = &end
	}
	return e, nil
}

// EventRequest is the create payload.
type EventRequest struct {
	Category          string  `json:"category" validate:"required"`
	Title             string  `json:"title" validate:"max=200"`
	Notes             string  `json:"notes" validate:"max=4000"`
	Location          string  `json:"location" validate:"max=200"`
	Date              string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime         string  `json:"start_time" validate:"required"`
	EndTime           string  `json:"end_time" validate:"required"`
	RepeatPattern     string  `json:"repeat_pattern" validate:"omitempty,oneof=none daily weekly monthly yearly"`
	IsBackup          bool    `json:"is_backup"`
	RecurrenceEndDate *string `json:"recurrence_end_date" validate:"omitempty,datetime=2006-01-02"`
}

func NewEventRequest(d model.EventDraft) EventRequest {
	out := EventRequest{
		Category:      string(d.Category),
		Title:         d.Title,
		Notes:         d.Notes,
		Location:      d.Location,
		Date:          d.Date.Format(time.DateOnly),
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
		RepeatPattern: string(d.Repeat),
		IsBackup:      d.IsBackup,
	}
	if d.RecurrenceEnd != nil {
		s := d.RecurrenceEnd.Format(time.DateOnly)
		out.RecurrenceEndDate = &s
	}
	return out
}

// Draft converts a validated request.
func (r EventRequest) Draft(loc *time.Location) (model.EventDraft, error) {
	cat, ok := model.ParseCategory(r.Category)
	if !ok {
		return model.EventDraft{}, fmt.Errorf("unknown category %q", r.Category)
	}
	date, err := timefmt.DayDate(r.Date, loc)
	if err != nil {
		return model.EventDraft{}, err
	}
	d := model.EventDraft{
		Category:  cat,
		Title:     r.Title,
		Notes:     r.Notes,
		Location:  r.Location,
		Date:      date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Repeat:    model.ParseRepeatPattern(r.RepeatPattern),
		IsBackup:  r.IsBackup,
	}
	if r.RecurrenceEndDate != nil {
		end, err := timefmt.DayDate(*r.RecurrenceEndDate, loc)
		if err != nil {
			return model.EventDraft{}, err
		}
		d.RecurrenceEnd = &end
	}
	return d, nil
}

// EventPatchRequest is the update payload. Absent fields are unchanged;
// an empty recurrence_end_date clears it.
type EventPatchRequest struct {
	Category          *string `json:"category,omitempty"`
	Title             *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Notes             *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
	Location          *string `json:"location,omitempty" validate:"omitempty,max=200"`
	Date              *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StartTime         *string `json:"start_time,omitempty"`
	EndTime           *string `json:"end_time,omitempty"`
	RepeatPattern     *string `json:"repeat_pattern,omitempty" validate:"omitempty,oneof=none daily weekly monthly yearly"`
	IsBackup          *bool   `json:"is_backup,omitempty"`
	RecurrenceEndDate *string `json:"recurrence_end_date,omitempty"`
}

func NewEventPatchRequest(p model.EventPatch) EventPatchRequest {
	out := EventPatchRequest{
		Title:     p.Title,
		Notes:     p.Notes,
		Location:  p.Location,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		IsBackup:  p.IsBackup,
	}
	if p.Category != nil {
		s := string(*p.Category)
		out.Category = &s
	}
	if p.Date != nil {
		s := p.Date.Format(time.DateOnly)
		out.Date = &s
	}
	if p.Repeat != nil {
		s := string(*p.Repeat)
		out.RepeatPattern = &s
	}
	if p.RecurrenceEnd != nil {
		s := ""
		if *p.RecurrenceEnd != nil {
			s = (*p.RecurrenceEnd).Format(time.DateOnly)
		}
		out.RecurrenceEndDate = &s
	}
	return out
}

func (r EventPatchRequest) Patch(loc *time.Location) (model.EventPatch, error) {
	p := model.EventPatch{
		Title:     r.Title,
		Notes:     r.Notes,
		Location:  r.Location,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		IsBackup:  r.IsBackup,
	}
	if r.Category != nil {
		cat, ok := model.ParseCategory(*r.Category)
		if !ok {
			return p, fmt.Errorf("unknown category %q", *r.Category)
		}
		p.Category = &cat
	}
	if r.Date != nil {
		d, err := timefmt.DayDate(*r.Date, loc)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	if r.RepeatPattern != nil {
		rp := model.ParseRepeatPattern(*r.RepeatPattern)
		p.Repeat = &rp
	}
	if r.RecurrenceEndDate != nil {
		var end *time.Time
		if *r.RecurrenceEndDate != "" {
			d, err := timefmt.DayDate(*r.RecurrenceEndDate, loc)
			if err != nil {
				return p, err
			}
			end = &d
		}
		p.RecurrenceEnd = &end
	}
	return p, nil
}

// MoveRequest applies a vertical drag of DeltaY pixels, optionally onto
// another day.
type MoveRequest struct {
	Date   string  `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DeltaY float64 `json:"delta_y_px"`
}

type MoveResponse struct {
	Event    EventJSON `json:"event"`
	Previous EventJSON `json:"previous"`
}

// IndicatorJSON is the wire form of an indicator with its weekly progress.
type IndicatorJSON struct {
	ID              string    `json:"id"`
	EventCategory   string    `json:"event_category"`
	MeasurementType string    `json:"measurement_type"`
	GoalHours       *float64  `json:"goal_hours"`
	GoalFrequency   *int      `json:"goal_frequency"`
	ActualHours     float64   `json:"actual_hours"`
	ActualFrequency int       `json:"actual_frequency"`
	Percent         float64   `json:"percent"`
	DisplayOrder    int       `json:"display_order"`
	Color           string    `json:"color"`
	WeekStart       string    `json:"week_start,omitempty"`
	WeekEnd         string    `json:"week_end,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewIndicatorJSON(p model.IndicatorProgress) IndicatorJSON {
	out := IndicatorJSON{
		ID:              p.ID,
		EventCategory:   string(p.Category),
		MeasurementType: string(p.MeasurementType),
		GoalHours:       p.GoalHours,
		GoalFrequency:   p.GoalFrequency,
		ActualHours:     p.ActualHours,
		ActualFrequency: p.ActualFrequency,
		Percent:         p.Percent(),
		DisplayOrder:    p.DisplayOrder,
		Color:           p.Category.Color(),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if !p.WeekStart.IsZero() {
		out.WeekStart = p.WeekStart.Format(time.DateOnly)
		out.WeekEnd = p.WeekEnd.Format(time.DateOnly)
	}
	return out
}

func (j IndicatorJSON) Indicator() model.Indicator {
	return model.Indicator{
		ID:              j.ID,
		Category:        model.Category(j.EventCategory),
		MeasurementType: model.MeasurementType(j.MeasurementType),
		GoalHours:       j.GoalHours,
		GoalFrequency:   j.GoalFrequency,
		DisplayOrder:    j.DisplayOrder,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

// IndicatorRequest is the create payload. The goal matching the
// measurement type is used; a missing goal defaults to 1.
type IndicatorRequest struct {
	EventCategory   string   `json:"event_category" validate:"required"`
	MeasurementType string   `json:"measurement_type" validate:"required,oneof=time frequency"`
	GoalHours       *float64 `json:"goal_hours,omitempty" validate:"omitempty,gt=0,lte=168"`
	GoalFrequency   *int     `json:"goal_frequency,omitempty" validate:"omitempty,gt=0"`
}

func NewIndicatorRequest(d model.IndicatorDraft) IndicatorRequest {
	out := IndicatorRequest{EventCategory: string(d.Category), MeasurementType: string(d.MeasurementType)}
	if d.Goal > 0 {
		if d.MeasurementType == model.MeasureFrequency {
			n := int(d.Goal + 0.5)
			out.GoalFrequency = &n
		} else {
			g := d.Goal
			out.GoalHours = &g
		}
	}
	return out
}

func (r IndicatorRequest) Draft() (model.IndicatorDraft, error) {
	cat, ok := model.ParseCategory(r.EventCategory)
	if !ok {
		return model.IndicatorDraft{}, fmt.Errorf("unknown category %q", r.EventCategory)
	}
	mt, ok := model.ParseMeasurementType(r.MeasurementType)
	if !ok {
		return model.IndicatorDraft{}, fmt.Errorf("unknown measurement type %q", r.MeasurementType)
	}
	d := model.IndicatorDraft{Category: cat, MeasurementType: mt}
	switch {
	case mt == model.MeasureFrequency && r.GoalFrequency != nil:
		d.Goal = float64(*r.GoalFrequency)
	case mt == model.MeasureTime && r.GoalHours != nil:
		d.Goal = *r.GoalHours
	}
	return d, nil
}

type IndicatorPatchRequest struct {
	EventCategory   *string  `json:"event_category,omitempty"`
	MeasurementType *string  `json:"measurement_type,omitempty" validate:"omitempty,oneof=time frequency"`
	Goal            *float64 `json:"goal,omitempty" validate:"omitempty,gt=0"`
	DisplayOrder    *int     `json:"display_order,omitempty" validate:"omitempty,gte=0"`
}

func NewIndicatorPatchRequest(p model.IndicatorPatch) IndicatorPatchRequest {
	out := IndicatorPatchRequest{Goal: p.Goal, DisplayOrder: p.DisplayOrder}
	if p.Category != nil {
		s := string(*p.Category)
		out.EventCategory = &s
	}
	if p.MeasurementType != nil {
		s := string(*p.MeasurementType)
		out.MeasurementType = &s
	}
	return out
}

func (r IndicatorPatchRequest) Patch() (model.IndicatorPatch, error) {
	p := model.IndicatorPatch{Goal: r.Goal, DisplayOrder: r.DisplayOrder}
	if r.EventCategory != nil {
		cat, ok := model.ParseCategory(*r.EventCategory)
		if !ok {
			return p, fmt.Errorf("unknown category %q", *r.EventCategory)
		}
		p.Category = &cat
	}
	if r.MeasurementType != nil {
		mt, ok := model.ParseMeasurementType(*r.MeasurementType)
		if !ok {
			return p, fmt.Errorf("unknown measurement type %q", *r.MeasurementType)
		}
		p.MeasurementType = &mt
	}
	return p, nil
}

// WeekDayJSON is one cell of the seven-day strip.
type WeekDayJSON struct {
	DayName    string `json:"day_name"`
	DayOfMonth int    `json:"day_of_month"`
	Date       string `json:"date"`
	IsSelected bool   `json:"is_selected"`
}

type WeekResponse struct {
	Header string        `json:"header"`
	Days   []WeekDayJSON `json:"days"`
}

type MonthResponse struct {
	Month       int   `json:"month"`
	Year        int   `json:"year"`
	DaysInMonth int   `json:"days_in_month"`
	LeapYear    bool  `json:"leap_year"`
	Cells       []int `json:"cells"`
}

type HoursResponse struct {
	Labels     []string `json:"labels"`
	HourHeight float64  `json:"hour_height"`
}

// SlotJSON is an event positioned in the day column.
type SlotJSON struct {
	Event        EventJSON `json:"event"`
	Column       int       `json:"column"`
	TotalColumns int       `json:"total_columns"`
	WidthPercent float64   `json:"width_percent"`
	LeftPercent  float64   `json:"left_percent"`
	TopPx        float64   `json:"top_px"`
	HeightPx     float64   `json:"height_px"`
}

type DayResponse struct {
	Date   string     `json:"date"`
	Header string     `json:"header"`
	Slots  []SlotJSON `json:"slots"`
}

type ImportResponse struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}
