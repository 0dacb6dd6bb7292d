package model

import (
	"strings"
	"time"

	"keycal/internal/timefmt"
)

// Category is the closed set of event categories. Each value carries a
// display color; unknown strings never become a Category.
type Category string

const (
	CategoryChurch Category = "Church"
	CategoryFamily Category = "Family"
	CategorySchool Category = "School"
	CategoryWork   Category = "Work"
	CategoryTravel Category = "Travel"
	CategoryMeal   Category = "Meal"
	CategoryOther  Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryChurch,
	CategoryFamily,
	CategorySchool,
	CategoryWork,
	CategoryTravel,
	CategoryMeal,
	CategoryOther,
}

var categoryColors = map[Category]string{
	CategoryChurch: "#ef4444",
	CategoryFamily: "#f97316",
	CategorySchool: "#22c55e",
	CategoryWork:   "#3b82f6",
	CategoryTravel: "#a855f7",
	CategoryMeal:   "#854d0e",
	CategoryOther:  "#6b7280",
}

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	_, ok := categoryColors[c]
	return ok
}

// Color returns the hex display color, gray for an invalid category.
func (c Category) Color() string {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return categoryColors[CategoryOther]
}

// RepeatPattern is descriptive only; occurrences are never materialized.
type RepeatPattern string

const (
	RepeatNone    RepeatPattern = "none"
	RepeatDaily   RepeatPattern = "daily"
	RepeatWeekly  RepeatPattern = "weekly"
	RepeatMonthly RepeatPattern = "monthly"
	RepeatYearly  RepeatPattern = "yearly"
)

// ParseRepeatPattern accepts the canonical values plus the UI label
// "Does not repeat". Anything unrecognised is RepeatNone.
func ParseRepeatPattern(s string) RepeatPattern {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return RepeatDaily
	case "weekly":
		return RepeatWeekly
	case "monthly":
		return RepeatMonthly
	case "yearly":
		return RepeatYearly
	default:
		return RepeatNone
	}
}

// Event is a scheduled activity instance.
//
// Date carries only the calendar day (midnight in the display location).
// StartTime/EndTime are 12-hour strings; an EndTime earlier than StartTime
// denotes an overnight span. Duration is always derived, see DurationHours.
type Event struct {
	ID       string
	UserID   string
	Category Category
	Title    string
	Notes    string
	Location string

	Date      time.Time
	StartTime string
	EndTime   string

	Repeat        RepeatPattern
	RecurrenceEnd *time.Time
	IsBackup      bool

	// Source names the subscription an imported event came from and
	// ExternalID its UID there. Both are empty for events created here.
	Source     string
	ExternalID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DurationHours derives the non-negative duration from StartTime/EndTime,
// wrapping across midnight.
func (e Event) DurationHours() float64 {
	return timefmt.EventDurationHours(e.StartTime, e.EndTime)
}

// StartHour is the hour-of-day of StartTime.
func (e Event) StartHour() int {
	return timefmt.ParseToHour(e.StartTime)
}

// StartMinutes is StartTime as minutes from midnight.
func (e Event) StartMinutes() int {
	return timefmt.ParseToMinutes(e.StartTime)
}

// DurationMinutes is DurationHours expressed in whole minutes.
func (e Event) DurationMinutes() int {
	start := timefmt.ParseToMinutes(e.StartTime)
	end := timefmt.ParseToMinutes(e.EndTime)
	if end < start {
		end += timefmt.MinutesPerDay
	}
	return end - start
}

// StartAt combines Date and StartTime into an absolute instant.
func (e Event) StartAt() time.Time {
	return timefmt.ToTimestamp(e.Date, e.StartTime)
}

// EndAt is StartAt plus the derived duration, so overnight events end on
// the following day.
func (e Event) EndAt() time.Time {
	return e.StartAt().Add(time.Duration(e.DurationMinutes()) * time.Minute)
}

// Color is the display color of the event's category.
func (e Event) Color() string {
	return e.Category.Color()
}

// EventDraft is the payload for creating an event.
type EventDraft struct {
	Category      Category
	Title         string
	Notes         string
	Location      string
	Date          time.Time
	StartTime     string
	EndTime       string
	Repeat        RepeatPattern
	RecurrenceEnd *time.Time
	IsBackup      bool
	Source        string
	ExternalID    string
}

// Event builds an unsaved Event from the draft. An empty title falls back
// to the category name.
func (d EventDraft) Event(userID string) Event {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = string(d.Category)
	}
	repeat := d.Repeat
	if repeat == "" {
		repeat = RepeatNone
	}
	recEnd := d.RecurrenceEnd
	if repeat == RepeatNone {
		recEnd = nil
	}
	return Event{
		UserID:        userID,
		Category:      d.Category,
		Title:         title,
		Notes:         strings.TrimSpace(d.Notes),
		Location:      strings.TrimSpace(d.Location),
		Date:          DateOf(d.Date),
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
		Repeat:        repeat,
		RecurrenceEnd: recEnd,
		IsBackup:      d.IsBackup,
		Source:        d.Source,
		ExternalID:    d.ExternalID,
	}
}

// Draft strips e down to its editable fields, as when duplicating.
func (e Event) Draft() EventDraft {
	return EventDraft{
		Category:      e.Category,
		Title:         e.Title,
		Notes:         e.Notes,
		Location:      e.Location,
		Date:          e.Date,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		Repeat:        e.Repeat,
		RecurrenceEnd: e.RecurrenceEnd,
		IsBackup:      e.IsBackup,
	}
}

// EventPatch is a partial update; nil fields are left unchanged.
type EventPatch struct {
	Category      *Category
	Title         *string
	Notes         *string
	Location      *string
	Date          *time.Time
	StartTime     *string
	EndTime       *string
	Repeat        *RepeatPattern
	RecurrenceEnd **time.Time
	IsBackup      *bool
}

// Apply returns a copy of e with the patch applied. It does not touch
// UpdatedAt; stores stamp that.
func (p EventPatch) Apply(e Event) Event {
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Date != nil {
		e.Date = DateOf(*p.Date)
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.Repeat != nil {
		e.Repeat = *p.Repeat
	}
	if p.RecurrenceEnd != nil {
		e.RecurrenceEnd = *p.RecurrenceEnd
	}
	if p.IsBackup != nil {
		e.IsBackup = *p.IsBackup
	}
	if e.Repeat == RepeatNone {
		e.RecurrenceEnd = nil
	}
	return e
}

// RescheduleTo is the patch issued by a drag commit or an undo.
func RescheduleTo(date time.Time, start, end string) EventPatch {
	return EventPatch{Date: &date, StartTime: &start, EndTime: &end}
}

// DateOf truncates t to midnight of its calendar day in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day, ignoring
// time-of-day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateRange is an inclusive window used to filter events by start time.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within [Start, End]. A zero bound is open.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}
