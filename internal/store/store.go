// Package store defines the Event and Indicator store contracts and an
// in-memory implementation used for demo mode and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"keycal/internal/model"
	"keycal/internal/timefmt"
)

var (
	// ErrNotFound is returned when an id does not exist for the user.
	ErrNotFound = errors.New("not found")
	// ErrInvalid wraps field validation failures.
	ErrInvalid = errors.New("invalid")
)

// EventStore persists events per user.
type EventStore interface {
	// ListEvents returns events whose start falls within r, ascending by
	// start.
	ListEvents(ctx context.Context, userID string, r model.DateRange) ([]model.Event, error)
	GetEvent(ctx context.Context, userID, id string) (model.Event, error)
	CreateEvent(ctx context.Context, userID string, d model.EventDraft) (model.Event, error)
	UpdateEvent(ctx context.Context, userID, id string, p model.EventPatch) (model.Event, error)
	DeleteEvent(ctx context.Context, userID, id string) error
}

// IndicatorStore persists indicators per user.
type IndicatorStore interface {
	// ListIndicators returns indicators ordered by display order.
	ListIndicators(ctx context.Context, userID string) ([]model.Indicator, error)
	// CreateIndicator appends the indicator after the existing ones.
	CreateIndicator(ctx context.Context, userID string, d model.IndicatorDraft) (model.Indicator, error)
	UpdateIndicator(ctx context.Context, userID, id string, p model.IndicatorPatch) (model.Indicator, error)
	DeleteIndicator(ctx context.Context, userID, id string) error
}

// Store is the full persistence surface of the server.
type Store interface {
	EventStore
	IndicatorStore
	// ReplaceSource swaps every event of one subscription source for the
	// given drafts and returns how many were written.
	ReplaceSource(ctx context.Context, userID, source string, drafts []model.EventDraft) (int, error)
	// UserIDs lists users owning any event or indicator.
	UserIDs(ctx context.Context) ([]string, error)
}

// ValidateEvent checks the fields a store refuses to persist.
func ValidateEvent(e model.Event) error {
	var problems []string
	if !e.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", e.Category))
	}
	if strings.TrimSpace(e.Title) == "" {
		problems = append(problems, "title is required")
	}
	if e.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if !timefmt.Parse(e.StartTime).OK {
		problems = append(problems, fmt.Sprintf("malformed start time %q", e.StartTime))
	}
	if !timefmt.Parse(e.EndTime).OK {
		problems = append(problems, fmt.Sprintf("malformed end time %q", e.EndTime))
	}
	switch e.Repeat {
	case model.RepeatNone, model.RepeatDaily, model.RepeatWeekly, model.RepeatMonthly, model.RepeatYearly:
	default:
		problems = append(problems, fmt.Sprintf("unknown repeat pattern %q", e.Repeat))
	}
	if e.RecurrenceEnd != nil && e.RecurrenceEnd.Before(e.Date) {
		problems = append(problems, "recurrence end is before the event date")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// CanonicalTimes rewrites start and end in canonical 12-hour form so that
// 24-hour input is stored the same way as 12-hour input.
func CanonicalTimes(e model.Event) model.Event {
	e.StartTime = timefmt.Normalize(e.StartTime)
	e.EndTime = timefmt.Normalize(e.EndTime)
	return e
}

// ValidateIndicator checks category and goal.
func ValidateIndicator(i model.Indicator) error {
	if !i.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, i.Category)
	}
	switch i.MeasurementType {
	case model.MeasureTime:
		if i.GoalHours == nil || *i.GoalHours <= 0 || i.GoalFrequency != nil {
			return fmt.Errorf("%w: time indicators need a positive goal_hours only", ErrInvalid)
		}
	case model.MeasureFrequency:
		if i.GoalFrequency == nil || *i.GoalFrequency <= 0 || i.GoalHours != nil {
			return fmt.Errorf("%w: frequency indicators need a positive goal_frequency only", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown measurement type %q", ErrInvalid, i.MeasurementType)
	}
	return nil
}
