// Package goals derives indicator progress from the events of the
// Monday–Sunday week around a reference day.
package goals

import (
	"cmp"
	"slices"
	"time"

	"keycal/internal/calendar"
	"keycal/internal/model"
)

// Totals is the per-category sum over one week.
type Totals struct {
	Hours float64
	Count int
}

// WeekTotals sums durations and counts per category for events whose day
// lies within the week of ref.
func WeekTotals(events []model.Event, ref time.Time) map[model.Category]Totals {
	out := make(map[model.Category]Totals)
	for _, e := range events {
		if !calendar.InWeek(e.Date, ref) {
			continue
		}
		t := out[e.Category]
		t.Hours += e.DurationHours()
		t.Count++
		out[e.Category] = t
	}
	return out
}

// Progress attaches actuals to every indicator, ordered by DisplayOrder.
// Only the actual matching the measurement type is filled.
func Progress(indicators []model.Indicator, events []model.Event, ref time.Time) []model.IndicatorProgress {
	totals := WeekTotals(events, ref)
	start, end := calendar.WeekStart(ref), calendar.WeekEnd(ref)

	out := make([]model.IndicatorProgress, 0, len(indicators))
	for _, ind := range Sorted(indicators) {
		p := model.IndicatorProgress{Indicator: ind, WeekStart: start, WeekEnd: end}
		t := totals[ind.Category]
		switch ind.MeasurementType {
		case model.MeasureFrequency:
			p.ActualFrequency = t.Count
		default:
			p.ActualHours = t.Hours
		}
		out = append(out, p)
	}
	return out
}

// Sorted returns a copy ordered by DisplayOrder, stable on ties.
func Sorted(indicators []model.Indicator) []model.Indicator {
	out := slices.Clone(indicators)
	slices.SortStableFunc(out, func(a, b model.Indicator) int {
		return cmp.Compare(a.DisplayOrder, b.DisplayOrder)
	})
	return out
}
