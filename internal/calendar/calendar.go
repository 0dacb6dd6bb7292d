// Package calendar computes the grid geometry the views render from: the
// seven-day strip, month grids, hour labels and the Monday–Sunday window
// used for goal aggregation.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DefaultStripStart is the weekday the seven-day strip begins on.
const DefaultStripStart = time.Wednesday

// WeekDay is one cell of the week strip.
type WeekDay struct {
	DayName    string
	DayOfMonth int
	FullDate   time.Time
	IsSelected bool
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return 0, false
}

// WeekDays returns the seven consecutive days of the strip containing
// selected, beginning on the most recent start weekday. Exactly one entry
// is selected, matched by calendar day.
func WeekDays(selected time.Time, start time.Weekday) []WeekDay {
	back := (int(selected.Weekday()) - int(start) + 7) % 7
	first := dateOf(selected).AddDate(0, 0, -back)

	days := make([]WeekDay, 0, 7)
	for i := 0; i < 7; i++ {
		d := first.AddDate(0, 0, i)
		days = append(days, WeekDay{
			DayName:    d.Weekday().String()[:3],
			DayOfMonth: d.Day(),
			FullDate:   d,
			IsSelected: sameDay(d, selected),
		})
	}
	return days
}

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth takes a 1-based month.
func DaysInMonth(month time.Month, year int) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// CalendarDays lays out a month for a Sunday-first grid. month0 is 0-based
// (0 = January). Leading cells before the first of the month are 0.
func CalendarDays(month0, year int) []int {
	// Normalize out-of-range months onto neighbouring years.
	first := time.Date(year, time.Month(month0+1), 1, 0, 0, 0, 0, time.UTC)
	pad := int(first.Weekday())
	n := DaysInMonth(first.Month(), first.Year())

	cells := make([]int, pad, pad+n)
	for d := 1; d <= n; d++ {
		cells = append(cells, d)
	}
	return cells
}

// HourLabels returns "12 AM" through "11 PM".
func HourLabels() []string {
	labels := make([]string, 24)
	for h := range labels {
		period := "AM"
		if h >= 12 {
			period = "PM"
		}
		display := h
		switch {
		case h == 0:
			display = 12
		case h > 12:
			display = h - 12
		}
		labels[h] = fmt.Sprintf("%d %s", display, period)
	}
	return labels
}

// WeekStart returns midnight of the Monday on or before t. This is the
// goal-aggregation window, independent of the strip start.
func WeekStart(t time.Time) time.Time {
	back := (int(t.Weekday()) + 6) % 7
	return dateOf(t).AddDate(0, 0, -back)
}

// WeekEnd returns midnight of the Sunday closing WeekStart(t).
func WeekEnd(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 6)
}

// InWeek reports whether day falls within [WeekStart(ref), WeekEnd(ref)]
// by calendar day.
func InWeek(day, ref time.Time) bool {
	d := dateOf(day.In(ref.Location()))
	return !d.Before(WeekStart(ref)) && !d.After(WeekEnd(ref))
}

// Shift moves the selected day by n days, as the week strip arrows and
// the drag day-switch do.
func Shift(t time.Time, n int) time.Time {
	return dateOf(t).AddDate(0, 0, n)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
