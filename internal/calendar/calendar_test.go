package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekDaysWednesdayStart(t *testing.T) {
	// Friday 2026-04-03 14:30
	selected := time.Date(2026, time.April, 3, 14, 30, 0, 0, time.UTC)
	days := WeekDays(selected, DefaultStripStart)

	require.Len(t, days, 7)
	assert.Equal(t, day(2026, time.April, 1), days[0].FullDate)
	assert.Equal(t, "Wed", days[0].DayName)
	assert.Equal(t, "Tue", days[6].DayName)

	selectedCount := 0
	for i, d := range days {
		if d.IsSelected {
			selectedCount++
			assert.Equal(t, 3, d.DayOfMonth)
		}
		if i > 0 {
			assert.Equal(t, days[i-1].FullDate.AddDate(0, 0, 1), d.FullDate)
		}
	}
	assert.Equal(t, 1, selectedCount)
}

func TestWeekDaysEveryWeekday(t *testing.T) {
	for start := time.Sunday; start <= time.Saturday; start++ {
		for offset := 0; offset < 14; offset++ {
			selected := day(2026, time.February, 20).AddDate(0, 0, offset)
			days := WeekDays(selected, start)
			require.Len(t, days, 7)
			require.Equal(t, start, days[0].FullDate.Weekday())

			n := 0
			for _, d := range days {
				if d.IsSelected {
					n++
				}
			}
			require.Equal(t, 1, n, "start %s selected %s", start, selected)
		}
	}
}

func TestWeekDaysCrossesMonthEnd(t *testing.T) {
	days := WeekDays(day(2026, time.March, 2), time.Wednesday)
	assert.Equal(t, day(2026, time.February, 25), days[0].FullDate)
	assert.Equal(t, day(2026, time.March, 3), days[6].FullDate)
}

func TestCalendarDays(t *testing.T) {
	april := CalendarDays(3, 2026)
	require.Len(t, april, 3+30)
	assert.Equal(t, []int{0, 0, 0, 1}, april[:4])
	assert.Equal(t, 30, april[len(april)-1])

	assert.Equal(t, 29, countDays(CalendarDays(1, 2024)))
	assert.Equal(t, 28, countDays(CalendarDays(1, 2026)))
	assert.Equal(t, 31, countDays(CalendarDays(0, 2026)))
}

func TestCalendarDaysMonthOverflow(t *testing.T) {
	// Month 12 of 2025 is January 2026.
	assert.Equal(t, CalendarDays(0, 2026), CalendarDays(12, 2025))
}

func countDays(cells []int) int {
	n := 0
	for _, c := range cells {
		if c != 0 {
			n++
		}
	}
	return n
}

func TestIsLeapYear(t *testing.T) {
	assert.True(t, IsLeapYear(2024))
	assert.True(t, IsLeapYear(2000))
	assert.False(t, IsLeapYear(1900))
	assert.False(t, IsLeapYear(2026))
	assert.Equal(t, 29, DaysInMonth(time.February, 2000))
	assert.Equal(t, 28, DaysInMonth(time.February, 2100))
	assert.Equal(t, 30, DaysInMonth(time.September, 2026))
	assert.Equal(t, 31, DaysInMonth(time.December, 2026))
}

func TestHourLabels(t *testing.T) {
	labels := HourLabels()
	require.Len(t, labels, 24)
	assert.Equal(t, "12 AM", labels[0])
	assert.Equal(t, "1 AM", labels[1])
	assert.Equal(t, "11 AM", labels[11])
	assert.Equal(t, "12 PM", labels[12])
	assert.Equal(t, "1 PM", labels[13])
	assert.Equal(t, "11 PM", labels[23])

	seen := map[string]bool{}
	for _, l := range labels {
		assert.False(t, seen[l], l)
		seen[l] = true
	}
}

func TestWeekStartMonday(t *testing.T) {
	// 2026-04-02 is a Thursday.
	thu := time.Date(2026, time.April, 2, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, day(2026, time.March, 30), WeekStart(thu))
	assert.Equal(t, day(2026, time.April, 5), WeekEnd(thu))

	sun := day(2026, time.April, 5)
	assert.Equal(t, day(2026, time.March, 30), WeekStart(sun))

	mon := day(2026, time.March, 30)
	assert.Equal(t, mon, WeekStart(mon))
}

func TestInWeek(t *testing.T) {
	ref := day(2026, time.April, 2)
	assert.True(t, InWeek(day(2026, time.March, 30), ref))
	assert.True(t, InWeek(time.Date(2026, time.April, 5, 23, 59, 0, 0, time.UTC), ref))
	assert.False(t, InWeek(day(2026, time.April, 6), ref))
	assert.False(t, InWeek(day(2026, time.March, 29), ref))
}

func TestParseWeekday(t *testing.T) {
	d, ok := ParseWeekday("Wednesday")
	assert.True(t, ok)
	assert.Equal(t, time.Wednesday, d)

	d, ok = ParseWeekday("mon")
	assert.True(t, ok)
	assert.Equal(t, time.Monday, d)

	_, ok = ParseWeekday("someday")
	assert.False(t, ok)
}

func TestShift(t *testing.T) {
	assert.Equal(t, day(2026, time.March, 1), Shift(time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC), 1))
	assert.Equal(t, day(2026, time.February, 28), Shift(day(2026, time.March, 1), -1))
}
