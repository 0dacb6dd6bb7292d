// Package timefmt converts between 12-hour display strings ("9:05 AM"),
// minutes from midnight and absolute timestamps.
//
// Malformed input never produces an error. It degrades to midnight, and
// Parse reports whether that happened.
package timefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	MinutesPerHour = 60
	MinutesPerDay  = 24 * MinutesPerHour
)

var (
	reTwelve = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*(AM|PM)$`)
	reTwenty = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// Parsed is the tagged result of Parse. OK is false when the input was
// not understood and Hour/Minute hold the midnight default.
type Parsed struct {
	Hour   int
	Minute int
	OK     bool
}

// Minutes is the parsed value as minutes from midnight.
func (p Parsed) Minutes() int {
	return p.Hour*MinutesPerHour + p.Minute
}

// Parse reads "H:MM AM|PM" (case-insensitive, optional space before the
// meridiem) and falls back to a bare 24-hour "H:MM".
func Parse(s string) Parsed {
	s = strings.TrimSpace(s)
	if m := reTwelve.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h < 1 || h > 12 || min > 59 {
			return Parsed{}
		}
		pm := strings.EqualFold(m[3], "PM")
		switch {
		case pm && h != 12:
			h += 12
		case !pm && h == 12:
			h = 0
		}
		return Parsed{Hour: h, Minute: min, OK: true}
	}
	if m := reTwenty.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h > 23 || min > 59 {
			return Parsed{}
		}
		return Parsed{Hour: h, Minute: min, OK: true}
	}
	return Parsed{}
}

// ParseToHour returns the hour of day in [0,23], 0 when s is malformed.
func ParseToHour(s string) int {
	return Parse(s).Hour
}

// ParseToMinutes returns minutes from midnight in [0,1439].
func ParseToMinutes(s string) int {
	return Parse(s).Minutes()
}

// MinuteOf returns the minute component of s.
func MinuteOf(s string) int {
	return Parse(s).Minute
}

// DurationHours is (end - start) in hours. It is negative when end is
// earlier than start; see EventDurationHours for the wrapping form.
func DurationHours(start, end string) float64 {
	return float64(ParseToMinutes(end)-ParseToMinutes(start)) / MinutesPerHour
}

// EventDurationHours is DurationHours with overnight spans wrapped by a
// day, so the result is never negative.
func EventDurationHours(start, end string) float64 {
	d := DurationHours(start, end)
	if d < 0 {
		d += 24
	}
	return d
}

// OffsetFraction is the sub-hour position of start, in [0,1).
func OffsetFraction(start string) float64 {
	return float64(MinuteOf(start)) / MinutesPerHour
}

// FormatFromHour renders a 24-hour clock value as "H:MM AM|PM".
// Hours outside [0,23] wrap.
func FormatFromHour(hour, minute int) string {
	hour = ((hour % 24) + 24) % 24
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour
	switch {
	case hour == 0:
		display = 12
	case hour > 12:
		display = hour - 12
	}
	return fmt.Sprintf("%d:%02d %s", display, minute, period)
}

// FormatMinutes renders minutes from midnight, wrapping past 24h.
func FormatMinutes(total int) string {
	total = ((total % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return FormatFromHour(total/MinutesPerHour, total%MinutesPerHour)
}

// Normalize re-renders s in canonical form ("09:05 am" -> "9:05 AM").
// Malformed input becomes "12:00 AM".
func Normalize(s string) string {
	p := Parse(s)
	return FormatFromHour(p.Hour, p.Minute)
}

// ToTimestamp places s on date's calendar day in date's location, with
// zero seconds. A wall-clock time skipped by a DST switch in that location
// does not exist and is normalised by time.Date, so it does not round-trip.
func ToTimestamp(date time.Time, s string) time.Time {
	p := Parse(s)
	y, m, d := date.Date()
	return time.Date(y, m, d, p.Hour, p.Minute, 0, 0, date.Location())
}

// ToISO is ToTimestamp rendered as RFC 3339.
func ToISO(date time.Time, s string) string {
	return ToTimestamp(date, s).Format(time.RFC3339)
}

// FromTime splits t into its calendar day and display time.
func FromTime(t time.Time) (time.Time, string) {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()), FormatFromHour(t.Hour(), t.Minute())
}

// FromTimestamp parses an RFC 3339 string and splits it like FromTime,
// keeping the offset it was written with. ok is false on a malformed
// timestamp.
func FromTimestamp(iso string) (date time.Time, timeStr string, ok bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(iso))
	if err != nil {
		return time.Time{}, FormatFromHour(0, 0), false
	}
	date, timeStr = FromTime(t)
	return date, timeStr, true
}

// FormatHeaderDate renders "Jan 15, 2026".
func FormatHeaderDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// DefaultSlot is the one-hour slot offered when creating an event from an
// hour row. The end wraps past midnight.
func DefaultSlot(hour int) (start, end string) {
	return FormatFromHour(hour, 0), FormatFromHour(hour+1, 0)
}

// DayDate parses "YYYY-MM-DD" in loc.
func DayDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
}
