package timefmt

import (
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTwelveHour(t *testing.T) {
	cases := []struct {
		in     string
		hour   int
		minute int
		ok     bool
	}{
		{"12:00 AM", 0, 0, true},
		{"12:30 am", 0, 30, true},
		{"1:05 AM", 1, 5, true},
		{"11:59 AM", 11, 59, true},
		{"12:00 PM", 12, 0, true},
		{"12:45PM", 12, 45, true},
		{"1:00 PM", 13, 0, true},
		{"11:15 pm", 23, 15, true},
		{"  9:30 AM ", 9, 30, true},
		{"14:30", 14, 30, true},
		{"0:00", 0, 0, true},
		{"23:59", 23, 59, true},
		{"24:00", 0, 0, false},
		{"13:00 PM", 0, 0, false},
		{"0:30 AM", 0, 0, false},
		{"9:75 AM", 0, 0, false},
		{"invalid", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := Parse(tc.in)
			assert.Equal(t, Parsed{Hour: tc.hour, Minute: tc.minute, OK: tc.ok}, got)
		})
	}
}

func TestMalformedDegradesToMidnight(t *testing.T) {
	assert.Equal(t, 0, ParseToHour("noon"))
	assert.Equal(t, 0, ParseToMinutes("noon"))
	assert.False(t, Parse("noon").OK)
	assert.True(t, Parse("12:00 AM").OK)
}

func TestFormatRoundTripsEveryHalfHour(t *testing.T) {
	for total := 0; total < MinutesPerDay; total += 30 {
		s := FormatMinutes(total)
		p := Parse(s)
		require.True(t, p.OK, s)
		require.Equal(t, total, p.Minutes(), s)
		require.Equal(t, s, FormatFromHour(ParseToHour(s), MinuteOf(s)))
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "9:05 AM", Normalize("09:05 am"))
	assert.Equal(t, "2:30 PM", Normalize("14:30"))
	assert.Equal(t, "12:00 AM", Normalize("garbage"))
}

func TestTimestampRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	date := time.Date(2026, time.March, 8, 0, 0, 0, 0, loc)

	for total := 0; total < MinutesPerDay; total += 30 {
		want := FormatMinutes(total)
		if ts := ToTimestamp(date, want); ts.Hour() != total/60 {
			// 2:00-2:59 AM does not exist on the DST switch day.
			continue
		}
		gotDate, got, ok := FromTimestamp(ToISO(date, want))
		require.True(t, ok)
		require.Equal(t, want, got)
		require.Equal(t, 8, gotDate.Day())
	}
}

func TestTimestampSkippedByDSTSwitch(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	date := time.Date(2026, time.March, 8, 0, 0, 0, 0, loc)

	skipped := 0
	for total := 0; total < MinutesPerDay; total += 30 {
		want := FormatMinutes(total)
		if _, got := FromTime(ToTimestamp(date, want)); got != want {
			skipped++
		}
	}
	assert.Equal(t, 2, skipped, "only 2:00 and 2:30 AM are missing")

	_, got := FromTime(ToTimestamp(date, "2:00 AM"))
	assert.Equal(t, "1:00 AM", got)
	_, got = FromTime(ToTimestamp(date, "2:30 AM"))
	assert.Equal(t, "1:30 AM", got)

	// The fall-back day repeats 1:00-1:59 AM and every mark still round-trips.
	fall := time.Date(2026, time.November, 1, 0, 0, 0, 0, loc)
	for total := 0; total < MinutesPerDay; total += 30 {
		want := FormatMinutes(total)
		_, got := FromTime(ToTimestamp(fall, want))
		require.Equal(t, want, got)
	}
}

func TestTimestampRoundTripUTC(t *testing.T) {
	date := time.Date(2026, time.January, 15, 17, 42, 0, 0, time.UTC)
	for total := 0; total < MinutesPerDay; total += 30 {
		want := FormatMinutes(total)
		ts := ToTimestamp(date, want)
		require.Equal(t, 0, ts.Second())
		_, got := FromTime(ts)
		require.Equal(t, want, got, fmt.Sprintf("minute %d", total))
	}
	_, midnight := FromTime(ToTimestamp(date, "12:00 AM"))
	assert.Equal(t, "12:00 AM", midnight)
	_, noon := FromTime(ToTimestamp(date, "12:00 PM"))
	assert.Equal(t, "12:00 PM", noon)
}

func TestFromTimestampMalformed(t *testing.T) {
	_, s, ok := FromTimestamp("yesterday")
	assert.False(t, ok)
	assert.Equal(t, "12:00 AM", s)
}

func TestDurationHours(t *testing.T) {
	assert.Equal(t, 1.0, DurationHours("9:00 AM", "10:00 AM"))
	assert.Equal(t, 2.0, DurationHours("11:00 AM", "1:00 PM"))
	assert.Equal(t, 0.5, DurationHours("9:00 AM", "9:30 AM"))
	assert.Equal(t, -2.0, DurationHours("11:00 PM", "9:00 PM"))

	assert.Equal(t, 2.0, EventDurationHours("11:00 PM", "1:00 AM"))
	assert.Equal(t, 0.0, EventDurationHours("9:00 AM", "9:00 AM"))
	assert.Equal(t, 1.0, EventDurationHours("9:00 AM", "10:00 AM"))
}

func TestOffsetFraction(t *testing.T) {
	assert.Equal(t, 0.25, OffsetFraction("9:15 AM"))
	assert.Equal(t, 0.5, OffsetFraction("12:30 PM"))
	assert.Equal(t, 0.0, OffsetFraction("invalid"))
}

func TestFormatMinutesWraps(t *testing.T) {
	assert.Equal(t, "12:15 AM", FormatMinutes(MinutesPerDay+15))
	assert.Equal(t, "11:45 PM", FormatMinutes(-15))
	assert.Equal(t, "12:00 AM", FormatFromHour(24, 0))
}

func TestFormatHeaderDate(t *testing.T) {
	assert.Equal(t, "Jan 15, 2026", FormatHeaderDate(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Dec 1, 2025", FormatHeaderDate(time.Date(2025, 12, 1, 23, 0, 0, 0, time.UTC)))
}

func TestDefaultSlot(t *testing.T) {
	start, end := DefaultSlot(9)
	assert.Equal(t, "9:00 AM", start)
	assert.Equal(t, "10:00 AM", end)

	start, end = DefaultSlot(23)
	assert.Equal(t, "11:00 PM", start)
	assert.Equal(t, "12:00 AM", end)
}

func TestDayDate(t *testing.T) {
	d, err := DayDate("2026-04-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), d)

	_, err = DayDate("04/02/2026", time.UTC)
	assert.Error(t, err)
}
