package goals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keycal/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func hours(v float64) *float64 { return &v }
func times(v int) *int         { return &v }

func TestProgressWorkWeek(t *testing.T) {
	ref := date(2026, time.April, 2)
	work := model.Indicator{
		ID:              "ind-1",
		Category:        model.CategoryWork,
		MeasurementType: model.MeasureTime,
		GoalHours:       hours(20),
	}

	p := Progress([]model.Indicator{work}, nil, ref)
	require.Len(t, p, 1)
	assert.Equal(t, 0.0, p[0].ActualHours)

	events := []model.Event{{
		ID:        "evt-1",
		Category:  model.CategoryWork,
		Date:      date(2026, time.April, 2),
		StartTime: "8:00 AM",
		EndTime:   "9:00 AM",
	}}
	p = Progress([]model.Indicator{work}, events, ref)
	require.Len(t, p, 1)
	assert.Equal(t, 1.0, p[0].ActualHours)
	assert.Equal(t, 0, p[0].ActualFrequency)
	assert.Equal(t, date(2026, time.March, 30), p[0].WeekStart)
	assert.Equal(t, date(2026, time.April, 5), p[0].WeekEnd)
	assert.Equal(t, 5.0, p[0].Percent())
}

func TestProgressWindowIsInclusiveMondayToSunday(t *testing.T) {
	ref := date(2026, time.April, 2)
	ev := func(d time.Time, start, end string) model.Event {
		return model.Event{Category: model.CategoryFamily, Date: d, StartTime: start, EndTime: end}
	}
	events := []model.Event{
		ev(date(2026, time.March, 29), "9:00 AM", "10:00 AM"), // previous Sunday
		ev(date(2026, time.March, 30), "9:00 AM", "10:00 AM"),
		ev(date(2026, time.April, 5), "11:00 PM", "1:00 AM"),
		ev(date(2026, time.April, 6), "9:00 AM", "10:00 AM"), // next Monday
	}
	inds := []model.Indicator{
		{ID: "time", Category: model.CategoryFamily, MeasurementType: model.MeasureTime, GoalHours: hours(10)},
		{ID: "freq", Category: model.CategoryFamily, MeasurementType: model.MeasureFrequency, GoalFrequency: times(4), DisplayOrder: 1},
	}

	p := Progress(inds, events, ref)
	require.Len(t, p, 2)
	assert.Equal(t, 3.0, p[0].ActualHours)
	assert.Equal(t, 0, p[0].ActualFrequency)
	assert.Equal(t, 2, p[1].ActualFrequency)
	assert.Equal(t, 0.0, p[1].ActualHours)
	assert.Equal(t, 50.0, p[1].Percent())
}

func TestProgressIgnoresOtherCategories(t *testing.T) {
	ref := date(2026, time.April, 2)
	events := []model.Event{{Category: model.CategoryMeal, Date: ref, StartTime: "12:00 PM", EndTime: "1:00 PM"}}
	inds := []model.Indicator{{Category: model.CategoryWork, MeasurementType: model.MeasureTime, GoalHours: hours(1)}}
	assert.Equal(t, 0.0, Progress(inds, events, ref)[0].ActualHours)
}

func TestSortedByDisplayOrder(t *testing.T) {
	in := []model.Indicator{
		{ID: "c", DisplayOrder: 2},
		{ID: "a", DisplayOrder: 0},
		{ID: "b", DisplayOrder: 1},
		{ID: "a2", DisplayOrder: 0},
	}
	out := Sorted(in)
	ids := make([]string, len(out))
	for i, ind := range out {
		ids[i] = ind.ID
	}
	assert.Equal(t, []string{"a", "a2", "b", "c"}, ids)
	assert.Equal(t, "c", in[0].ID, "input is not reordered")
}

func TestPercentCaps(t *testing.T) {
	p := model.IndicatorProgress{
		Indicator:   model.Indicator{MeasurementType: model.MeasureTime, GoalHours: hours(1)},
		ActualHours: 3,
	}
	assert.Equal(t, 100.0, p.Percent())
}
