package store

import (
	"context"
	"fmt"
	"time"

	"keycal/internal/model"
)

// DemoEvents is a typical day of sample events on today.
func DemoEvents(today time.Time) []model.EventDraft {
	day := model.DateOf(today)
	draft := func(c model.Category, title, notes, location, start, end string, r model.RepeatPattern) model.EventDraft {
		return model.EventDraft{
			Category:  c,
			Title:     title,
			Notes:     notes,
			Location:  location,
			Date:      day,
			StartTime: start,
			EndTime:   end,
			Repeat:    r,
		}
	}
	return []model.EventDraft{
		draft(model.CategoryMeal, "Breakfast", "Healthy start to the day", "", "7:00 AM", "7:30 AM", model.RepeatDaily),
		draft(model.CategoryWork, "Morning Planning", "Review weekly goals", "", "8:00 AM", "9:00 AM", model.RepeatDaily),
		draft(model.CategoryChurch, "Sunday Service", "Weekly worship service", "123 Church Street", "9:00 AM", "11:00 AM", model.RepeatWeekly),
		draft(model.CategoryFamily, "Family Lunch", "Sunday family gathering", "", "12:00 PM", "1:00 PM", model.RepeatWeekly),
		draft(model.CategorySchool, "Study Session", "Prepare for upcoming exam", "Library", "2:00 PM", "4:00 PM", model.RepeatNone),
		draft(model.CategoryMeal, "Dinner", "Family dinner time", "", "6:00 PM", "7:00 PM", model.RepeatDaily),
		draft(model.CategoryOther, "Evening Reflection", "Journal and meditation", "", "8:00 PM", "9:00 PM", model.RepeatDaily),
	}
}

// DemoIndicators are weekly hour goals in display order.
func DemoIndicators() []model.IndicatorDraft {
	return []model.IndicatorDraft{
		{Category: model.CategoryChurch, MeasurementType: model.MeasureTime, Goal: 3},
		{Category: model.CategoryFamily, MeasurementType: model.MeasureTime, Goal: 10},
		{Category: model.CategorySchool, MeasurementType: model.MeasureTime, Goal: 15},
		{Category: model.CategoryWork, MeasurementType: model.MeasureTime, Goal: 20},
	}
}

// SeedDemo loads the sample data for userID into s.
func SeedDemo(ctx context.Context, s Store, userID string, today time.Time) error {
	for _, d := range DemoEvents(today) {
		if _, err := s.CreateEvent(ctx, userID, d); err != nil {
			return fmt.Errorf("seed event %q: %w", d.Title, err)
		}
	}
	for _, d := range DemoIndicators() {
		if _, err := s.CreateIndicator(ctx, userID, d); err != nil {
			return fmt.Errorf("seed indicator %s: %w", d.Category, err)
		}
	}
	return nil
}
