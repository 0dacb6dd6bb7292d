package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"keycal/internal/model"
)

// ProductID identifies feeds produced here.
const ProductID = "-//keycal//calendar feed//EN"

var repeatFreq = map[model.RepeatPattern]rrule.Frequency{
	model.RepeatDaily:   rrule.DAILY,
	model.RepeatWeekly:  rrule.WEEKLY,
	model.RepeatMonthly: rrule.MONTHLY,
	model.RepeatYearly:  rrule.YEARLY,
}

// Export renders events as a VCALENDAR. Each event becomes one VEVENT; a
// repeat pattern becomes an RRULE bounded by the recurrence end, backup
// events are TENTATIVE and the category is written as CATEGORIES.
func Export(name string, events []model.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, e := range events {
		ve := cal.AddEvent(e.ID + "@keycal")
		ve.SetDtStampTime(now)
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt)
		}
		if !e.UpdatedAt.IsZero() {
			ve.SetModifiedAt(e.UpdatedAt)
		}
		ve.SetStartAt(e.StartAt())
		ve.SetEndAt(e.EndAt())
		ve.SetSummary(e.Title)
		if e.Notes != "" {
			ve.SetDescription(e.Notes)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		ve.SetProperty(ical.ComponentPropertyCategories, string(e.Category))
		if e.IsBackup {
			ve.SetProperty(ical.ComponentPropertyStatus, "TENTATIVE")
		} else {
			ve.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		}
		if rule := RuleFor(e); rule != "" {
			ve.SetProperty(ical.ComponentPropertyRrule, rule)
		}
	}
	return cal.Serialize()
}

// RuleFor returns the RRULE value for e's repeat pattern, or "" when the
// event does not repeat. UNTIL is the last instant of the recurrence end
// day in the event's location.
func RuleFor(e model.Event) string {
	freq, ok := repeatFreq[e.Repeat]
	if !ok {
		return ""
	}
	opt := rrule.ROption{Freq: freq}
	if e.RecurrenceEnd != nil {
		day := model.DateOf(e.RecurrenceEnd.In(e.Date.Location()))
		opt.Until = day.AddDate(0, 0, 1).Add(-time.Second)
	}
	if _, err := rrule.NewRRule(opt); err != nil {
		return ""
	}
	return opt.String()
}
