package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "keycal/internal/log"
	"keycal/internal/model"
	"keycal/internal/timefmt"
)

// ErrEmpty is returned for an empty payload.
var ErrEmpty = errors.New("empty ICS body")

// Parse converts a single ICS payload into event drafts owned by src.
//
//   - It relies on the underlying library's VTIMEZONE/TZID handling to
//     construct proper time.Time values, then moves them into loc.
//   - All-day events are skipped: the day grid only holds timed events.
//   - RECURRENCE-ID overrides are skipped; the base event's RRULE is kept
//     as a repeat pattern and never expanded.
//   - CATEGORIES picks the first known category, falling back to
//     src.Category and then Other.
func Parse(src Source, body []byte, loc *time.Location) ([]model.EventDraft, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmpty
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	drafts := make([]model.EventDraft, 0)
	skipped := 0
	for _, ve := range cal.Events() {
		d, ok, perr := parseVEvent(src, ve, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		if !ok {
			skipped++
			continue
		}
		drafts = append(drafts, d)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(drafts), "skipped", skipped)
	return drafts, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (model.EventDraft, bool, error) {
	var out model.EventDraft

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, false, errors.New("missing UID")
	}
	if ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")) != nil {
		return out, false, nil
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, false, errors.New("missing DTSTART")
	}
	if isAllDay(dtStart) {
		appLog.Debug("ics all-day event skipped", "id", src.ID, "uid", uidProp.Value)
		return out, false, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, false, err
	}
	end, err := ve.GetEndAt()
	if err != nil || !end.After(start) {
		end = start.Add(time.Hour)
	}
	startLoc := start.Location()
	start, end = start.In(loc), end.In(loc)

	date, startStr := timefmt.FromTime(start)
	_, endStr := timefmt.FromTime(end)

	out = model.EventDraft{
		Category:   categoryOf(ve, src.Category),
		Title:      propValue(ve, ical.ComponentPropertySummary),
		Notes:      propValue(ve, ical.ComponentPropertyDescription),
		Location:   propValue(ve, ical.ComponentPropertyLocation),
		Date:       date,
		StartTime:  startStr,
		EndTime:    endStr,
		Repeat:     model.RepeatNone,
		IsBackup:   strings.EqualFold(propValue(ve, ical.ComponentPropertyStatus), "TENTATIVE"),
		Source:     src.ID,
		ExternalID: uidProp.Value,
	}

	if raw := propValue(ve, ical.ComponentPropertyRrule); raw != "" {
		repeat, until, rerr := repeatOf(raw, startLoc, loc)
		if rerr != nil {
			appLog.Debug("ics rrule ignored", "id", src.ID, "uid", uidProp.Value, "rrule", raw, "error", rerr)
		} else {
			out.Repeat = repeat
			out.RecurrenceEnd = until
		}
	}
	return out, true, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}

// isAllDay reports VALUE=DATE or a bare YYYYMMDD value.
func isAllDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func categoryOf(ve *ical.VEvent, fallback model.Category) model.Category {
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, part := range strings.Split(p.Value, ",") {
			if c, ok := model.ParseCategory(part); ok {
				return c
			}
		}
	}
	if fallback.Valid() {
		return fallback
	}
	return model.CategoryOther
}

// repeatOf maps an RRULE value onto the descriptive repeat patterns and
// returns the UNTIL day in loc. Frequencies finer than daily have no
// pattern and map to none.
//
// rrule-go reads every UNTIL as UTC. Only a trailing Z means UTC; a
// local UNTIL is wall-clock time in DTSTART's zone (startLoc) and a
// date-only UNTIL is taken as the calendar day it names.
func repeatOf(raw string, startLoc, loc *time.Location) (model.RepeatPattern, *time.Time, error) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return model.RepeatNone, nil, err
	}
	var repeat model.RepeatPattern
	switch opt.Freq {
	case rrule.DAILY:
		repeat = model.RepeatDaily
	case rrule.WEEKLY:
		repeat = model.RepeatWeekly
	case rrule.MONTHLY:
		repeat = model.RepeatMonthly
	case rrule.YEARLY:
		repeat = model.RepeatYearly
	default:
		return model.RepeatNone, nil, nil
	}
	if opt.Until.IsZero() {
		return repeat, nil, nil
	}

	u := opt.Until.UTC()
	value := untilValue(raw)
	var day time.Time
	switch {
	case strings.HasSuffix(value, "Z"):
		day = model.DateOf(u.In(loc))
	case !strings.Contains(value, "T"):
		day = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, loc)
	default:
		if startLoc == nil {
			startLoc = loc
		}
		wall := time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, startLoc)
		day = model.DateOf(wall.In(loc))
	}
	return repeat, &day, nil
}

// untilValue returns the raw UNTIL part of an RRULE value, upper-cased.
func untilValue(raw string) string {
	for _, part := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(k, "UNTIL") {
			return strings.ToUpper(strings.TrimSpace(v))
		}
	}
	return ""
}
