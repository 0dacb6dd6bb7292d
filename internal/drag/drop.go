package drag

import (
	"math"
	"time"

	"keycal/internal/model"
	"keycal/internal/timefmt"
)

// LatestStart is the last start a dropped event may snap to (11:45 PM).
const LatestStart = 23*60 + 45

// Config holds the gesture tuning. Distances are in pixels.
type Config struct {
	HourHeight         float64
	LongPress          time.Duration
	MoveTolerance      float64
	ScrollThreshold    float64
	ScrollStep         float64
	DaySwitchThreshold float64
	SnapMinutes        int
}

func DefaultConfig() Config {
	return Config{
		HourHeight:         64,
		LongPress:          500 * time.Millisecond,
		MoveTolerance:      10,
		ScrollThreshold:    100,
		ScrollStep:         10,
		DaySwitchThreshold: 96,
		SnapMinutes:        15,
	}
}

// Normalize fills zero fields from DefaultConfig.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if c.HourHeight <= 0 {
		c.HourHeight = d.HourHeight
	}
	if c.LongPress <= 0 {
		c.LongPress = d.LongPress
	}
	if c.MoveTolerance <= 0 {
		c.MoveTolerance = d.MoveTolerance
	}
	if c.ScrollThreshold <= 0 {
		c.ScrollThreshold = d.ScrollThreshold
	}
	if c.ScrollStep <= 0 {
		c.ScrollStep = d.ScrollStep
	}
	if c.DaySwitchThreshold <= 0 {
		c.DaySwitchThreshold = d.DaySwitchThreshold
	}
	if c.SnapMinutes <= 0 {
		c.SnapMinutes = d.SnapMinutes
	}
	return c
}

// RoundHalfUp rounds to the nearest integer, halves toward +Inf.
// -2.5 rounds to -2.
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// DeltaMinutes converts a vertical pointer travel into minutes.
func DeltaMinutes(deltaY, hourHeight float64) int {
	return RoundHalfUp(deltaY / hourHeight * timefmt.MinutesPerHour)
}

// Snap rounds minutes to the nearest multiple of step, half up.
func Snap(minutes, step int) int {
	if step <= 0 {
		return minutes
	}
	return RoundHalfUp(float64(minutes)/float64(step)) * step
}

// ClampStart bounds a start into [12:00 AM, 11:45 PM].
func ClampStart(minutes int) int {
	return min(max(minutes, 0), LatestStart)
}

// Drop is the rescheduled time of a released event.
type Drop struct {
	StartMinutes int
	EndMinutes   int
	StartTime    string
	EndTime      string
}

// ComputeDrop applies a vertical drag of deltaY pixels to e. The start is
// snapped then clamped, and the end keeps the original duration, wrapping
// past midnight.
func ComputeDrop(e model.Event, deltaY float64, cfg Config) Drop {
	cfg = cfg.Normalize()
	start := e.StartMinutes() + DeltaMinutes(deltaY, cfg.HourHeight)
	start = ClampStart(Snap(start, cfg.SnapMinutes))
	end := start + e.DurationMinutes()
	return Drop{
		StartMinutes: start,
		EndMinutes:   end,
		StartTime:    timefmt.FormatMinutes(start),
		EndTime:      timefmt.FormatMinutes(end),
	}
}

// Move is a committed reschedule. Previous is the event as it was at
// press time, for undo.
type Move struct {
	EventID   string
	Date      time.Time
	StartTime string
	EndTime   string
	Previous  model.Event
}

// Patch is the store update the move issues.
func (m Move) Patch() model.EventPatch {
	return model.RescheduleTo(m.Date, m.StartTime, m.EndTime)
}

// Undo is the patch restoring Previous.
func (m Move) Undo() model.EventPatch {
	return model.RescheduleTo(m.Previous.Date, m.Previous.StartTime, m.Previous.EndTime)
}
