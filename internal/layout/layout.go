// Package layout places the events of one day into side-by-side columns so
// that concurrent events never cover each other.
package layout

import (
	"cmp"
	"math"
	"slices"
	"time"

	"keycal/internal/model"
	"keycal/internal/timefmt"
)

const (
	// DefaultHourHeight is the pixel height of one hour row.
	DefaultHourHeight = 64
	// MinBlockHeight keeps very short events tappable.
	MinBlockHeight = 32
)

// Interval is an event's effective span in fractional hours of the day.
type Interval struct {
	Start float64
	End   float64
}

// IntervalOf computes the effective interval of e. Overnight events extend
// past 24.
func IntervalOf(e model.Event) Interval {
	start := float64(timefmt.ParseToHour(e.StartTime)) + timefmt.OffsetFraction(e.StartTime)
	return Interval{Start: start, End: start + e.DurationHours()}
}

// Overlaps uses half-open intervals: touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// Slot is an event with its assigned column.
type Slot struct {
	Event        model.Event
	Interval     Interval
	Column       int
	TotalColumns int
}

// WidthPercent is the share of the day column the event occupies.
func (s Slot) WidthPercent() float64 {
	return 100 / float64(s.TotalColumns)
}

// LeftPercent is the horizontal offset of the event's column.
func (s Slot) LeftPercent() float64 {
	return float64(s.Column) * s.WidthPercent()
}

// TopPx is the vertical position for the given hour row height.
func (s Slot) TopPx(hourHeight float64) float64 {
	return s.Interval.Start * hourHeight
}

// HeightPx is the block height, never below MinBlockHeight.
func (s Slot) HeightPx(hourHeight float64) float64 {
	return math.Max((s.Interval.End-s.Interval.Start)*hourHeight, MinBlockHeight)
}

// Compute assigns columns greedily in start order (stable on ties). Each
// event takes the lowest column unused by its already-placed neighbours,
// and the resulting width is pushed back onto those neighbours.
// Slots are returned in sorted order.
func Compute(events []model.Event) []Slot {
	slots := make([]Slot, len(events))
	for i, e := range events {
		slots[i] = Slot{Event: e, Interval: IntervalOf(e), Column: -1}
	}
	slices.SortStableFunc(slots, func(a, b Slot) int {
		return cmp.Compare(a.Interval.Start, b.Interval.Start)
	})

	for i := range slots {
		var neighbours []int
		for j := range slots {
			if j != i && Overlaps(slots[i].Interval, slots[j].Interval) {
				neighbours = append(neighbours, j)
			}
		}

		used := make(map[int]bool, len(neighbours))
		for _, j := range neighbours {
			if slots[j].Column >= 0 {
				used[slots[j].Column] = true
			}
		}
		col := 0
		for used[col] {
			col++
		}

		total := col + 1
		for _, j := range neighbours {
			// Unplaced neighbours count as a single column.
			n := 1
			if slots[j].Column >= 0 {
				n = slots[j].TotalColumns
			}
			total = max(total, n)
		}

		slots[i].Column = col
		slots[i].TotalColumns = total
		for _, j := range neighbours {
			if slots[j].Column >= 0 {
				slots[j].TotalColumns = total
			}
		}
	}
	return slots
}

// DayEvents keeps the events whose calendar day equals day.
func DayEvents(events []model.Event, day time.Time) []model.Event {
	var out []model.Event
	for _, e := range events {
		if model.SameDay(e.Date, day) {
			out = append(out, e)
		}
	}
	return out
}

// Day filters events to day and lays them out.
func Day(events []model.Event, day time.Time) []Slot {
	return Compute(DayEvents(events, day))
}
