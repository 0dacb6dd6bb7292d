package model

import (
	"strings"
	"time"
)

type MeasurementType string

const (
	MeasureTime      MeasurementType = "time"
	MeasureFrequency MeasurementType = "frequency"
)

func ParseMeasurementType(s string) (MeasurementType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "time":
		return MeasureTime, true
	case "frequency":
		return MeasureFrequency, true
	}
	return "", false
}

// Indicator is a weekly goal for one category. Exactly one of GoalHours
// and GoalFrequency is set, matching MeasurementType.
type Indicator struct {
	ID              string
	UserID          string
	Category        Category
	MeasurementType MeasurementType
	GoalHours       *float64
	GoalFrequency   *int
	DisplayOrder    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Goal returns the active goal as a float regardless of measurement type.
func (i Indicator) Goal() float64 {
	switch i.MeasurementType {
	case MeasureFrequency:
		if i.GoalFrequency != nil {
			return float64(*i.GoalFrequency)
		}
	default:
		if i.GoalHours != nil {
			return *i.GoalHours
		}
	}
	return 0
}

// SetMeasurement switches the measurement type and stores goal in the
// matching field. The inactive goal is cleared.
func (i *Indicator) SetMeasurement(t MeasurementType, goal float64) {
	i.MeasurementType = t
	switch t {
	case MeasureFrequency:
		n := int(goal + 0.5)
		i.GoalFrequency = &n
		i.GoalHours = nil
	default:
		i.MeasurementType = MeasureTime
		h := goal
		i.GoalHours = &h
		i.GoalFrequency = nil
	}
}

// IndicatorDraft is the payload for creating an indicator.
type IndicatorDraft struct {
	Category        Category
	MeasurementType MeasurementType
	Goal            float64
}

// DefaultGoal is used when a draft carries no goal.
const DefaultGoal = 1

// Indicator builds an unsaved indicator appended after existing ones.
func (d IndicatorDraft) Indicator(userID string, order int) Indicator {
	goal := d.Goal
	if goal <= 0 {
		goal = DefaultGoal
	}
	ind := Indicator{UserID: userID, Category: d.Category, DisplayOrder: order}
	ind.SetMeasurement(d.MeasurementType, goal)
	return ind
}

// IndicatorPatch is a partial update; nil fields are left unchanged.
// Changing MeasurementType without a Goal carries the old goal value over.
type IndicatorPatch struct {
	Category        *Category
	MeasurementType *MeasurementType
	Goal            *float64
	DisplayOrder    *int
}

func (p IndicatorPatch) Apply(i Indicator) Indicator {
	if p.Category != nil {
		i.Category = *p.Category
	}
	if p.DisplayOrder != nil {
		i.DisplayOrder = *p.DisplayOrder
	}
	if p.MeasurementType != nil || p.Goal != nil {
		t := i.MeasurementType
		if p.MeasurementType != nil {
			t = *p.MeasurementType
		}
		goal := i.Goal()
		if p.Goal != nil {
			goal = *p.Goal
		}
		i.SetMeasurement(t, goal)
	}
	return i
}

// IndicatorProgress is an indicator with its derived actuals for one
// Monday–Sunday week.
type IndicatorProgress struct {
	Indicator
	ActualHours     float64
	ActualFrequency int
	WeekStart       time.Time
	WeekEnd         time.Time
}

// Percent is actual over goal, capped at 100. A zero goal reports 0.
func (p IndicatorProgress) Percent() float64 {
	goal := p.Goal()
	if goal <= 0 {
		return 0
	}
	actual := p.ActualHours
	if p.MeasurementType == MeasureFrequency {
		actual = float64(p.ActualFrequency)
	}
	pct := actual / goal * 100
	if pct > 100 {
		return 100
	}
	return pct
}
