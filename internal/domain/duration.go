package domain

import (
	"fmt"
	"time"
)

// Duration units accepted on task templates
const (
	UnitMinutes = "minutes"
	UnitHours   = "hours"
	UnitDays    = "days"
	UnitWeeks   = "weeks"
	UnitMonths  = "months"
)

// maxDurationUnits caps each unit at roughly ten years
var maxDurationUnits = map[string]int{
	UnitMinutes: 10 * 366 * 24 * 60,
	UnitHours:   10 * 366 * 24,
	UnitDays:    10 * 366,
	UnitWeeks:   10 * 53,
	UnitMonths:  10 * 12,
}

// TaskDuration is the offset from stage entry to a template task's due date
type TaskDuration struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

// Validate checks the unit and that the value lies between zero and about ten years
func (d TaskDuration) Validate() error {
	if d.Value < 0 {
		return fmt.Errorf("duration value must not be negative")
	}
	limit, ok := maxDurationUnits[d.Unit]
	if !ok {
		return fmt.Errorf("unknown duration unit %q", d.Unit)
	}
	if d.Value > limit {
		return fmt.Errorf("duration must not exceed %d %s", limit, d.Unit)
	}
	return nil
}

// DueFrom returns start shifted by the duration. Months are calendar months.
func (d TaskDuration) DueFrom(start time.Time) (time.Time, error) {
	if err := d.Validate(); err != nil {
		return time.Time{}, err
	}
	switch d.Unit {
	case UnitMinutes:
		return start.Add(time.Duration(d.Value) * time.Minute), nil
	case UnitHours:
		return start.Add(time.Duration(d.Value) * time.Hour), nil
	case UnitDays:
		return start.AddDate(0, 0, d.Value), nil
	case UnitWeeks:
		return start.AddDate(0, 0, 7*d.Value), nil
	default:
		return start.AddDate(0, d.Value, 0), nil
	}
}
