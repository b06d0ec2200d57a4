package schedule

import (
	"time"

	"schedbot/internal/task"
)

// DayEligible reports whether the calendar day of t (already in the task's
// zone) satisfies the definition's day constraints. Day-of-month and weekday
// constraints are conjunctive; an absent constraint imposes nothing.
func DayEligible(def task.Definition, t time.Time) bool {
	if def.DayOfMonth > 0 && t.Day() != def.DayOfMonth {
		return false
	}
	if !def.Weekdays.IsZero() && !def.Weekdays.Has(t.Weekday()) {
		return false
	}
	return true
}
