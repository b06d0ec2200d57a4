package schedule

import (
	"time"

	"schedbot/internal/task"
)

// The time-of-day window is inclusive on both ends and evaluated purely on
// hour:minute; seconds within the boundary minute still count as inside.

// WindowStart returns the first eligible instant of the window on day's
// calendar date (day start when After is unset).
func WindowStart(def task.Definition, day time.Time) time.Time {
	h, m := 0, 0
	if def.After != nil {
		h, m = def.After.Hour, def.After.Minute
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

// WindowEnd returns the last eligible minute of the window on day's calendar
// date (23:59 when Before is unset).
func WindowEnd(def task.Definition, day time.Time) time.Time {
	h, m := 23, 59
	if def.Before != nil {
		h, m = def.Before.Hour, def.Before.Minute
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

// InWindow reports whether t (in the task's zone) falls inside the window.
func InWindow(def task.Definition, t time.Time) bool {
	return !beforeWindow(def, t) && !afterWindow(def, t)
}

func beforeWindow(def task.Definition, t time.Time) bool {
	if def.After == nil {
		return false
	}
	return minuteOfDay(t) < def.After.Minutes()
}

func afterWindow(def task.Definition, t time.Time) bool {
	if def.Before == nil {
		return false
	}
	return minuteOfDay(t) > def.Before.Minutes()
}

func minuteOfDay(t time.Time) int { return t.Hour()*60 + t.Minute() }
