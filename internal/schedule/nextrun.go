package schedule

import (
	"time"

	"schedbot/internal/task"
)

// HorizonDays bounds the forward day walk. A task with no eligible day
// inside the horizon is reported as not currently schedulable (zero time)
// rather than looping; the engine retries on its next reconcile pass.
const HorizonDays = 30

// NextRun computes the next eligible execution instant for def, or the zero
// time when the task is not currently schedulable.
//
// The candidate seeds from the recurrence mode:
//   - interval: LastRun+Every, clamped to now+Every when that has already
//     passed (a long-paused task fires once, not once per missed interval);
//     now when the task has never run.
//   - daily: start of the day after LastRun's day; now when never run.
//
// The candidate then walks forward day by day under the day and window
// constraints, bounded by HorizonDays.
func NextRun(def task.Definition, now time.Time) time.Time {
	if def.Recur.IsZero() {
		return time.Time{}
	}

	loc := def.Location()
	now = now.In(loc)

	var cand time.Time
	switch {
	case def.Recur.Every > 0:
		if def.LastRun.IsZero() {
			cand = now
		} else {
			cand = def.LastRun.In(loc).Add(def.Recur.Every)
			if cand.Before(now) {
				cand = now.Add(def.Recur.Every)
			}
		}
	case def.Recur.Daily:
		if def.LastRun.IsZero() {
			cand = now
		} else {
			cand = startOfNextDay(def.LastRun.In(loc))
		}
	}

	for i := 0; i < HorizonDays; i++ {
		if !DayEligible(def, cand) {
			cand = startOfNextDay(cand)
			continue
		}
		if beforeWindow(def, cand) {
			cand = WindowStart(def, cand)
		}
		if afterWindow(def, cand) {
			cand = startOfNextDay(cand)
			continue
		}
		// Rounding in the seed arithmetic can leave an otherwise valid
		// candidate marginally in the past; never return an instant < now.
		if cand.Before(now) {
			cand = now
		}
		return cand
	}
	return time.Time{}
}

func startOfNextDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}
