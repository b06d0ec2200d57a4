package engine

import (
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
)

const maxSweepSpread = 5 * time.Second

// sweepSchedule wraps a constant-cadence schedule and overrides the first
// activation, so engines started together do not sweep in lockstep.
type sweepSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *sweepSchedule) Next(t time.Time) time.Time {
	if !s.first.IsZero() && t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

func newSweepSchedule(every time.Duration, now time.Time) (cron.Schedule, time.Duration) {
	base := cron.Every(every)
	spreadMax := every
	if spreadMax > maxSweepSpread {
		spreadMax = maxSweepSpread
	}
	if spreadMax <= 0 {
		return base, 0
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	jitter := time.Duration(rng.Int63n(int64(spreadMax)))
	return &sweepSchedule{base: base, first: now.Add(jitter)}, jitter
}
