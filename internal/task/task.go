package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConfig marks task definition validation failures. A definition that
// fails validation is rejected at add time and never reaches the registry.
var ErrConfig = errors.New("invalid task definition")

// Recurrence selects how a task repeats. At most one mode may be set; a
// definition with neither mode is kept addressable but never becomes due.
//
// The two modes are mutually exclusive by construction: Validate rejects
// definitions that set both, so downstream code never observes the invalid
// combination.
type Recurrence struct {
	// Every is a fixed interval between runs. Zero means unset.
	Every time.Duration
	// Daily runs the task once per eligible day.
	Daily bool
}

// IsZero reports whether no recurrence mode is set.
func (r Recurrence) IsZero() bool { return r.Every <= 0 && !r.Daily }

func (r Recurrence) String() string {
	switch {
	case r.Every > 0:
		return "every " + r.Every.String()
	case r.Daily:
		return "daily"
	default:
		return "unscheduled"
	}
}

// TimeOfDay is an hour:minute wall-clock moment in a task's timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Minutes returns the minute-of-day ordinal (0..1439).
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: invalid time %q, expected HH:MM", ErrConfig, s)
	}
	h, err := atoiStrict(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: invalid hour in %q", ErrConfig, s)
	}
	m, err := atoiStrict(parts[1])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: invalid minute in %q", ErrConfig, s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func atoiStrict(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		n = n*10 + int(c-'0')
		if n > 1<<20 {
			return 0, fmt.Errorf("number out of range: %q", s)
		}
	}
	return n, nil
}

// WeekdaySet is a bitmask of eligible weekdays. Zero means unrestricted.
type WeekdaySet uint8

func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }

func (s WeekdaySet) With(d time.Weekday) WeekdaySet { return s | 1<<uint(d) }

func (s WeekdaySet) IsZero() bool { return s == 0 }

func (s WeekdaySet) String() string {
	if s == 0 {
		return "any"
	}
	names := make([]string, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			names = append(names, d.String()[:3])
		}
	}
	return strings.Join(names, ",")
}

// ParseWeekday accepts full or three-letter English weekday names, any case.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sun", "sunday":
		return time.Sunday, nil
	case "mon", "monday":
		return time.Monday, nil
	case "tue", "tues", "tuesday":
		return time.Tuesday, nil
	case "wed", "wednesday":
		return time.Wednesday, nil
	case "thu", "thur", "thurs", "thursday":
		return time.Thursday, nil
	case "fri", "friday":
		return time.Friday, nil
	case "sat", "saturday":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrConfig, s)
	}
}

// Definition describes one scheduled task.
//
// Definitions are immutable once registered; edits replace the definition
// wholesale (the registry upserts by name).
type Definition struct {
	Name string

	// Agent and Message are the opaque payload handed to the external runner.
	Agent   string
	Message string

	Recur Recurrence

	// After/Before bound the inclusive time-of-day window in the task's
	// timezone. Nil means unbounded on that side.
	After  *TimeOfDay
	Before *TimeOfDay

	// Weekdays restricts eligible weekdays; zero set means unrestricted.
	Weekdays WeekdaySet

	// DayOfMonth restricts runs to one calendar day (1..31); 0 means unset.
	DayOfMonth int

	// Timezone is an IANA zone id; empty means the host's local zone.
	Timezone string

	// MaxRuntime flags a run as overdue when exceeded; 0 means unlimited.
	MaxRuntime time.Duration

	// AllowOverlap permits a new run while a previous one is still in flight.
	AllowOverlap bool

	// LastRun is the completion time of the most recent run; zero = never.
	// It seeds the recurrence computation.
	LastRun time.Time
}

// Location resolves the task's timezone, falling back to the host zone on
// empty or unknown ids. Validate rejects unknown ids up front, so the
// fallback only matters for definitions constructed in code.
func (d Definition) Location() *time.Location {
	tz := strings.TrimSpace(d.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate checks a definition before it is registered. All failures wrap
// ErrConfig.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name required", ErrConfig)
	}
	if d.Recur.Every > 0 && d.Recur.Daily {
		return fmt.Errorf("%w: task %q sets both an interval and daily recurrence", ErrConfig, d.Name)
	}
	if d.DayOfMonth < 0 || d.DayOfMonth > 31 {
		return fmt.Errorf("%w: task %q day_of_month %d out of range 1..31", ErrConfig, d.Name, d.DayOfMonth)
	}
	if d.After != nil && d.Before != nil && d.After.Minutes() > d.Before.Minutes() {
		return fmt.Errorf("%w: task %q window start %s is after window end %s", ErrConfig, d.Name, d.After, d.Before)
	}
	if d.MaxRuntime < 0 {
		return fmt.Errorf("%w: task %q max_runtime must be >= 0", ErrConfig, d.Name)
	}
	if tz := strings.TrimSpace(d.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("%w: task %q unknown timezone %q", ErrConfig, d.Name, tz)
		}
	}
	return nil
}

// Summary is a one-line human description for the status surface.
func (d Definition) Summary() string {
	var b strings.Builder
	b.WriteString(d.Recur.String())
	if d.After != nil || d.Before != nil {
		b.WriteString(" [")
		if d.After != nil {
			b.WriteString(d.After.String())
		}
		b.WriteString("..")
		if d.Before != nil {
			b.WriteString(d.Before.String())
		}
		b.WriteString("]")
	}
	if !d.Weekdays.IsZero() {
		b.WriteString(" on ")
		b.WriteString(d.Weekdays.String())
	}
	if d.DayOfMonth > 0 {
		fmt.Fprintf(&b, " on day %d", d.DayOfMonth)
	}
	if tz := strings.TrimSpace(d.Timezone); tz != "" {
		b.WriteString(" @")
		b.WriteString(tz)
	}
	return b.String()
}
