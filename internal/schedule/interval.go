package schedule

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInterval marks interval strings that do not match the
// "<count> <unit>" grammar.
var ErrInvalidInterval = errors.New("invalid interval")

// ParseInterval parses a human interval like "5 minutes" or "2 hours" into a
// duration. The grammar is a non-negative integer, whitespace, and a unit
// word (second/minute/hour/day, singular or plural, any case). Counts that
// would overflow time.Duration saturate instead of wrapping.
func ParseInterval(raw string) (time.Duration, error) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) != 2 {
		return 0, fmt.Errorf("%w: %q (expected \"<count> <unit>\", e.g. \"5 minutes\")", ErrInvalidInterval, raw)
	}

	n, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			// Too large to represent: saturate rather than wrap.
			return unitDuration(fields[1], raw, math.MaxUint64)
		}
		return 0, fmt.Errorf("%w: bad count %q in %q", ErrInvalidInterval, fields[0], raw)
	}
	return unitDuration(fields[1], raw, n)
}

func unitDuration(unit, raw string, n uint64) (time.Duration, error) {
	var per time.Duration
	switch strings.ToLower(unit) {
	case "second", "seconds":
		per = time.Second
	case "minute", "minutes":
		per = time.Minute
	case "hour", "hours":
		per = time.Hour
	case "day", "days":
		per = 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: unknown unit %q in %q", ErrInvalidInterval, unit, raw)
	}
	if n > uint64(math.MaxInt64)/uint64(per) {
		return time.Duration(math.MaxInt64), nil
	}
	return time.Duration(n) * per, nil
}
