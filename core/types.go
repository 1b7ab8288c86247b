package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrInvalidArgument is returned when a bucket or limiter is constructed
// with parameters that can never work.
var ErrInvalidArgument = errors.New("invalid argument")

// Interval names the span over which tokensPerInterval tokens are added.
// It is either a unit name, a bare millisecond count such as "250", or a
// Go duration string such as "1500ms".
type Interval string

// Named intervals
const (
	Second Interval = "second"
	Minute Interval = "minute"
	Hour   Interval = "hour"
	Day    Interval = "day"
)

var unitDurations = map[Interval]time.Duration{
	Second: time.Second,
	Minute: time.Minute,
	Hour:   time.Hour,
	Day:    24 * time.Hour,
}

// Millis returns an Interval of ms milliseconds.
func Millis(ms int64) Interval {
	return Interval(strconv.FormatInt(ms, 10))
}

// Duration resolves the interval.
func (i Interval) Duration() (time.Duration, error) {
	if d, ok := unitDurations[i]; ok {
		return d, nil
	}

	s := string(i)
	if s == "" {
		return 0, fmt.Errorf("%w: empty interval", ErrInvalidArgument)
	}

	var d time.Duration
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms > math.MaxInt64/int64(time.Millisecond) {
			return 0, fmt.Errorf("%w: interval %q overflows a duration", ErrInvalidArgument, s)
		}
		d = time.Duration(ms) * time.Millisecond
	} else if parsed, err := time.ParseDuration(s); err == nil {
		d = parsed
	} else {
		return 0, fmt.Errorf("%w: unknown interval %q", ErrInvalidArgument, s)
	}

	if d <= 0 {
		return 0, fmt.Errorf("%w: interval %q must be positive", ErrInvalidArgument, s)
	}
	return d, nil
}
