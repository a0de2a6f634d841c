// Package dates provides UTC validation and day-spaced date ranges used
// to enumerate candidate dates for temporal expressions.
package dates

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// Day is one full calendar day in UTC.
const Day = 24 * time.Hour

const secondsPerDay = int64(Day / time.Second)

// ErrInvalidArgument is returned whenever a date that must be UTC is not.
var ErrInvalidArgument = errors.New("invalid argument")

// IsUTC reports whether t carries a location literally named "UTC".
// Dates in time.Local or any other zone are not UTC, even when the
// offset happens to be zero.
func IsUTC(t time.Time) bool {
	return t.Location().String() == "UTC"
}

// CheckUTC returns an error wrapping ErrInvalidArgument if t is not UTC.
func CheckUTC(t time.Time) error {
	if !IsUTC(t) {
		return fmt.Errorf("%w: date must be UTC", ErrInvalidArgument)
	}
	return nil
}

// Days returns the number of whole days in [start, end), truncated.
// A negative interval has zero days. Counting in Unix seconds keeps
// intervals longer than time.Duration can hold exact.
func Days(start, end time.Time) int {
	secs := end.Unix() - start.Unix()
	if end.Nanosecond() < start.Nanosecond() {
		secs--
	}
	if secs < 0 {
		return 0
	}
	return int(secs / secondsPerDay)
}

// RangeSeq returns a lazy sequence of start, start+1d, ... excluding end.
//
// Both bounds must be UTC. Alignment is not checked: callers should pass
// midnight instants for intuitive results. Every range over the returned
// sequence starts again from start.
func RangeSeq(start, end time.Time) (iter.Seq[time.Time], error) {
	if !IsUTC(start) || !IsUTC(end) {
		return nil, fmt.Errorf("%w: dates must be UTC", ErrInvalidArgument)
	}

	n := Days(start, end)
	return func(yield func(time.Time) bool) {
		for i := 0; i < n; i++ {
			if !yield(start.AddDate(0, 0, i)) {
				return
			}
		}
	}, nil
}

// Range is the materialized form of RangeSeq.
func Range(start, end time.Time) ([]time.Time, error) {
	seq, err := RangeSeq(start, end)
	if err != nil {
		return nil, err
	}

	out := make([]time.Time, 0, Days(start, end))
	for d := range seq {
		out = append(out, d)
	}
	return out, nil
}

// Midnight truncates t to 00:00 of its day, keeping t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDay parses a YYYY-MM-DD string as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidArgument, s)
	}
	return t, nil
}
