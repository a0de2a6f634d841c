package texpr

import (
	"iter"
	"time"

	"tempex/internal/dates"
)

// Filter returns the dates in seq that e includes. It stops at the
// first evaluation error and returns no partial result.
func Filter(e Expression, seq iter.Seq[time.Time]) ([]time.Time, error) {
	var out []time.Time
	for d := range seq {
		ok, err := e.Includes(d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Occurrences returns the dates in [start, end) that e includes.
func Occurrences(e Expression, start, end time.Time) ([]time.Time, error) {
	seq, err := dates.RangeSeq(start, end)
	if err != nil {
		return nil, err
	}
	return Filter(e, seq)
}
