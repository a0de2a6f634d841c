// Package texpr implements temporal expressions: predicates over UTC
// dates that can be composed into schedule rules such as "the first
// Tuesday of every month" or "weekdays in March".
//
// Every expression is an immutable value. Includes re-checks that the
// candidate is UTC on every call, so one expression can be reused
// safely across dates and goroutines.
package texpr

import (
	"fmt"
	"time"

	"tempex/internal/dates"
)

// Expression is a predicate over a single UTC date.
type Expression interface {
	// Includes reports whether d is part of the schedule. It returns an
	// error wrapping dates.ErrInvalidArgument if d is not UTC.
	Includes(d time.Time) (bool, error)
}

// Func adapts a plain function to an Expression. The UTC check runs
// before the function is called.
type Func func(d time.Time) (bool, error)

func (f Func) Includes(d time.Time) (bool, error) {
	if err := dates.CheckUTC(d); err != nil {
		return false, err
	}
	return f(d)
}

func (f Func) String() string {
	return "func"
}

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{dates.ErrInvalidArgument}, args...)...)
}

func describe(e Expression) string {
	if s, ok := e.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", e)
}
