package texpr

import (
	"slices"
	"strings"
	"time"

	"tempex/internal/dates"
)

var errNilMember = invalidParam("nil member expression")

// SequenceExpr is the union of its members.
type SequenceExpr struct {
	members []Expression
}

// Sequence matches a date if any member matches. An empty sequence
// matches nothing.
func Sequence(exprs ...Expression) SequenceExpr {
	return SequenceExpr{members: slices.Clone(exprs)}
}

func (e SequenceExpr) Includes(d time.Time) (bool, error) {
	if err := dates.CheckUTC(d); err != nil {
		return false, err
	}
	for _, m := range e.members {
		if m == nil {
			return false, errNilMember
		}
		ok, err := m.Includes(d)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e SequenceExpr) String() string {
	return "any(" + joinDescribed(e.members) + ")"
}

// IntersectionExpr is the intersection of its members.
type IntersectionExpr struct {
	members []Expression
}

// Intersection matches a date if every member matches. An empty
// intersection matches everything.
func Intersection(exprs ...Expression) IntersectionExpr {
	return IntersectionExpr{members: slices.Clone(exprs)}
}

func (e IntersectionExpr) Includes(d time.Time) (bool, error) {
	if err := dates.CheckUTC(d); err != nil {
		return false, err
	}
	for _, m := range e.members {
		if m == nil {
			return false, errNilMember
		}
		ok, err := m.Includes(d)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e IntersectionExpr) String() string {
	return "all(" + joinDescribed(e.members) + ")"
}

// DifferenceExpr matches Include minus Exclude.
type DifferenceExpr struct {
	Include Expression
	Exclude Expression
}

// Difference matches a date if include matches and exclude does not.
func Difference(include, exclude Expression) DifferenceExpr {
	return DifferenceExpr{Include: include, Exclude: exclude}
}

func (e DifferenceExpr) Includes(d time.Time) (bool, error) {
	if err := dates.CheckUTC(d); err != nil {
		return false, err
	}
	if e.Include == nil || e.Exclude == nil {
		return false, invalidParam("difference needs both operands")
	}

	ok, err := e.Include.Includes(d)
	if err != nil || !ok {
		return false, err
	}
	excluded, err := e.Exclude.Includes(d)
	if err != nil {
		return false, err
	}
	return !excluded, nil
}

func (e DifferenceExpr) String() string {
	return "difference(" + describeOrNil(e.Include) + ", " + describeOrNil(e.Exclude) + ")"
}

func joinDescribed(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = describeOrNil(e)
	}
	return strings.Join(parts, ", ")
}

func describeOrNil(e Expression) string {
	if e == nil {
		return "nil"
	}
	return describe(e)
}
