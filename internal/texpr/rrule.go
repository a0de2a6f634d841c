package texpr

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"tempex/internal/dates"
)

// RRuleExpr matches days on which an RFC 5545 recurrence rule has at
// least one occurrence.
type RRuleExpr struct {
	rule *rrule.RRule
}

// RRule wraps an already constructed rule. The rule must not be
// modified after it is wrapped.
func RRule(rule *rrule.RRule) RRuleExpr {
	return RRuleExpr{rule: rule}
}

// ParseRRule parses an RRULE value such as "FREQ=MONTHLY;BYDAY=1TU" and
// anchors it at dtstart, which must be UTC.
func ParseRRule(text string, dtstart time.Time) (RRuleExpr, error) {
	if err := dates.CheckUTC(dtstart); err != nil {
		return RRuleExpr{}, fmt.Errorf("rrule dtstart: %w", err)
	}
	r, err := rrule.StrToRRule(text)
	if err != nil {
		return RRuleExpr{}, fmt.Errorf("%w: rrule %q: %v", dates.ErrInvalidArgument, text, err)
	}
	r.DTStart(dtstart)
	return RRuleExpr{rule: r}, nil
}

func (e RRuleExpr) Includes(d time.Time) (bool, error) {
	if err := dates.CheckUTC(d); err != nil {
		return false, err
	}
	if err := e.validate(); err != nil {
		return false, err
	}

	start := dates.Midnight(d)
	occ := e.rule.Between(start, start.Add(dates.Day-time.Second), true)
	return len(occ) > 0, nil
}

func (e RRuleExpr) validate() error {
	if e.rule == nil {
		return invalidParam("nil recurrence rule")
	}
	return nil
}

func (e RRuleExpr) String() string {
	if e.rule == nil {
		return "rrule(nil)"
	}
	return "rrule(" + e.rule.OrigOptions.RRuleString() + ")"
}
