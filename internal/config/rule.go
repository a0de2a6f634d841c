package config

import (
	"errors"
	"fmt"
	"time"

	"tempex/internal/dates"
	"tempex/internal/texpr"
)

// Node is one node of a rule tree in YAML. Exactly one field must be set.
//
//	rule:
//	  difference:
//	    include: {range_in_year: {start_month: 3, start_day: 1, end_month: 4, end_day: 1}}
//	    exclude: {any: [{day_of_week: 0}, {day_of_week: 6}]}
type Node struct {
	DayOfWeek   *int             `yaml:"day_of_week,omitempty" json:"day_of_week,omitempty"`
	DayInMonth  *DayInMonthNode  `yaml:"day_in_month,omitempty" json:"day_in_month,omitempty"`
	RangeInYear *RangeInYearNode `yaml:"range_in_year,omitempty" json:"range_in_year,omitempty"`
	RRule       *RRuleNode       `yaml:"rrule,omitempty" json:"rrule,omitempty"`
	Cron        string           `yaml:"cron,omitempty" json:"cron,omitempty"`
	Any         []Node           `yaml:"any,omitempty" json:"any,omitempty"`
	All         []Node           `yaml:"all,omitempty" json:"all,omitempty"`
	Difference  *DifferenceNode  `yaml:"difference,omitempty" json:"difference,omitempty"`
}

// DayInMonthNode selects a weekday in a week of the month. Week -1
// means the last such weekday.
type DayInMonthNode struct {
	Weekday int `yaml:"weekday" json:"weekday"`
	Week    int `yaml:"week" json:"week"`
}

type RangeInYearNode struct {
	StartMonth int `yaml:"start_month" json:"start_month"`
	StartDay   int `yaml:"start_day" json:"start_day"`
	EndMonth   int `yaml:"end_month" json:"end_month"`
	EndDay     int `yaml:"end_day" json:"end_day"`
}

// RRuleNode is an RFC 5545 RRULE value anchored at a YYYY-MM-DD date.
type RRuleNode struct {
	Rule    string `yaml:"rule" json:"rule"`
	DTStart string `yaml:"dtstart" json:"dtstart"`
}

type DifferenceNode struct {
	Include *Node `yaml:"include" json:"include"`
	Exclude *Node `yaml:"exclude" json:"exclude"`
}

// MarshalYAML keeps empty any/all lists, which omitempty would drop.
func (n Node) MarshalYAML() (any, error) {
	type plain Node
	switch {
	case n.Any != nil && len(n.Any) == 0 && n.kinds() == 1:
		return map[string][]Node{"any": {}}, nil
	case n.All != nil && len(n.All) == 0 && n.kinds() == 1:
		return map[string][]Node{"all": {}}, nil
	}
	return plain(n), nil
}

func (n Node) kinds() int {
	count := 0
	for _, set := range []bool{
		n.DayOfWeek != nil,
		n.DayInMonth != nil,
		n.RangeInYear != nil,
		n.RRule != nil,
		n.Cron != "",
		n.Any != nil,
		n.All != nil,
		n.Difference != nil,
	} {
		if set {
			count++
		}
	}
	return count
}

// Build converts the node and its children into an expression. Parameter
// ranges are not checked here; see texpr.Validate.
func (n Node) Build() (texpr.Expression, error) {
	if k := n.kinds(); k != 1 {
		return nil, fmt.Errorf("rule node must set exactly one kind, got %d", k)
	}

	switch {
	case n.DayOfWeek != nil:
		return texpr.DayOfWeek(time.Weekday(*n.DayOfWeek)), nil

	case n.DayInMonth != nil:
		return texpr.DayInMonth(time.Weekday(n.DayInMonth.Weekday), n.DayInMonth.Week), nil

	case n.RangeInYear != nil:
		r := n.RangeInYear
		return texpr.RangeInYear(time.Month(r.StartMonth), r.StartDay, time.Month(r.EndMonth), r.EndDay), nil

	case n.RRule != nil:
		if n.RRule.DTStart == "" {
			return nil, errors.New("rrule: dtstart is required")
		}
		start, err := dates.ParseDay(n.RRule.DTStart)
		if err != nil {
			return nil, fmt.Errorf("rrule: %w", err)
		}
		return texpr.ParseRRule(n.RRule.Rule, start)

	case n.Cron != "":
		return texpr.ParseCron(n.Cron)

	case n.Any != nil:
		members, err := buildAll(n.Any)
		if err != nil {
			return nil, fmt.Errorf("any: %w", err)
		}
		return texpr.Sequence(members...), nil

	case n.All != nil:
		members, err := buildAll(n.All)
		if err != nil {
			return nil, fmt.Errorf("all: %w", err)
		}
		return texpr.Intersection(members...), nil

	default:
		d := n.Difference
		if d.Include == nil || d.Exclude == nil {
			return nil, errors.New("difference: include and exclude are required")
		}
		include, err := d.Include.Build()
		if err != nil {
			return nil, fmt.Errorf("difference include: %w", err)
		}
		exclude, err := d.Exclude.Build()
		if err != nil {
			return nil, fmt.Errorf("difference exclude: %w", err)
		}
		return texpr.Difference(include, exclude), nil
	}
}

func buildAll(nodes []Node) ([]texpr.Expression, error) {
	out := make([]texpr.Expression, 0, len(nodes))
	for i, child := range nodes {
		e, err := child.Build()
		if err != nil {
			return nil, fmt.Errorf("#%d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
