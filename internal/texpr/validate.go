package texpr

import "fmt"

// Validate walks an expression tree and reports the first parameter
// that has no defined meaning: a weekday outside [0, 6], a week in
// month outside [-1, 5], or a missing child.
// Expressions of unknown types are assumed valid.
func Validate(e Expression) error {
	switch x := e.(type) {
	case nil:
		return invalidParam("nil expression")
	case DayOfWeekExpr:
		return x.validate()
	case DayInMonthExpr:
		return x.validate()
	case RRuleExpr:
		return x.validate()
	case CronExpr:
		if x.schedule == nil {
			return invalidParam("nil cron schedule")
		}
	case SequenceExpr:
		return validateAll(x.members)
	case IntersectionExpr:
		return validateAll(x.members)
	case DifferenceExpr:
		if err := Validate(x.Include); err != nil {
			return fmt.Errorf("include: %w", err)
		}
		if err := Validate(x.Exclude); err != nil {
			return fmt.Errorf("exclude: %w", err)
		}
	}
	return nil
}

func validateAll(members []Expression) error {
	for i, m := range members {
		if err := Validate(m); err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
	}
	return nil
}
