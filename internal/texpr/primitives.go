package texpr

import (
	"fmt"
	"time"

	"tempex/internal/dates"
)

// LastWeek selects the last occurrence of a weekday in the month.
const LastWeek = -1

// DayOfWeekExpr matches every date falling on Weekday.
type DayOfWeekExpr struct {
	Weekday time.Weekday
}

// DayOfWeek matches dates on the given weekday, 0 (Sunday) to 6 (Saturday).
func DayOfWeek(weekday time.Weekday) DayOfWeekExpr {
	return DayOfWeekExpr{Weekday: weekday}
}

func (e DayOfWeekExpr) Includes(d time.Time) (bool, error) {
	if err := dates.CheckUTC(d); err != nil {
		return false, err
	}
	if err := e.validate(); err != nil {
		return false, err
	}
	return d.Weekday() == e.Weekday, nil
}

func (e DayOfWeekExpr) validate() error {
	return checkWeekday(e.Weekday)
}

func (e DayOfWeekExpr) String() string {
	return fmt.Sprintf("dayOfWeek(%s)", weekdayName(e.Weekday))
}

// DayInMonthExpr matches one weekday in one week of the month.
type DayInMonthExpr struct {
	Weekday time.Weekday
	// Week is 0 for the first occurrence of Weekday in the month, 1 for
	// the second and so on, or LastWeek for the last occurrence.
	Week int
}

// DayInMonth matches e.g. the second Tuesday (DayInMonth(2, 1)) or the
// last Friday (DayInMonth(5, LastWeek)) of every month.
func DayInMonth(weekday time.Weekday, week int) DayInMonthExpr {
	return DayInMonthExpr{Weekday: weekday, Week: week}
}

func (e DayInMonthExpr) Includes(d time.Time) (bool, error) {
	if err := dates.CheckUTC(d); err != nil {
		return false, err
	}
	if err := e.validate(); err != nil {
		return false, err
	}
	return d.Weekday() == e.Weekday && e.weekMatches(d), nil
}

// weekMatches counts whole weeks from the start of the month, or from
// its end for LastWeek. Calendar week boundaries play no part.
func (e DayInMonthExpr) weekMatches(d time.Time) bool {
	if e.Week >= 0 {
		return (d.Day()-1)/7 == e.Week
	}
	return (daysInMonth(d)-d.Day())/7 == e.Week+1
}

func (e DayInMonthExpr) validate() error {
	if err := checkWeekday(e.Weekday); err != nil {
		return err
	}
	if e.Week < LastWeek || e.Week > 5 {
		return invalidParam("week in month %d out of range [-1, 5]", e.Week)
	}
	return nil
}

func (e DayInMonthExpr) String() string {
	if e.Week == LastWeek {
		return fmt.Sprintf("dayInMonth(%s, last)", weekdayName(e.Weekday))
	}
	return fmt.Sprintf("dayInMonth(%s, %d)", weekdayName(e.Weekday), e.Week)
}

// RangeInYearExpr matches a window of days that repeats every year.
type RangeInYearExpr struct {
	StartMonth time.Month
	StartDay   int
	EndMonth   time.Month
	EndDay     int
}

// RangeInYear matches from startMonth/startDay up to but excluding
// endMonth/endDay.
//
// When the months differ the window covers the rest of the start month
// from startDay and the end month before endDay, plus every month in
// between. So RangeInYear(3, 1, 4, 1) is all of March. Months are only
// compared, never range-checked: RangeInYear(12, 1, 13, 1) is all of
// December.
func RangeInYear(startMonth time.Month, startDay int, endMonth time.Month, endDay int) RangeInYearExpr {
	return RangeInYearExpr{
		StartMonth: startMonth,
		StartDay:   startDay,
		EndMonth:   endMonth,
		EndDay:     endDay,
	}
}

func (e RangeInYearExpr) Includes(d time.Time) (bool, error) {
	if err := dates.CheckUTC(d); err != nil {
		return false, err
	}

	month, day := d.Month(), d.Day()
	if e.StartMonth == e.EndMonth {
		return month == e.StartMonth && e.StartDay <= day && day < e.EndDay, nil
	}
	return (month > e.StartMonth && month < e.EndMonth) ||
		(month == e.StartMonth && day >= e.StartDay) ||
		(month == e.EndMonth && day < e.EndDay), nil
}

func (e RangeInYearExpr) String() string {
	return fmt.Sprintf("rangeInYear(%d/%d, %d/%d)", int(e.StartMonth), e.StartDay, int(e.EndMonth), e.EndDay)
}

func checkWeekday(w time.Weekday) error {
	if w < time.Sunday || w > time.Saturday {
		return invalidParam("weekday %d out of range [0, 6]", int(w))
	}
	return nil
}

func weekdayName(w time.Weekday) string {
	if checkWeekday(w) != nil {
		return fmt.Sprintf("%d", int(w))
	}
	return w.String()
}

func daysInMonth(d time.Time) int {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
