package texpr

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"tempex/internal/dates"
)

// CronExpr matches days on which a cron schedule fires at least once.
type CronExpr struct {
	spec     string
	schedule cron.Schedule
}

// Cron wraps a parsed cron schedule.
func Cron(schedule cron.Schedule) CronExpr {
	return CronExpr{schedule: schedule}
}

// ParseCron parses a standard 5-field spec such as "0 9 * * 1-5".
// Without a TZ= prefix the spec is evaluated in UTC.
func ParseCron(spec string) (CronExpr, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return CronExpr{}, fmt.Errorf("%w: cron %q: %v", dates.ErrInvalidArgument, spec, err)
	}
	return CronExpr{spec: spec, schedule: s}, nil
}

func (e CronExpr) Includes(d time.Time) (bool, error) {
	if err := dates.CheckUTC(d); err != nil {
		return false, err
	}
	if e.schedule == nil {
		return false, invalidParam("nil cron schedule")
	}

	// Next is strictly after its argument, so step back one second to
	// let a midnight activation count.
	start := dates.Midnight(d)
	next := e.schedule.Next(start.Add(-time.Second))
	return !next.IsZero() && next.Before(start.Add(dates.Day)), nil
}

func (e CronExpr) String() string {
	if e.spec == "" {
		return "cron(schedule)"
	}
	return "cron(" + e.spec + ")"
}
