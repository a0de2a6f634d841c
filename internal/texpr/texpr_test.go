package texpr_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempex/internal/dates"
	"tempex/internal/texpr"
)

func utc(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func local(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func includes(t *testing.T, e texpr.Expression, d time.Time) bool {
	t.Helper()
	ok, err := e.Includes(d)
	require.NoError(t, err)
	return ok
}

func Test_DayOfWeek(t *testing.T) {
	tuesday := texpr.DayOfWeek(time.Tuesday)

	assert.True(t, includes(t, tuesday, utc(2015, 12, 1)))
	assert.False(t, includes(t, tuesday, utc(2015, 12, 2)))
	assert.True(t, includes(t, texpr.DayOfWeek(0), utc(2015, 6, 7)))

	_, err := tuesday.Includes(local(2015, 12, 1))
	assert.ErrorIs(t, err, dates.ErrInvalidArgument)
}

func Test_DayInMonth(t *testing.T) {
	tests := []struct {
		name    string
		weekday time.Weekday
		week    int
		date    time.Time
		want    bool
	}{
		{"first_tuesday", time.Tuesday, 0, utc(2015, 12, 1), true},
		{"second_tuesday_is_not_first", time.Tuesday, 0, utc(2015, 12, 8), false},
		{"second_tuesday", time.Tuesday, 1, utc(2015, 12, 8), true},
		{"fifth_tuesday", time.Tuesday, 4, utc(2015, 12, 29), true},
		{"wrong_weekday", time.Wednesday, 0, utc(2015, 12, 1), false},
		{"last_tuesday", time.Tuesday, texpr.LastWeek, utc(2015, 12, 29), true},
		{"penultimate_tuesday_is_not_last", time.Tuesday, texpr.LastWeek, utc(2015, 12, 22), false},
		{"last_friday", time.Friday, texpr.LastWeek, utc(2015, 12, 25), true},
		{"last_sunday_of_leap_february", time.Sunday, texpr.LastWeek, utc(2004, 2, 29), true},
		{"last_sunday_february", time.Sunday, texpr.LastWeek, utc(2015, 2, 22), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, includes(t, texpr.DayInMonth(tt.weekday, tt.week), tt.date))
		})
	}
}

func Test_DayInMonth_RequiresUTC(t *testing.T) {
	_, err := texpr.DayInMonth(2, 0).Includes(local(2015, 12, 1))
	assert.ErrorIs(t, err, dates.ErrInvalidArgument)
}

func Test_DayInMonth_RejectsUndefinedWeek(t *testing.T) {
	for _, week := range []int{-2, 6} {
		_, err := texpr.DayInMonth(time.Tuesday, week).Includes(utc(2015, 12, 1))
		assert.ErrorIs(t, err, dates.ErrInvalidArgument, "week %d", week)
	}
}

func Test_RangeInYear(t *testing.T) {
	t.Run("month_strictly_between", func(t *testing.T) {
		assert.True(t, includes(t, texpr.RangeInYear(1, 1, 4, 1), utc(2015, 2, 22)))
	})

	t.Run("start_month_from_start_day", func(t *testing.T) {
		e := texpr.RangeInYear(1, 15, 4, 10)
		assert.True(t, includes(t, e, utc(2015, 1, 22)))
		assert.True(t, includes(t, e, utc(2015, 1, 31)))
		assert.False(t, includes(t, e, utc(2015, 1, 12)))
	})

	t.Run("end_month_before_end_day", func(t *testing.T) {
		e := texpr.RangeInYear(1, 15, 4, 10)
		assert.True(t, includes(t, e, utc(2015, 4, 1)))
		assert.True(t, includes(t, e, utc(2015, 4, 9)))
		assert.False(t, includes(t, e, utc(2015, 4, 10)))
		assert.False(t, includes(t, e, utc(2015, 5, 1)))
		assert.False(t, includes(t, e, utc(2015, 12, 31)))
	})

	t.Run("same_month_is_half_open", func(t *testing.T) {
		e := texpr.RangeInYear(4, 5, 4, 20)
		for day := 1; day <= 30; day++ {
			want := day >= 5 && day < 20
			assert.Equal(t, want, includes(t, e, utc(2015, 4, day)), "day %d", day)
		}
		assert.False(t, includes(t, e, utc(2015, 5, 10)))
	})

	t.Run("months_are_compared_not_checked", func(t *testing.T) {
		e := texpr.RangeInYear(12, 1, 13, 1)
		require.NoError(t, texpr.Validate(e))

		got, err := texpr.Occurrences(e, utc(2015, 1, 1), utc(2016, 1, 1))
		require.NoError(t, err)
		require.Len(t, got, 31)
		assert.Equal(t, utc(2015, 12, 1), got[0])
		assert.Equal(t, utc(2015, 12, 31), got[30])

		assert.False(t, includes(t, texpr.RangeInYear(0, 1, 1, 1), utc(2015, 1, 1)))
	})

	t.Run("requires_utc", func(t *testing.T) {
		_, err := texpr.RangeInYear(1, 1, 4, 1).Includes(local(2015, 2, 22))
		assert.ErrorIs(t, err, dates.ErrInvalidArgument)
	})
}

func Test_Sequence(t *testing.T) {
	firstTueOrLastFri := texpr.Sequence(texpr.DayInMonth(2, 0), texpr.DayInMonth(5, texpr.LastWeek))

	assert.True(t, includes(t, firstTueOrLastFri, utc(2015, 12, 1)))
	assert.True(t, includes(t, firstTueOrLastFri, utc(2015, 12, 25)))
	assert.False(t, includes(t, firstTueOrLastFri, utc(2015, 12, 8)))
	assert.False(t, includes(t, firstTueOrLastFri, utc(2015, 12, 18)))

	assert.False(t, includes(t, texpr.Sequence(), utc(2015, 12, 1)))
}

func Test_Intersection(t *testing.T) {
	tueOrFriInMarch := texpr.Intersection(
		texpr.Sequence(texpr.DayOfWeek(2), texpr.DayOfWeek(5)),
		texpr.RangeInYear(3, 1, 3, 31),
	)

	got, err := texpr.Occurrences(tueOrFriInMarch, utc(2015, 1, 1), utc(2016, 1, 1))
	require.NoError(t, err)

	want := []time.Time{
		utc(2015, 3, 3), utc(2015, 3, 6), utc(2015, 3, 10), utc(2015, 3, 13),
		utc(2015, 3, 17), utc(2015, 3, 20), utc(2015, 3, 24), utc(2015, 3, 27),
	}
	assert.Equal(t, want, got)

	assert.True(t, includes(t, texpr.Intersection(), utc(2015, 12, 1)))
}

func Test_Difference_WeekdaysInMarch(t *testing.T) {
	weekdaysInMarch := texpr.Difference(
		texpr.RangeInYear(3, 1, 4, 1),
		texpr.Sequence(texpr.DayOfWeek(0), texpr.DayOfWeek(6)),
	)

	march, err := dates.Range(utc(2015, 3, 1), utc(2015, 4, 1))
	require.NoError(t, err)

	var got []time.Time
	for _, d := range march {
		if includes(t, weekdaysInMarch, d) {
			got = append(got, d)
		}
	}

	require.Len(t, got, 22)
	assert.Equal(t, utc(2015, 3, 2), got[0])
	assert.Equal(t, utc(2015, 3, 31), got[len(got)-1])
	for _, d := range got {
		assert.NotEqual(t, time.Saturday, d.Weekday())
		assert.NotEqual(t, time.Sunday, d.Weekday())
	}
}

func Test_Combinators_RequireUTC(t *testing.T) {
	always := texpr.Func(func(time.Time) (bool, error) { return true, nil })

	tests := []struct {
		name string
		expr texpr.Expression
	}{
		{"sequence", texpr.Sequence(always)},
		{"empty_sequence", texpr.Sequence()},
		{"intersection", texpr.Intersection(always)},
		{"empty_intersection", texpr.Intersection()},
		{"difference", texpr.Difference(always, texpr.Sequence())},
		{"nested", texpr.Difference(texpr.Intersection(texpr.DayOfWeek(1)), texpr.Sequence())},
		{"func", always},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.expr.Includes(local(2015, 12, 1))
			assert.ErrorIs(t, err, dates.ErrInvalidArgument)
			assert.False(t, ok)
		})
	}
}

func Test_Combinators_PropagateMemberErrors(t *testing.T) {
	bad := texpr.DayOfWeek(9)

	_, err := texpr.Sequence(texpr.DayOfWeek(3), bad).Includes(utc(2015, 12, 1))
	assert.ErrorIs(t, err, dates.ErrInvalidArgument)

	_, err = texpr.Intersection(bad).Includes(utc(2015, 12, 1))
	assert.ErrorIs(t, err, dates.ErrInvalidArgument)

	_, err = texpr.Difference(texpr.Intersection(), bad).Includes(utc(2015, 12, 1))
	assert.ErrorIs(t, err, dates.ErrInvalidArgument)

	_, err = texpr.Sequence(nil).Includes(utc(2015, 12, 1))
	assert.ErrorIs(t, err, dates.ErrInvalidArgument)
}

func Test_Idempotence(t *testing.T) {
	e := texpr.Sequence(texpr.DayInMonth(2, 0), texpr.DayInMonth(5, texpr.LastWeek))
	d := utc(2015, 12, 25)

	for i := 0; i < 100; i++ {
		assert.True(t, includes(t, e, d))
	}
}

func Test_ConcurrentEvaluation(t *testing.T) {
	e := texpr.Difference(
		texpr.RangeInYear(3, 1, 4, 1),
		texpr.Sequence(texpr.DayOfWeek(0), texpr.DayOfWeek(6)),
	)

	var wg sync.WaitGroup
	counts := make([]int, 8)
	for i := range counts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := texpr.Occurrences(e, utc(2015, 3, 1), utc(2015, 4, 1))
			if err == nil {
				counts[i] = len(got)
			}
		}()
	}
	wg.Wait()

	for _, n := range counts {
		assert.Equal(t, 22, n)
	}
}

func Test_Validate(t *testing.T) {
	valid := texpr.Difference(
		texpr.Intersection(texpr.RangeInYear(3, 1, 4, 1), texpr.DayInMonth(1, texpr.LastWeek)),
		texpr.Sequence(texpr.DayOfWeek(0), texpr.DayOfWeek(6)),
	)
	assert.NoError(t, texpr.Validate(valid))

	invalid := []texpr.Expression{
		nil,
		texpr.DayOfWeek(7),
		texpr.DayOfWeek(-1),
		texpr.DayInMonth(2, -2),
		texpr.Sequence(texpr.DayOfWeek(1), nil),
		texpr.Intersection(texpr.Sequence(texpr.DayInMonth(8, 0))),
		texpr.Difference(texpr.DayOfWeek(1), nil),
		texpr.RRule(nil),
	}
	for _, e := range invalid {
		assert.ErrorIs(t, texpr.Validate(e), dates.ErrInvalidArgument, "%v", e)
	}
}

func Test_Filter_NoPartialResult(t *testing.T) {
	seq := func(yield func(time.Time) bool) {
		_ = yield(utc(2015, 12, 1)) && yield(local(2015, 12, 2))
	}

	got, err := texpr.Filter(texpr.DayOfWeek(2), seq)
	assert.ErrorIs(t, err, dates.ErrInvalidArgument)
	assert.Nil(t, got)
}

func Test_Occurrences_RequiresUTC(t *testing.T) {
	_, err := texpr.Occurrences(texpr.DayOfWeek(2), local(2015, 12, 1), utc(2015, 12, 15))
	assert.ErrorIs(t, err, dates.ErrInvalidArgument)
}

func Test_String(t *testing.T) {
	e := texpr.Difference(
		texpr.RangeInYear(3, 1, 4, 1),
		texpr.Sequence(texpr.DayOfWeek(0), texpr.DayInMonth(6, texpr.LastWeek)),
	)
	assert.Equal(t, "difference(rangeInYear(3/1, 4/1), any(dayOfWeek(Sunday), dayInMonth(Saturday, last)))", e.String())
	assert.Equal(t, "all()", texpr.Intersection().String())
}
