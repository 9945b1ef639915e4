package recurrence

import (
	"fmt"
	"time"
)

// WeeklyLookaheadDays bounds the forward scan for the next matching weekday.
const WeeklyLookaheadDays = 14

// Compute returns the next occurrence for def.
//
// The base date is overrideBase when given; otherwise the later of lastReference
// and the start date (or the epoch); otherwise the start date or now. Compute never
// reads the system clock and works in the location of the base instant, so callers
// convert instants into the schedule's zone first.
//
// Weekly schedules do not apply Interval here: multi-week spacing comes from the
// caller feeding the real previous occurrence back as lastReference.
func Compute(def Definition, lastReference, overrideBase *time.Time, now time.Time) (time.Time, error) {
	if err := def.Validate(); err != nil {
		return time.Time{}, err
	}

	base := baseDate(def, lastReference, overrideBase, now)
	base = atTimeOfDay(base, def.Time)
	interval := def.interval()

	switch detail := detailOrDaily(def).(type) {
	case DailyDetail:
		return base.AddDate(0, 0, interval), nil

	case WeeklyDetail:
		for i := 1; i <= WeeklyLookaheadDays; i++ {
			candidate := base.AddDate(0, 0, i)
			if detail.Weekdays.Has(candidate.Weekday()) {
				return candidate, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: no matching weekday within %d days", ErrInvalidScheduleDefinition, WeeklyLookaheadDays)

	case MonthlyDetail:
		year, month := addMonths(base.Year(), base.Month(), interval)
		day := detail.Day
		if detail.LastDay {
			day = daysIn(year, month)
		}
		return onDay(base, year, month, day), nil

	case YearlyDetail:
		return onDay(base, base.Year()+interval, detail.Month, detail.Day), nil

	default:
		return time.Time{}, fmt.Errorf("%w: %T", ErrUnsupportedFrequency, detail)
	}
}

func baseDate(def Definition, lastReference, overrideBase *time.Time, now time.Time) time.Time {
	if overrideBase != nil {
		return *overrideBase
	}
	if lastReference != nil {
		floor := time.Unix(0, 0).In(lastReference.Location())
		if def.StartDate != nil {
			floor = *def.StartDate
		}
		if lastReference.After(floor) {
			return *lastReference
		}
		return floor.In(lastReference.Location())
	}
	if def.StartDate != nil {
		return *def.StartDate
	}
	return now
}

func detailOrDaily(def Definition) Detail {
	if def.Detail == nil {
		return DailyDetail{}
	}
	return def.Detail
}

func atTimeOfDay(t time.Time, tod TimeOfDay) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), tod.Hour24(), tod.Minute, 0, 0, t.Location())
}

// onDay places ref's wall clock on year/month/day, clamping the day to the end of
// the month so day 31 in April lands on the 30th, same as the "last" marker.
func onDay(ref time.Time, year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, ref.Hour(), ref.Minute(), 0, 0, ref.Location())
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	m := int(month) - 1 + n
	year += m / 12
	m %= 12
	if m < 0 {
		m += 12
		year--
	}
	return year, time.Month(m + 1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EndOfDay is the last second of t's calendar day, used for inclusive end dates.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// StartOfDay is midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
