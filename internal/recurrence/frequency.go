package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidScheduleDefinition = errors.New("invalid schedule definition")
	ErrUnsupportedFrequency      = errors.New("unsupported frequency")
)

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// LastDayMarker is the monthly detail value meaning "last day of the month".
const LastDayMarker = "last"

func ParseFrequency(raw string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(raw))); f {
	case Daily, Weekly, Monthly, Yearly:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFrequency, raw)
	}
}

// Detail is the frequency-specific part of a schedule. Exactly one of
// DailyDetail, WeeklyDetail, MonthlyDetail or YearlyDetail.
type Detail interface {
	Frequency() Frequency
	String() string
}

type DailyDetail struct{}

func (DailyDetail) Frequency() Frequency { return Daily }
func (DailyDetail) String() string       { return "" }

// WeekdaySet is a bit set of time.Weekday values, Sunday = bit 0.
type WeekdaySet uint8

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

func (s WeekdaySet) Add(d time.Weekday) WeekdaySet { return s | 1<<uint(d) }
func (s WeekdaySet) Has(d time.Weekday) bool       { return s&(1<<uint(d)) != 0 }
func (s WeekdaySet) Empty() bool                   { return s == 0 }

func (s WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

type WeeklyDetail struct {
	Weekdays WeekdaySet
}

func (WeeklyDetail) Frequency() Frequency { return Weekly }

func (w WeeklyDetail) String() string {
	days := w.Weekdays.Days()
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

type MonthlyDetail struct {
	Day     int
	LastDay bool
}

func (MonthlyDetail) Frequency() Frequency { return Monthly }

func (m MonthlyDetail) String() string {
	if m.LastDay {
		return LastDayMarker
	}
	return strconv.Itoa(m.Day)
}

type YearlyDetail struct {
	Month time.Month
	Day   int
}

func (YearlyDetail) Frequency() Frequency { return Yearly }

func (y YearlyDetail) String() string {
	return fmt.Sprintf("%02d-%02d", int(y.Month), y.Day)
}

// ParseDetail turns the boundary string representation into a typed Detail.
//
//	daily:   ""
//	weekly:  "1,3,5"   weekday numbers, Sunday = 0
//	monthly: "15" or "last"
//	yearly:  "03-15"   month-day
func ParseDetail(freq Frequency, raw string) (Detail, error) {
	raw = strings.TrimSpace(raw)
	switch freq {
	case Daily:
		return DailyDetail{}, nil
	case Weekly:
		return parseWeekly(raw)
	case Monthly:
		return parseMonthly(raw)
	case Yearly:
		return parseYearly(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, freq)
	}
}

func parseWeekly(raw string) (Detail, error) {
	var set WeekdaySet
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("%w: weekday %q out of range 0-6", ErrInvalidScheduleDefinition, part)
		}
		set = set.Add(time.Weekday(n))
	}
	if set.Empty() {
		return nil, fmt.Errorf("%w: weekly schedule needs at least one weekday", ErrInvalidScheduleDefinition)
	}
	return WeeklyDetail{Weekdays: set}, nil
}

func parseMonthly(raw string) (Detail, error) {
	if strings.EqualFold(raw, LastDayMarker) {
		return MonthlyDetail{LastDay: true}, nil
	}
	day, err := strconv.Atoi(raw)
	if err != nil || day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: monthly day %q must be 1-31 or %q", ErrInvalidScheduleDefinition, raw, LastDayMarker)
	}
	return MonthlyDetail{Day: day}, nil
}

func parseYearly(raw string) (Detail, error) {
	parts := strings.Split(raw, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: yearly detail %q must be MM-DD", ErrInvalidScheduleDefinition, raw)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: yearly month %q must be 1-12", ErrInvalidScheduleDefinition, parts[0])
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil || day < 1 || day > maxDayOfMonth(time.Month(month)) {
		return nil, fmt.Errorf("%w: yearly day %q invalid for month %d", ErrInvalidScheduleDefinition, parts[1], month)
	}
	return YearlyDetail{Month: time.Month(month), Day: day}, nil
}

// maxDayOfMonth is the largest day a month can ever have (February counts 29).
func maxDayOfMonth(m time.Month) int {
	return daysIn(2024, m)
}

type Period string

const (
	AM Period = "am"
	PM Period = "pm"
)

func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case AM, PM:
		return p, nil
	default:
		return "", fmt.Errorf("%w: period %q must be am or pm", ErrInvalidScheduleDefinition, raw)
	}
}

// TimeOfDay is a 12-hour clock trigger time.
type TimeOfDay struct {
	Hour   int
	Minute int
	Period Period
}

func (t TimeOfDay) Validate() error {
	if t.Hour < 1 || t.Hour > 12 {
		return fmt.Errorf("%w: hour %d must be 1-12", ErrInvalidScheduleDefinition, t.Hour)
	}
	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: minute %d must be 0-59", ErrInvalidScheduleDefinition, t.Minute)
	}
	if t.Period != AM && t.Period != PM {
		return fmt.Errorf("%w: period %q must be am or pm", ErrInvalidScheduleDefinition, t.Period)
	}
	return nil
}

// Hour24 converts to a 24-hour clock: 12am is 0, 12pm stays 12.
func (t TimeOfDay) Hour24() int {
	h := t.Hour % 12
	if t.Period == PM {
		h += 12
	}
	return h
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%d:%02d%s", t.Hour, t.Minute, t.Period)
}

// Definition is everything the calculator needs to know about a schedule.
type Definition struct {
	Frequency Frequency
	Interval  int
	Detail    Detail
	Time      TimeOfDay
	StartDate *time.Time
	EndDate   *time.Time
}

func (d Definition) Validate() error {
	switch d.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFrequency, d.Frequency)
	}
	if d.Interval < 0 {
		return fmt.Errorf("%w: interval %d must be positive", ErrInvalidScheduleDefinition, d.Interval)
	}
	if d.Detail == nil {
		if d.Frequency != Daily {
			return fmt.Errorf("%w: %s schedule has no detail", ErrInvalidScheduleDefinition, d.Frequency)
		}
	} else if d.Detail.Frequency() != d.Frequency {
		return fmt.Errorf("%w: %s detail on a %s schedule", ErrInvalidScheduleDefinition, d.Detail.Frequency(), d.Frequency)
	}
	if w, ok := d.Detail.(WeeklyDetail); ok && w.Weekdays.Empty() {
		return fmt.Errorf("%w: weekly schedule needs at least one weekday", ErrInvalidScheduleDefinition)
	}
	if d.StartDate != nil && d.EndDate != nil && d.EndDate.Before(*d.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidScheduleDefinition)
	}
	return d.Time.Validate()
}

func (d Definition) interval() int {
	if d.Interval < 1 {
		return 1
	}
	return d.Interval
}
