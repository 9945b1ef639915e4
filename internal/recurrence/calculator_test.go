package recurrence

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func ptr(t time.Time) *time.Time { return &t }

func TestCompute_DailyFromLastReference(t *testing.T) {
	ny := mustLoc(t, "America/New_York")
	def := Definition{
		Frequency: Daily,
		Interval:  1,
		Detail:    DailyDetail{},
		Time:      TimeOfDay{Hour: 9, Minute: 0, Period: AM},
	}
	last := time.Date(2024, 8, 15, 13, 0, 0, 0, time.UTC).In(ny)
	now := time.Date(2024, 8, 15, 14, 0, 0, 0, time.UTC).In(ny)

	got, err := Compute(def, &last, nil, now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 8, 16, 13, 0, 0, 0, time.UTC)), "got %s", got.UTC())
}

func TestCompute_DailyInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		last     time.Time
		tod      TimeOfDay
		want     time.Time
	}{
		{
			name:     "interval 3 pm",
			interval: 3,
			last:     time.Date(2024, 1, 30, 8, 15, 0, 0, time.UTC),
			tod:      TimeOfDay{Hour: 5, Minute: 30, Period: PM},
			want:     time.Date(2024, 2, 2, 17, 30, 0, 0, time.UTC),
		},
		{
			name:     "zero interval defaults to one",
			interval: 0,
			last:     time.Date(2024, 12, 31, 8, 0, 0, 0, time.UTC),
			tod:      TimeOfDay{Hour: 12, Minute: 0, Period: AM},
			want:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "noon stays twelve",
			interval: 1,
			last:     time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			tod:      TimeOfDay{Hour: 12, Minute: 45, Period: PM},
			want:     time.Date(2024, 3, 2, 12, 45, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := Definition{Frequency: Daily, Interval: tt.interval, Time: tt.tod}
			got, err := Compute(def, &tt.last, nil, tt.last)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompute_WeeklyNextFriday(t *testing.T) {
	thursday := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)
	require.Equal(t, time.Thursday, thursday.Weekday())

	def := Definition{
		Frequency: Weekly,
		Interval:  1,
		Detail:    WeeklyDetail{Weekdays: NewWeekdaySet(time.Friday)},
		Time:      TimeOfDay{Hour: 9, Minute: 0, Period: AM},
	}
	got, err := Compute(def, nil, nil, thursday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 8, 16, 9, 0, 0, 0, time.UTC), got)
}

func TestCompute_WeeklyPicksEarliestMatchingDay(t *testing.T) {
	def := Definition{
		Frequency: Weekly,
		Detail:    WeeklyDetail{Weekdays: NewWeekdaySet(time.Monday, time.Wednesday)},
		Time:      TimeOfDay{Hour: 7, Minute: 0, Period: AM},
	}
	start := time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC) // Monday
	for i := 0; i < 14; i++ {
		base := start.AddDate(0, 0, i)
		got, err := Compute(def, &base, nil, base)
		require.NoError(t, err)

		assert.True(t, def.Detail.(WeeklyDetail).Weekdays.Has(got.Weekday()))
		assert.True(t, got.After(base))
		for d := base.AddDate(0, 0, 1); StartOfDay(d).Before(StartOfDay(got)); d = d.AddDate(0, 0, 1) {
			assert.False(t, def.Detail.(WeeklyDetail).Weekdays.Has(d.Weekday()), "skipped %s", d)
		}
		assert.LessOrEqual(t, got.Sub(base), WeeklyLookaheadDays*24*time.Hour)
	}
}

func TestCompute_WeeklySameWeekdayMovesAWeek(t *testing.T) {
	friday := time.Date(2024, 8, 16, 9, 0, 0, 0, time.UTC)
	def := Definition{
		Frequency: Weekly,
		Detail:    WeeklyDetail{Weekdays: NewWeekdaySet(time.Friday)},
		Time:      TimeOfDay{Hour: 9, Minute: 0, Period: AM},
	}
	got, err := Compute(def, &friday, nil, friday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 8, 23, 9, 0, 0, 0, time.UTC), got)
}

func TestCompute_Monthly(t *testing.T) {
	tests := []struct {
		name     string
		detail   MonthlyDetail
		interval int
		base     time.Time
		want     time.Time
	}{
		{
			name:     "last day from august 31",
			detail:   MonthlyDetail{LastDay: true},
			interval: 1,
			base:     time.Date(2024, 8, 31, 9, 0, 0, 0, time.UTC),
			want:     time.Date(2024, 9, 30, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "last day of leap february",
			detail:   MonthlyDetail{LastDay: true},
			interval: 1,
			base:     time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC),
			want:     time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "day 31 clamps in april",
			detail:   MonthlyDetail{Day: 31},
			interval: 1,
			base:     time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC),
			want:     time.Date(2024, 4, 30, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "day 30 clamps in non leap february",
			detail:   MonthlyDetail{Day: 30},
			interval: 1,
			base:     time.Date(2023, 1, 30, 9, 0, 0, 0, time.UTC),
			want:     time.Date(2023, 2, 28, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "interval crosses year boundary",
			detail:   MonthlyDetail{Day: 15},
			interval: 3,
			base:     time.Date(2024, 11, 15, 9, 0, 0, 0, time.UTC),
			want:     time.Date(2025, 2, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "interval of fourteen months",
			detail:   MonthlyDetail{Day: 1},
			interval: 14,
			base:     time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC),
			want:     time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := Definition{
				Frequency: Monthly,
				Interval:  tt.interval,
				Detail:    tt.detail,
				Time:      TimeOfDay{Hour: 9, Minute: 0, Period: AM},
			}
			got, err := Compute(def, &tt.base, nil, tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompute_Yearly(t *testing.T) {
	def := Definition{
		Frequency: Yearly,
		Interval:  2,
		Detail:    YearlyDetail{Month: time.March, Day: 15},
		Time:      TimeOfDay{Hour: 4, Minute: 10, Period: PM},
	}
	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	got, err := Compute(def, &base, nil, base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 16, 10, 0, 0, time.UTC), got)
}

func TestCompute_YearlyLeapDayClamps(t *testing.T) {
	def := Definition{
		Frequency: Yearly,
		Interval:  1,
		Detail:    YearlyDetail{Month: time.February, Day: 29},
		Time:      TimeOfDay{Hour: 9, Minute: 0, Period: AM},
	}
	base := time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)
	got, err := Compute(def, &base, nil, base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC), got)
}

func TestCompute_BaseDateSelection(t *testing.T) {
	def := Definition{
		Frequency: Daily,
		Interval:  1,
		Time:      TimeOfDay{Hour: 9, Minute: 0, Period: AM},
		StartDate: ptr(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)),
	}
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("start date when nothing else", func(t *testing.T) {
		got, err := Compute(def, nil, nil, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC), got)
	})

	t.Run("start date wins over older reference", func(t *testing.T) {
		last := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
		got, err := Compute(def, &last, nil, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC), got)
	})

	t.Run("override wins", func(t *testing.T) {
		override := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
		last := time.Date(2024, 9, 20, 9, 0, 0, 0, time.UTC)
		got, err := Compute(def, &last, &override, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 10, 11, 9, 0, 0, 0, time.UTC), got)
	})

	t.Run("now without start date", func(t *testing.T) {
		noStart := def
		noStart.StartDate = nil
		got, err := Compute(noStart, nil, nil, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 8, 2, 9, 0, 0, 0, time.UTC), got)
	})
}

func TestCompute_Errors(t *testing.T) {
	tod := TimeOfDay{Hour: 9, Minute: 0, Period: AM}
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		def  Definition
		want error
	}{
		{"unknown frequency", Definition{Frequency: "hourly", Time: tod}, ErrUnsupportedFrequency},
		{"empty weekday set", Definition{Frequency: Weekly, Detail: WeeklyDetail{}, Time: tod}, ErrInvalidScheduleDefinition},
		{"missing monthly detail", Definition{Frequency: Monthly, Time: tod}, ErrInvalidScheduleDefinition},
		{"mismatched detail", Definition{Frequency: Yearly, Detail: MonthlyDetail{Day: 1}, Time: tod}, ErrInvalidScheduleDefinition},
		{"bad hour", Definition{Frequency: Daily, Time: TimeOfDay{Hour: 13, Period: AM}}, ErrInvalidScheduleDefinition},
		{"negative interval", Definition{Frequency: Daily, Interval: -1, Time: tod}, ErrInvalidScheduleDefinition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.def, nil, nil, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTimeOfDay_Hour24(t *testing.T) {
	assert.Equal(t, 0, TimeOfDay{Hour: 12, Period: AM}.Hour24())
	assert.Equal(t, 12, TimeOfDay{Hour: 12, Period: PM}.Hour24())
	assert.Equal(t, 1, TimeOfDay{Hour: 1, Period: AM}.Hour24())
	assert.Equal(t, 23, TimeOfDay{Hour: 11, Period: PM}.Hour24())
}
