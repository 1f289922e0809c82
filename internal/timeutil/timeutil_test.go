package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"14:00", "14:00", false},
		{"8:05", "08:05", false},
		{"00:00", "00:00", false},
		{"23:59", "23:59", false},
		{"2:00 PM", "14:00", false},
		{"2:00PM", "14:00", false},
		{"12:00 AM", "00:00", false},
		{"12:30 PM", "12:30", false},
		{" 9:15 am ", "09:15", false},
		{"24:00", "", true},
		{"13:00 PM", "", true},
		{"0:00 AM", "", true},
		{"14:60", "", true},
		{"14", "", true},
		{"", "", true},
		{"noon", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeTimeOfDay(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidTimeFormat, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestToAbsoluteInstant(t *testing.T) {
	ba, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	got, err := ToAbsoluteInstant(NewDate(2024, time.March, 10), "08:00", ba)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 10, 11, 0, 0, 0, time.UTC), got)

	got, err = ToAbsoluteInstant(NewDate(2024, time.March, 10), "20:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 10, 20, 0, 0, 0, time.UTC), got)

	_, err = ToAbsoluteInstant(NewDate(2024, time.March, 10), "whenever", time.UTC)
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestToAbsoluteInstantAcrossSpringForward(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2024-03-10 is the US spring-forward date: EST before, EDT after.
	before, err := ToAbsoluteInstant(NewDate(2024, time.March, 9), "08:00", ny)
	require.NoError(t, err)
	after, err := ToAbsoluteInstant(NewDate(2024, time.March, 11), "08:00", ny)
	require.NoError(t, err)

	assert.Equal(t, 13, before.Hour(), "EST is UTC-5")
	assert.Equal(t, 12, after.Hour(), "EDT is UTC-4")
}

func TestWeekdayOf(t *testing.T) {
	apia, err := time.LoadLocation("Pacific/Apia")
	require.NoError(t, err)

	d := NewDate(2024, time.January, 1)
	assert.Equal(t, time.Monday, WeekdayOf(d, time.UTC))
	assert.Equal(t, time.Monday, WeekdayOf(d, apia))
}

func TestStartAndEndOfDay(t *testing.T) {
	ba, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	d := NewDate(2024, time.June, 15)
	start := StartOfDay(d, ba)
	end := EndOfDay(d, ba)

	assert.Equal(t, time.Date(2024, time.June, 15, 3, 0, 0, 0, time.UTC), start)
	assert.True(t, end.After(start))
	assert.Equal(t, 24*time.Hour-time.Nanosecond, end.Sub(start))
}

func TestDatesBetween(t *testing.T) {
	from := NewDate(2024, time.February, 27)
	to := NewDate(2024, time.March, 2)

	dates := DatesBetween(from, to)
	require.Len(t, dates, 5, "2024 is a leap year")
	assert.Equal(t, NewDate(2024, time.February, 29), dates[2])
	assert.Equal(t, to, dates[4])

	assert.Nil(t, DatesBetween(to, from))
	assert.Equal(t, []Date{from}, DatesBetween(from, from))
}

func TestDaysBetween(t *testing.T) {
	a := NewDate(2024, time.January, 1)
	assert.Equal(t, 0, DaysBetween(a, a))
	assert.Equal(t, 31, DaysBetween(a, NewDate(2024, time.February, 1)))
	assert.Equal(t, -1, DaysBetween(a, NewDate(2023, time.December, 31)))
}

func TestClampWindow(t *testing.T) {
	from := NewDate(2024, time.January, 1)
	to := NewDate(2024, time.January, 31)

	lo, hi := ClampWindow(from, to, NewDate(2024, time.January, 10), Date{})
	assert.Equal(t, NewDate(2024, time.January, 10), lo)
	assert.Equal(t, to, hi)

	lo, hi = ClampWindow(from, to, NewDate(2023, time.December, 1), NewDate(2024, time.January, 15))
	assert.Equal(t, from, lo)
	assert.Equal(t, NewDate(2024, time.January, 15), hi)
}

func TestResolveLocation(t *testing.T) {
	assert.Equal(t, "America/New_York", ResolveLocation("America/New_York", "").String())
	assert.Equal(t, "America/Sao_Paulo", ResolveLocation("", "America/Sao_Paulo").String())
	assert.Equal(t, time.UTC, ResolveLocation("Not/AZone", "AlsoNot/AZone"))
	assert.Equal(t, time.UTC, ResolveLocation("", ""))
}
