package timeutil

import (
	"fmt"
	"time"
)

// Date is an immutable calendar date with no time-of-day or zone
// attached. It is the unit the recurrence evaluator and the generation
// window iterate over; absolute instants are derived from it per zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf returns the calendar date observed at t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	local := t.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) Before(other Date) bool {
	return d.UTCMidnight().Before(other.UTCMidnight())
}

func (d Date) After(other Date) bool {
	return d.UTCMidnight().After(other.UTCMidnight())
}

func (d Date) Equal(other Date) bool {
	return d == other
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// UTCMidnight returns the date as midnight UTC, the storage form for
// pure calendar dates.
func (d Date) UTCMidnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
// Negative when b precedes a.
func DaysBetween(a, b Date) int {
	return int(b.UTCMidnight().Sub(a.UTCMidnight()) / (24 * time.Hour))
}

// DatesBetween returns every calendar date from `from` through `to`
// inclusive, ascending. Empty when `to` precedes `from`. Each element
// is an independent value; nothing is mutated while iterating.
func DatesBetween(from, to Date) []Date {
	if to.Before(from) {
		return nil
	}
	n := DaysBetween(from, to) + 1
	dates := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, from.AddDays(i))
	}
	return dates
}

func minDate(a, b Date) Date {
	if b.Before(a) {
		return b
	}
	return a
}

func maxDate(a, b Date) Date {
	if b.After(a) {
		return b
	}
	return a
}

// ClampWindow intersects [from, to] with [start, end]. A zero end means
// the window is open-ended on the right.
func ClampWindow(from, to, start, end Date) (Date, Date) {
	lo := maxDate(from, start)
	hi := to
	if !end.IsZero() {
		hi = minDate(to, end)
	}
	return lo, hi
}
