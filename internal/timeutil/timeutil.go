package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeFormat reports a time-of-day string that is neither
// 24-hour "HH:MM" nor 12-hour "H:MM AM/PM".
var ErrInvalidTimeFormat = errors.New("invalid_time_format")

// ToAbsoluteInstant interprets timeOfDay ("HH:MM") as wall-clock time
// on d in loc and returns the equivalent UTC instant. Local times that
// are skipped or repeated across a DST transition resolve using
// time.Date's standard convention; that is accepted behavior.
func ToAbsoluteInstant(d Date, timeOfDay string, loc *time.Location) (time.Time, error) {
	hour, minute, err := splitTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc).UTC(), nil
}

// WeekdayOf returns the weekday as observed in loc, which near day
// boundaries is not necessarily the weekday in UTC.
func WeekdayOf(d Date, loc *time.Location) time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, loc).Weekday()
}

// StartOfDay returns the UTC instant of 00:00:00 local time on d in loc.
func StartOfDay(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc).UTC()
}

// EndOfDay returns the UTC instant of the last nanosecond of d in loc.
func EndOfDay(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc).AddDate(0, 0, 1).Add(-time.Nanosecond).UTC()
}

// NormalizeTimeOfDay canonicalizes a time-of-day string to 24-hour
// "HH:MM". Accepts "14:00", "8:05", "2:00 PM", "12:00AM".
func NormalizeTimeOfDay(raw string) (string, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return "", ErrInvalidTimeFormat
	}

	meridiem := ""
	switch {
	case strings.HasSuffix(value, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(value, "PM"):
		meridiem = "PM"
	}
	if meridiem != "" {
		value = strings.TrimSpace(strings.TrimSuffix(value, meridiem))
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return "", ErrInvalidTimeFormat
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", ErrInvalidTimeFormat
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", ErrInvalidTimeFormat
	}
	if minute < 0 || minute > 59 {
		return "", ErrInvalidTimeFormat
	}

	switch meridiem {
	case "AM":
		if hour < 1 || hour > 12 {
			return "", ErrInvalidTimeFormat
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return "", ErrInvalidTimeFormat
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour < 0 || hour > 23 {
			return "", ErrInvalidTimeFormat
		}
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

func splitTimeOfDay(timeOfDay string) (int, int, error) {
	normalized, err := NormalizeTimeOfDay(timeOfDay)
	if err != nil {
		return 0, 0, err
	}
	hour, _ := strconv.Atoi(normalized[:2])
	minute, _ := strconv.Atoi(normalized[3:])
	return hour, minute, nil
}

// ResolveLocation loads the named IANA zone, falling back to the
// supplied default and finally UTC when neither resolves.
func ResolveLocation(name, fallback string) *time.Location {
	for _, candidate := range []string{name, fallback} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if loc, err := time.LoadLocation(candidate); err == nil {
			return loc
		}
	}
	return time.UTC
}
