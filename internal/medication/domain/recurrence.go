package domain

import (
	"strings"
	"time"

	"github.com/doseline/doseline/internal/timeutil"
)

// OccursOn reports whether the medication is due on the given calendar
// date in the medication's own timezone. It is a pure function of the
// schedule descriptor and never touches storage.
func OccursOn(med *Medication, date timeutil.Date) bool {
	if med == nil || !med.Active {
		return false
	}

	start := timeutil.DateOf(med.StartDate, time.UTC)
	if date.Before(start) {
		return false
	}
	if med.EndDate != nil {
		end := timeutil.DateOf(*med.EndDate, time.UTC)
		if date.After(end) {
			return false
		}
	}

	switch strings.ToLower(strings.TrimSpace(med.RecurrenceType)) {
	case RecurrenceWeekdays:
		loc := timeutil.ResolveLocation(med.Timezone, "")
		return containsWeekday(med.Weekdays, timeutil.WeekdayOf(date, loc))
	case RecurrenceInterval:
		if med.IntervalDays <= 0 {
			// Broken descriptor: the interval rule cannot match any date.
			// Validation rejects this on write, so it only appears in
			// hand-edited rows.
			return false
		}
		anchor := start
		if med.AnchorDate != nil {
			anchor = timeutil.DateOf(*med.AnchorDate, time.UTC)
		}
		diff := timeutil.DaysBetween(anchor, date)
		if diff < 0 {
			return false
		}
		return diff%med.IntervalDays == 0
	default:
		return true
	}
}

func containsWeekday(names []string, weekday time.Weekday) bool {
	target := strings.ToLower(weekday.String())
	for _, name := range names {
		if strings.ToLower(strings.TrimSpace(name)) == target {
			return true
		}
	}
	return false
}
