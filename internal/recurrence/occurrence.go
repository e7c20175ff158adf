package recurrence

import (
	"time"

	"github.com/rallyhq/rally/internal/model"
)

// DateLayout is the wire format for calendar dates throughout the store.
const DateLayout = "2006-01-02"

// weekdayIndex maps a time.Weekday onto the Monday-based index stored in
// recurrence_day (0=Monday .. 6=Sunday).
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// daysInMonth returns the number of days in the month containing t.
func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampToMonth returns the date in t's month whose day is day, clamped to
// the month's length. recurrence_day = 31 in a 30-day month lands on the 30th.
func clampToMonth(t time.Time, day int) time.Time {
	if day < 1 {
		day = 1
	}
	if max := daysInMonth(t); day > max {
		day = max
	}
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, time.UTC)
}

// FirstOccurrence returns the earliest occurrence of the template's period
// that contains or follows today. A newly created template must never be
// backdated, so the result is never earlier than today.
func FirstOccurrence(t model.RecurringTemplate, today time.Time) (time.Time, error) {
	switch t.RecurrenceType {
	case model.RecurrenceDaily:
		return today, nil

	case model.RecurrenceWeekly:
		delta := (t.RecurrenceDay - weekdayIndex(today) + 7) % 7
		return today.AddDate(0, 0, delta), nil

	case model.RecurrenceMonthly:
		candidate := clampToMonth(today, t.RecurrenceDay)
		if candidate.Before(today) {
			candidate = clampToMonth(firstOfNextMonth(today), t.RecurrenceDay)
		}
		return candidate, nil
	}
	return time.Time{}, &DataIntegrityError{TemplateID: t.ID, RecurrenceType: string(t.RecurrenceType)}
}

// NextOccurrence returns the first occurrence strictly after the given date.
// A weekly template evaluated on its own weekday advances a full week.
func NextOccurrence(t model.RecurringTemplate, after time.Time) (time.Time, error) {
	switch t.RecurrenceType {
	case model.RecurrenceDaily:
		return after.AddDate(0, 0, 1), nil

	case model.RecurrenceWeekly:
		delta := (t.RecurrenceDay - weekdayIndex(after) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return after.AddDate(0, 0, delta), nil

	case model.RecurrenceMonthly:
		candidate := clampToMonth(after, t.RecurrenceDay)
		if candidate.After(after) {
			return candidate, nil
		}
		// Roll to the next month; December wraps into January of the
		// following year via date normalization.
		return clampToMonth(firstOfNextMonth(after), t.RecurrenceDay), nil
	}
	return time.Time{}, &DataIntegrityError{TemplateID: t.ID, RecurrenceType: string(t.RecurrenceType)}
}

// LastDueOccurrence returns the most recent occurrence at or before today.
// Only used to backfill templates created before last_generated_date existed.
func LastDueOccurrence(t model.RecurringTemplate, today time.Time) (time.Time, error) {
	switch t.RecurrenceType {
	case model.RecurrenceDaily:
		return today, nil

	case model.RecurrenceWeekly:
		delta := (weekdayIndex(today) - t.RecurrenceDay + 7) % 7
		return today.AddDate(0, 0, -delta), nil

	case model.RecurrenceMonthly:
		if today.Day() >= t.RecurrenceDay {
			return clampToMonth(today, t.RecurrenceDay), nil
		}
		lastOfPrevMonth := time.Date(today.Year(), today.Month(), 0, 0, 0, 0, 0, time.UTC)
		return clampToMonth(lastOfPrevMonth, t.RecurrenceDay), nil
	}
	return time.Time{}, &DataIntegrityError{TemplateID: t.ID, RecurrenceType: string(t.RecurrenceType)}
}

func firstOfNextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
