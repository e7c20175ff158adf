package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/rallyhq/rally/internal/calendar"
)

// maxOccurrencesPerEvent caps expansion so a pathological RRULE cannot
// flood a cycle. Well inside any real 7-day window.
const maxOccurrencesPerEvent = 1000

// ExpandOccurrences resolves the parsed events into concrete occurrences
// inside the window. ICS feeds are static documents, so RRULE expansion
// with EXDATE removal and RECURRENCE-ID overrides happens here on the
// client side instead of on a server.
func ExpandOccurrences(events []ParsedEvent, w calendar.Window) []calendar.RawEvent {
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var uidOrder []string

	for _, ev := range events {
		if ev.IsOverride() {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, ok := baseByUID[ev.UID]; !ok {
			uidOrder = append(uidOrder, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	var out []calendar.RawEvent
	for _, uid := range uidOrder {
		for _, ev := range baseByUID[uid] {
			out = append(out, expandEvent(ev, overridesByUID[uid], w)...)
		}
	}
	return out
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, w calendar.Window) []calendar.RawEvent {
	if ev.RawRRule == "" {
		return expandSingle(ev, overrides, w)
	}
	return expandRecurring(ev, overrides, w)
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, w calendar.Window) []calendar.RawEvent {
	start, end := ev.Raw.Start, ev.Raw.End
	raw := ev.Raw

	if o, ok := overrideForStart(overrides, start); ok {
		raw = o.Raw
		start, end = o.Raw.Start, o.Raw.End
	}

	if !overlaps(start, end, w) {
		return nil
	}
	raw.Start, raw.End = start, end
	return []calendar.RawEvent{raw}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, w calendar.Window) []calendar.RawEvent {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil
	}
	r.DTStart(ev.Raw.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Raw.Start.Location()))
	}

	// Between wants the window in the event's own timezone.
	loc := ev.Raw.Start.Location()
	starts := set.Between(w.Start.In(loc), w.End.In(loc), true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	duration := ev.Raw.End.Sub(ev.Raw.Start)

	var out []calendar.RawEvent
	for _, occStart := range starts {
		raw := ev.Raw
		if ev.Raw.AllDay {
			day := time.Date(occStart.Year(), occStart.Month(), occStart.Day(),
				0, 0, 0, 0, occStart.Location())
			raw.Start = day
			raw.End = day.Add(24 * time.Hour)
		} else {
			raw.Start = occStart
			raw.End = occStart.Add(duration)
		}

		if o, ok := overrideForStart(overrides, occStart); ok {
			raw = o.Raw
		}
		out = append(out, raw)
	}
	return out
}

// overrideForStart finds the override whose RECURRENCE-ID matches the
// given occurrence start exactly.
func overrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.In(start.Location()).Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

func overlaps(start, end time.Time, w calendar.Window) bool {
	if end.IsZero() {
		end = start
	}
	return !end.Before(w.Start) && !start.After(w.End)
}
