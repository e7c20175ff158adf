package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/rallyhq/rally/internal/calendar"
)

// ParsedEvent is a single VEVENT with its recurrence metadata still
// unexpanded. Expansion into concrete occurrences happens in expand.go.
type ParsedEvent struct {
	UID string
	Raw calendar.RawEvent

	RawRRule     string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

// IsOverride reports whether this VEVENT overrides one instance of a
// recurring event (carries a RECURRENCE-ID).
func (e ParsedEvent) IsOverride() bool {
	return e.RecurrenceID != nil
}

// Parse reads an ICS document into its VEVENTs. A VEVENT that cannot be
// parsed is skipped; only an unreadable document is an error.
func Parse(body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Raw.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Raw.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Raw.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Raw.Status = p.Value
	}
	if p := ve.GetProperty("X-MICROSOFT-CDO-BUSYSTATUS"); p != nil {
		out.Raw.BusyStatus = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		att := calendar.Attendee{Address: p.Value}
		if p.ICalParameters != nil {
			if vals, ok := p.ICalParameters["PARTSTAT"]; ok && len(vals) > 0 {
				att.PartStat = vals[0]
			}
		}
		out.Raw.Attendees = append(out.Raw.Attendees, att)
	}

	// DTSTART/DTEND through the library's timezone-aware helpers. Date-only
	// values need the all-day variants.
	start, err := ve.GetStartAt()
	if err != nil {
		start, err = ve.GetAllDayStartAt()
		if err != nil {
			return out, err
		}
	}
	end, err := ve.GetEndAt()
	if err != nil {
		end, _ = ve.GetAllDayEndAt()
	}
	out.Raw.Start = start
	out.Raw.End = end

	// All-day when DTSTART is VALUE=DATE or a bare date.
	if dtStart := ve.GetProperty(ical.ComponentPropertyDtStart); dtStart != nil {
		if params := dtStart.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				out.Raw.AllDay = true
			}
		}
		if !strings.Contains(dtStart.Value, "T") {
			out.Raw.AllDay = true
		}
	}
	if out.Raw.AllDay && out.Raw.End.IsZero() {
		out.Raw.End = out.Raw.Start.Add(24 * time.Hour)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	// EXDATE may appear multiple times, each a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, out.Raw.Start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value, out.Raw.Start.Location()); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

// parseICSTime parses the basic ICS date and date-time forms used by
// EXDATE and RECURRENCE-ID values. Floating times are interpreted in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
