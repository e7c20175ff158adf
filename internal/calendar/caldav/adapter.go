// Package caldav implements the calendar adapters for Google and Apple
// CalDAV accounts. The two variants share everything except the default
// server URL; authentication is basic auth with an app-scoped password.
package caldav

import (
	"context"
	"log/slog"
	"time"

	"github.com/rallyhq/rally/internal/calendar"
	"github.com/rallyhq/rally/internal/calendar/ics"
	"github.com/rallyhq/rally/internal/model"
)

// Default CalDAV server URLs.
const (
	GoogleServerURL = "https://apidata.googleusercontent.com/caldav/v2/"
	AppleServerURL  = "https://caldav.icloud.com/"
)

// Adapter fetches events from every calendar under a CalDAV account
// principal and normalizes them identically to the ICS feed path.
type Adapter struct {
	source     model.CalendarSource
	sourceType model.SourceType
	member     string
	loc        *time.Location
	logger     *slog.Logger
}

// NewAdapter creates a CalDAV adapter. sourceType selects the Google or
// Apple variant, which only affects the default server URL used when the
// source has none configured.
func NewAdapter(
	source model.CalendarSource,
	sourceType model.SourceType,
	member string,
	loc *time.Location,
	logger *slog.Logger,
) *Adapter {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		source:     source,
		sourceType: sourceType,
		member:     member,
		loc:        loc,
		logger:     logger,
	}
}

// Type returns the CalDAV variant this adapter speaks.
func (a *Adapter) Type() model.SourceType { return a.sourceType }

// Label returns the source's display label.
func (a *Adapter) Label() string { return a.source.Label }

// FetchEvents enumerates the account's calendars and runs a time-range
// query with server-side recurrence expansion against each. Missing
// credentials are a configuration problem, not a fetch failure: the caller
// gets a ConfigError and treats the source as empty with a warning.
func (a *Adapter) FetchEvents(
	ctx context.Context,
	w calendar.Window,
) ([]model.NormalizedEvent, error) {
	username, password := a.credentials()
	if username == "" || password == "" {
		return nil, &calendar.ConfigError{
			Label:  a.source.Label,
			Reason: "missing CalDAV username or app-scoped password",
		}
	}

	client := NewClient(a.serverURL(), username, password)

	calendars, err := client.FindCalendars(ctx)
	if err != nil {
		return nil, &calendar.FetchError{Label: a.source.Label, Err: err}
	}

	ownerEmail := username
	if a.source.OwnerEmail != nil && *a.source.OwnerEmail != "" {
		ownerEmail = *a.source.OwnerEmail
	}

	var events []model.NormalizedEvent
	for _, cal := range calendars {
		payloads, err := client.QueryEvents(ctx, cal.Path, w.Start, w.End)
		if err != nil {
			// One failing calendar must not hide the rest of the account.
			a.logger.Warn("caldav calendar query failed",
				"source", a.source.Label, "calendar", cal.Name, "error", err)
			continue
		}

		for _, payload := range payloads {
			parsed, err := ics.Parse([]byte(payload))
			if err != nil {
				a.logger.Warn("caldav payload unparsable",
					"source", a.source.Label, "calendar", cal.Name, "error", err)
				continue
			}
			// The server already expanded recurrences; each VEVENT is a
			// concrete occurrence.
			for _, ev := range parsed {
				if calendar.IsDeclined(ev.Raw, ownerEmail) {
					continue
				}
				if !inWindow(ev.Raw, w) {
					continue
				}
				events = append(events, calendar.Normalize(ev.Raw, a.loc, a.member))
			}
		}
	}

	calendar.SortEvents(events)
	return events, nil
}

func (a *Adapter) credentials() (username, password string) {
	if a.source.Username != nil {
		username = *a.source.Username
	}
	if a.source.Password != nil {
		password = *a.source.Password
	}
	return username, password
}

func (a *Adapter) serverURL() string {
	if a.source.URL != "" {
		return a.source.URL
	}
	if a.sourceType == model.SourceTypeCalDAVApple {
		return AppleServerURL
	}
	return GoogleServerURL
}

// inWindow guards against servers that ignore the time-range filter.
func inWindow(ev calendar.RawEvent, w calendar.Window) bool {
	end := ev.End
	if end.IsZero() {
		end = ev.Start
	}
	return !end.Before(w.Start) && !ev.Start.After(w.End)
}
