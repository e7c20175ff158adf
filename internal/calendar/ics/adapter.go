// Package ics implements the calendar adapter for static ICS feed URLs.
package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rallyhq/rally/internal/calendar"
	"github.com/rallyhq/rally/internal/model"
)

// Adapter fetches one ICS feed over HTTP and normalizes its events.
type Adapter struct {
	source     model.CalendarSource
	member     string
	loc        *time.Location
	httpClient *http.Client
}

// NewAdapter creates an ICS feed adapter for one configured source.
// member is the owning family member's display name; loc the household's
// display timezone.
func NewAdapter(source model.CalendarSource, member string, loc *time.Location) *Adapter {
	if loc == nil {
		loc = time.UTC
	}
	return &Adapter{
		source:     source,
		member:     member,
		loc:        loc,
		httpClient: &http.Client{},
	}
}

// Type returns the source type identifier for ICS feeds.
func (a *Adapter) Type() model.SourceType { return model.SourceTypeICS }

// Label returns the source's display label.
func (a *Adapter) Label() string { return a.source.Label }

// FetchEvents downloads the feed, expands recurrences inside the window,
// drops declined occurrences, and returns normalized events sorted
// chronologically.
func (a *Adapter) FetchEvents(
	ctx context.Context,
	w calendar.Window,
) ([]model.NormalizedEvent, error) {
	body, err := a.fetch(ctx)
	if err != nil {
		return nil, &calendar.FetchError{Label: a.source.Label, Err: err}
	}

	parsed, err := Parse(body)
	if err != nil {
		return nil, &calendar.ParseError{Label: a.source.Label, Err: err}
	}

	ownerEmail := ""
	if a.source.OwnerEmail != nil {
		ownerEmail = *a.source.OwnerEmail
	}

	var events []model.NormalizedEvent
	for _, raw := range ExpandOccurrences(parsed, w) {
		if calendar.IsDeclined(raw, ownerEmail) {
			continue
		}
		events = append(events, calendar.Normalize(raw, a.loc, a.member))
	}

	calendar.SortEvents(events)
	return events, nil
}

func (a *Adapter) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.source.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
