// Package calendar defines the common shape of calendar ingestion: the
// adapter contract every protocol variant implements, the raw event view
// the declined filter inspects, and the aggregation that merges all
// sources for a household.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rallyhq/rally/internal/model"
)

// ConfigError indicates a source that cannot be fetched because of how it
// is configured (typically missing CalDAV credentials). The source is
// skipped with a warning; it never aborts the batch.
type ConfigError struct {
	Label  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("source %q misconfigured: %s", e.Label, e.Reason)
}

// IsConfigError reports whether err (or any error in its chain) is a
// ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// FetchError wraps a network or protocol failure for one source.
type FetchError struct {
	Label string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching source %q: %v", e.Label, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError wraps a malformed ICS or CalDAV payload for one source.
type ParseError struct {
	Label string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing source %q: %v", e.Label, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Window is the time span the calendar pass looks at.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds the sliding lookahead window starting at today.
func NewWindow(today time.Time, days int) Window {
	return Window{Start: today, End: today.AddDate(0, 0, days)}
}

// Attendee is one ATTENDEE entry on a raw event.
type Attendee struct {
	// Address is the attendee's calendar address, usually a mailto: URI.
	Address string
	// PartStat is the participation status (ACCEPTED, DECLINED, ...).
	PartStat string
}

// RawEvent is the protocol-independent view of a single VEVENT occurrence
// before declined filtering and normalization.
type RawEvent struct {
	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	// Status is the organizer-level STATUS property (e.g. CANCELLED).
	Status string
	// BusyStatus is the X-MICROSOFT-CDO-BUSYSTATUS hint, when present.
	BusyStatus string

	Attendees []Attendee
}

// Adapter fetches and normalizes events for one configured source.
// Implementations are selected once per source at configuration-resolution
// time; nothing branches on the source type afterwards.
type Adapter interface {
	// Type returns the protocol variant this adapter speaks.
	Type() model.SourceType

	// Label returns the source's display label, for logging.
	Label() string

	// FetchEvents returns the source's normalized events inside the
	// window, sorted chronologically. Implementations must honor ctx
	// cancellation; the caller applies the per-source timeout.
	FetchEvents(ctx context.Context, w Window) ([]model.NormalizedEvent, error)
}
