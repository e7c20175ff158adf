package model

import (
	"strings"
	"time"
)

// NormalizedEvent is the common shape every calendar adapter produces.
// It is ephemeral: built fresh each aggregation pass and handed to the
// downstream summary generator, never persisted.
type NormalizedEvent struct {
	Summary string `json:"summary"`

	// Time is the start time rendered for display in the configured local
	// timezone ("3:04 PM MST"); empty for all-day events.
	Time string `json:"time"`

	// Date is the occurrence date as YYYY-MM-DD in the display timezone.
	Date string `json:"date"`

	Description string `json:"description"`
	Location    string `json:"location"`

	// Members holds the names of the family members whose calendars carry
	// this event. More than one entry means the same event was seen on
	// multiple calendars and collapsed by the aggregator.
	Members []string `json:"members,omitempty"`

	// Start is the precise occurrence start, kept for chronological
	// ordering only.
	Start time.Time `json:"-"`
}

// DedupKey returns the key under which identical events from different
// sources collapse: the date plus the normalized summary.
func (e NormalizedEvent) DedupKey() string {
	return EventDedupKey(e.Date, e.Summary)
}

// EventDedupKey builds the dedup key for a (date, summary) pair. Summaries
// are compared case-insensitively with surrounding whitespace ignored.
func EventDedupKey(date, summary string) string {
	return date + "|" + strings.ToLower(strings.TrimSpace(summary))
}
