package model

import "time"

// SourceType identifies the protocol a calendar source speaks.
type SourceType string

const (
	SourceTypeICS          SourceType = "ics"
	SourceTypeCalDAVGoogle SourceType = "caldav_google"
	SourceTypeCalDAVApple  SourceType = "caldav_apple"
)

// CalendarSource is one configured calendar feed, linked to the family
// member whose schedule it carries.
type CalendarSource struct {
	ID    string     `json:"id" db:"id"`
	Label string     `json:"label" db:"label"`
	Type  SourceType `json:"type" db:"type"`

	// URL is the ICS feed URL, or the CalDAV server root. Empty for CalDAV
	// sources means the provider default (Google/Apple well-known endpoint).
	URL string `json:"url" db:"url"`

	MemberID string `json:"family_member_id" db:"family_member_id"`

	// OwnerEmail, when set, enables accurate declined-event attribution:
	// only that attendee's participation status is consulted.
	OwnerEmail *string `json:"owner_email,omitempty" db:"owner_email"`

	// Username/Password are CalDAV basic-auth credentials. The password is
	// expected to be an app-scoped password, not the account password.
	Username *string `json:"username,omitempty" db:"username"`
	Password *string `json:"password,omitempty" db:"password"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
