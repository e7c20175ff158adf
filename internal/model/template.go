package model

import "time"

// RecurrenceType identifies how often a recurring template fires.
type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

// RecurringTemplate is a user-defined recurring-task definition from which
// concrete task instances are generated by the recurrence sweep.
//
// RecurrenceDay is interpreted per type: a Monday-based weekday index
// (0=Monday .. 6=Sunday) for weekly templates, a day of month (1-31,
// clamped to month length) for monthly ones, and ignored for daily.
type RecurringTemplate struct {
	ID          string         `json:"id" db:"id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`

	RecurrenceType RecurrenceType `json:"recurrence_type" db:"recurrence_type"`
	RecurrenceDay  int            `json:"recurrence_day" db:"recurrence_day"`

	AssignedTo       *string `json:"assigned_to,omitempty" db:"assigned_to"`
	HasDueDate       bool    `json:"has_due_date" db:"has_due_date"`
	RemindDaysBefore *int    `json:"remind_days_before,omitempty" db:"remind_days_before"`
	Active           bool    `json:"active" db:"active"`

	// LastGeneratedDate is the recurrence period most recently materialized,
	// as YYYY-MM-DD. Nil until the first sweep creates an instance. Once set
	// it only moves forward.
	LastGeneratedDate *string `json:"last_generated_date,omitempty" db:"last_generated_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
