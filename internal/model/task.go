package model

import "time"

// TaskInstance is a concrete todo item. Instances are created either
// directly by a user or by the recurrence sweep from a template; title and
// description are copied from the template at creation time, so later
// template edits do not rewrite history.
type TaskInstance struct {
	ID          string `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`

	// DueDate is YYYY-MM-DD, present iff the originating template has a
	// due date (or the user set one).
	DueDate          *string `json:"due_date,omitempty" db:"due_date"`
	AssignedTo       *string `json:"assigned_to,omitempty" db:"assigned_to"`
	RemindDaysBefore *int    `json:"remind_days_before,omitempty" db:"remind_days_before"`

	// TemplateID back-references the recurring template that generated this
	// instance. It is attribution only, never an ownership link: deleting a
	// template does not delete its instances.
	TemplateID *string `json:"recurring_template_id,omitempty" db:"recurring_template_id"`

	Completed bool `json:"completed" db:"completed"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
