package store

import (
	"context"

	"github.com/rallyhq/rally/internal/model"
)

// TaskFilter controls filtering, sorting, and pagination for task queries.
type TaskFilter struct {
	Completed  *bool
	AssignedTo *string
	TemplateID *string
	Query      *string
	SortBy     string // "due_date", "created_at", "updated_at", "title"
	SortDesc   bool
	Limit      int
	Offset     int
}

// Store defines the persistence interface consumed by the recurrence sweep
// and the calendar aggregation pass.
type Store interface {
	// === Recurring templates ===

	CreateTemplate(ctx context.Context, t model.RecurringTemplate) error
	UpdateTemplate(ctx context.Context, t model.RecurringTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
	GetTemplateByID(ctx context.Context, id string) (*model.RecurringTemplate, error)
	ListActiveTemplates(ctx context.Context) ([]model.RecurringTemplate, error)

	// === Task instances ===

	InsertTask(ctx context.Context, task model.TaskInstance) error
	UpdateTask(ctx context.Context, task model.TaskInstance) error
	CompleteTask(ctx context.Context, id string) error
	DeleteTask(ctx context.Context, id string) error
	GetTaskByID(ctx context.Context, id string) (*model.TaskInstance, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.TaskInstance, error)

	// FindOpenByTemplate returns the first open (not completed) instance
	// generated from the given template, or nil if none exists.
	FindOpenByTemplate(ctx context.Context, templateID string) (*model.TaskInstance, error)

	// FindLatestByTemplate returns the most recent instance for a template,
	// ordered by due date descending with nulls last, then by creation time
	// descending. Nil if the template has never produced an instance.
	FindLatestByTemplate(ctx context.Context, templateID string) (*model.TaskInstance, error)

	// CreateGeneratedInstance inserts a sweep-generated instance and
	// advances the template's last_generated_date to occurrence in a single
	// transaction, so a crash between the two cannot leave them split.
	CreateGeneratedInstance(ctx context.Context, task model.TaskInstance, templateID, occurrence string) error

	// === Calendar sources ===

	UpsertSource(ctx context.Context, src model.CalendarSource) error
	DeleteSource(ctx context.Context, id string) error
	ListSources(ctx context.Context) ([]model.CalendarSource, error)

	// === Family members ===

	CreateMember(ctx context.Context, m model.FamilyMember) error
	GetMemberByID(ctx context.Context, id string) (*model.FamilyMember, error)
	ListMembers(ctx context.Context) ([]model.FamilyMember, error)
}
