package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rallyhq/rally/internal/model"
)

// CreateTemplate inserts a new recurring template. Generates a UUID if ID
// is empty.
func (s *SQLiteStore) CreateTemplate(ctx context.Context, t model.RecurringTemplate) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("template title must not be empty")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recurring_templates (
			id, title, description, recurrence_type, recurrence_day,
			assigned_to, has_due_date, remind_days_before, active,
			last_generated_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.RecurrenceType), t.RecurrenceDay,
		t.AssignedTo, boolToInt(t.HasDueDate), t.RemindDaysBefore, boolToInt(t.Active),
		t.LastGeneratedDate, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating template: %w", err)
	}
	return nil
}

// UpdateTemplate updates an existing template by ID.
func (s *SQLiteStore) UpdateTemplate(ctx context.Context, t model.RecurringTemplate) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("template title must not be empty")
	}
	t.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE recurring_templates SET
			title = ?, description = ?, recurrence_type = ?, recurrence_day = ?,
			assigned_to = ?, has_due_date = ?, remind_days_before = ?, active = ?,
			last_generated_date = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, string(t.RecurrenceType), t.RecurrenceDay,
		t.AssignedTo, boolToInt(t.HasDueDate), t.RemindDaysBefore, boolToInt(t.Active),
		t.LastGeneratedDate, t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating template %s: %w", t.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("template %s not found", t.ID)
	}
	return nil
}

// DeleteTemplate removes a template by ID. Already-generated instances keep
// their back-reference and are untouched.
func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM recurring_templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("template %s not found", id)
	}
	return nil
}

// GetTemplateByID retrieves a single template by ID.
func (s *SQLiteStore) GetTemplateByID(
	ctx context.Context,
	id string,
) (*model.RecurringTemplate, error) {
	row := s.db.QueryRowxContext(ctx,
		templateSelect+" WHERE id = ?", id)

	t, err := scanTemplateRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template %s not found", id)
		}
		return nil, fmt.Errorf("getting template %s: %w", id, err)
	}
	return &t, nil
}

// ListActiveTemplates retrieves all templates with active = true, ordered
// by creation time so sweep output is deterministic.
func (s *SQLiteStore) ListActiveTemplates(
	ctx context.Context,
) ([]model.RecurringTemplate, error) {
	rows, err := s.db.QueryxContext(ctx,
		templateSelect+" WHERE active = 1 ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("querying active templates: %w", err)
	}
	defer rows.Close()

	var templates []model.RecurringTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

const templateSelect = `
	SELECT id, title, description, recurrence_type, recurrence_day,
	       assigned_to, has_due_date, remind_days_before, active,
	       last_generated_date, created_at, updated_at
	FROM recurring_templates`

// scanTemplate scans a template row from a sqlx.Rows result set.
func scanTemplate(rows *sqlx.Rows) (model.RecurringTemplate, error) {
	var (
		t              model.RecurringTemplate
		recurrenceType string
		hasDueDate     int
		active         int
	)

	err := rows.Scan(
		&t.ID, &t.Title, &t.Description, &recurrenceType, &t.RecurrenceDay,
		&t.AssignedTo, &hasDueDate, &t.RemindDaysBefore, &active,
		&t.LastGeneratedDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return model.RecurringTemplate{}, fmt.Errorf("scanning template row: %w", err)
	}

	t.RecurrenceType = model.RecurrenceType(recurrenceType)
	t.HasDueDate = hasDueDate != 0
	t.Active = active != 0
	return t, nil
}

// scanTemplateRow scans a single template row from a sqlx.Row.
func scanTemplateRow(row *sqlx.Row) (model.RecurringTemplate, error) {
	var (
		t              model.RecurringTemplate
		recurrenceType string
		hasDueDate     int
		active         int
	)

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &recurrenceType, &t.RecurrenceDay,
		&t.AssignedTo, &hasDueDate, &t.RemindDaysBefore, &active,
		&t.LastGeneratedDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return model.RecurringTemplate{}, err
	}

	t.RecurrenceType = model.RecurrenceType(recurrenceType)
	t.HasDueDate = hasDueDate != 0
	t.Active = active != 0
	return t, nil
}
