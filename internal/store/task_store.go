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

// InsertTask inserts a new task instance. Generates a UUID if ID is empty.
func (s *SQLiteStore) InsertTask(ctx context.Context, task model.TaskInstance) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, insertTaskSQL, taskArgs(task)...)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// UpdateTask updates an existing task instance by ID.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task model.TaskInstance) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	task.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, due_date = ?, assigned_to = ?,
			remind_days_before = ?, recurring_template_id = ?,
			completed = ?, updated_at = ?
		WHERE id = ?`,
		task.Title, task.Description, task.DueDate, task.AssignedTo,
		task.RemindDaysBefore, task.TemplateID,
		boolToInt(task.Completed), task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s not found", task.ID)
	}
	return nil
}

// CompleteTask marks a task as completed. Completing the open instance of a
// template is what allows the next sweep to generate a new one.
func (s *SQLiteStore) CompleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET completed = 1, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("completing task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// DeleteTask removes a task instance by ID.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// GetTaskByID retrieves a single task by ID.
func (s *SQLiteStore) GetTaskByID(
	ctx context.Context,
	id string,
) (*model.TaskInstance, error) {
	row := s.db.QueryRowxContext(ctx, taskSelect+" WHERE id = ?", id)

	task, err := scanTaskRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s not found", id)
		}
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return &task, nil
}

// GetTasks retrieves tasks matching the provided filter options.
func (s *SQLiteStore) GetTasks(
	ctx context.Context,
	filter TaskFilter,
) ([]model.TaskInstance, error) {
	var conditions []string
	var args []interface{}

	if filter.Completed != nil {
		conditions = append(conditions, "completed = ?")
		args = append(args, boolToInt(*filter.Completed))
	}
	if filter.AssignedTo != nil {
		conditions = append(conditions, "assigned_to = ?")
		args = append(args, *filter.AssignedTo)
	}
	if filter.TemplateID != nil {
		conditions = append(conditions, "recurring_template_id = ?")
		args = append(args, *filter.TemplateID)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := taskSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := "created_at"
	allowedSorts := map[string]bool{
		"title":      true,
		"due_date":   true,
		"created_at": true,
		"updated_at": true,
	}
	if allowedSorts[filter.SortBy] {
		sortBy = filter.SortBy
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.TaskInstance
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// FindOpenByTemplate returns the first open instance for a template, or nil
// if every instance is completed (or none exist).
func (s *SQLiteStore) FindOpenByTemplate(
	ctx context.Context,
	templateID string,
) (*model.TaskInstance, error) {
	row := s.db.QueryRowxContext(ctx,
		taskSelect+` WHERE recurring_template_id = ? AND completed = 0
		 ORDER BY created_at LIMIT 1`,
		templateID,
	)

	task, err := scanTaskRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding open task for template %s: %w", templateID, err)
	}
	return &task, nil
}

// FindLatestByTemplate returns the most recent instance for a template:
// due date descending with nulls last, then creation time descending.
// Nil when the template has never produced an instance.
func (s *SQLiteStore) FindLatestByTemplate(
	ctx context.Context,
	templateID string,
) (*model.TaskInstance, error) {
	row := s.db.QueryRowxContext(ctx,
		taskSelect+` WHERE recurring_template_id = ?
		 ORDER BY due_date IS NULL, due_date DESC, created_at DESC
		 LIMIT 1`,
		templateID,
	)

	task, err := scanTaskRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding latest task for template %s: %w", templateID, err)
	}
	return &task, nil
}

// CreateGeneratedInstance inserts a sweep-generated instance and advances
// the template's last_generated_date in the same transaction. The advance
// is guarded to never move the date backwards.
func (s *SQLiteStore) CreateGeneratedInstance(
	ctx context.Context,
	task model.TaskInstance,
	templateID string,
	occurrence string,
) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	task.TemplateID = &templateID

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertTaskSQL, taskArgs(task)...); err != nil {
		return fmt.Errorf("inserting generated task: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE recurring_templates
		SET last_generated_date = ?, updated_at = ?
		WHERE id = ?
		  AND (last_generated_date IS NULL OR last_generated_date <= ?)`,
		occurrence, now, templateID, occurrence,
	)
	if err != nil {
		return fmt.Errorf("advancing last_generated_date for template %s: %w", templateID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("template %s not found or last_generated_date would regress", templateID)
	}

	return tx.Commit()
}

const taskSelect = `
	SELECT id, title, description, assigned_to, recurring_template_id,
	       completed, created_at, updated_at, due_date, remind_days_before
	FROM tasks`

const insertTaskSQL = `
	INSERT INTO tasks (
		id, title, description, assigned_to, recurring_template_id,
		completed, created_at, updated_at, due_date, remind_days_before
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func taskArgs(task model.TaskInstance) []interface{} {
	return []interface{}{
		task.ID, task.Title, task.Description, task.AssignedTo, task.TemplateID,
		boolToInt(task.Completed), task.CreatedAt, task.UpdatedAt,
		task.DueDate, task.RemindDaysBefore,
	}
}

// scanTask scans a task row from a sqlx.Rows result set.
func scanTask(rows *sqlx.Rows) (model.TaskInstance, error) {
	var (
		task      model.TaskInstance
		completed int
	)

	err := rows.Scan(
		&task.ID, &task.Title, &task.Description, &task.AssignedTo, &task.TemplateID,
		&completed, &task.CreatedAt, &task.UpdatedAt,
		&task.DueDate, &task.RemindDaysBefore,
	)
	if err != nil {
		return model.TaskInstance{}, fmt.Errorf("scanning task row: %w", err)
	}

	task.Completed = completed != 0
	return task, nil
}

// scanTaskRow scans a single task row from a sqlx.Row.
func scanTaskRow(row *sqlx.Row) (model.TaskInstance, error) {
	var (
		task      model.TaskInstance
		completed int
	)

	err := row.Scan(
		&task.ID, &task.Title, &task.Description, &task.AssignedTo, &task.TemplateID,
		&completed, &task.CreatedAt, &task.UpdatedAt,
		&task.DueDate, &task.RemindDaysBefore,
	)
	if err != nil {
		return model.TaskInstance{}, err
	}

	task.Completed = completed != 0
	return task, nil
}
