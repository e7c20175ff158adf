package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rallyhq/rally/internal/model"
)

// UpsertSource inserts or replaces a calendar source configuration.
// If the source has no ID, a new UUID is generated.
func (s *SQLiteStore) UpsertSource(ctx context.Context, src model.CalendarSource) error {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	if src.Type == "" {
		src.Type = model.SourceTypeICS
	}
	now := time.Now().UTC()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO calendar_sources (
			id, label, url, family_member_id, owner_email,
			type, username, password, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Label, src.URL, src.MemberID, src.OwnerEmail,
		string(src.Type), src.Username, src.Password, src.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("upserting calendar source %s: %w", src.ID, err)
	}
	return nil
}

// DeleteSource removes a calendar source by ID.
func (s *SQLiteStore) DeleteSource(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM calendar_sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting calendar source %s: %w", id, err)
	}
	return nil
}

// ListSources retrieves all configured calendar sources ordered by label.
func (s *SQLiteStore) ListSources(ctx context.Context) ([]model.CalendarSource, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, label, url, family_member_id, owner_email,
		       type, username, password, created_at, updated_at
		FROM calendar_sources ORDER BY label, id`)
	if err != nil {
		return nil, fmt.Errorf("querying calendar sources: %w", err)
	}
	defer rows.Close()

	var sources []model.CalendarSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// scanSource scans a calendar source row from a sqlx.Rows result set.
func scanSource(rows *sqlx.Rows) (model.CalendarSource, error) {
	var (
		src     model.CalendarSource
		srcType string
	)

	err := rows.Scan(
		&src.ID, &src.Label, &src.URL, &src.MemberID, &src.OwnerEmail,
		&srcType, &src.Username, &src.Password, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		return model.CalendarSource{}, fmt.Errorf("scanning calendar source row: %w", err)
	}

	src.Type = model.SourceType(srcType)
	return src, nil
}
