package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rallyhq/rally/internal/model"
)

// CreateMember inserts a new family member. Generates a UUID if ID is empty.
func (s *SQLiteStore) CreateMember(ctx context.Context, m model.FamilyMember) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("member name must not be empty")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Color == "" {
		m.Color = "#333333"
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO family_members (id, name, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Color, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating member: %w", err)
	}
	return nil
}

// GetMemberByID retrieves a single family member by ID.
func (s *SQLiteStore) GetMemberByID(
	ctx context.Context,
	id string,
) (*model.FamilyMember, error) {
	var m model.FamilyMember
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, name, color, created_at, updated_at
		FROM family_members WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &m.Color, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %s not found", id)
		}
		return nil, fmt.Errorf("getting member %s: %w", id, err)
	}
	return &m, nil
}

// ListMembers retrieves all family members ordered by name.
func (s *SQLiteStore) ListMembers(ctx context.Context) ([]model.FamilyMember, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, name, color, created_at, updated_at
		FROM family_members ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		var m model.FamilyMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Color, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
