package model

import "time"

// FamilyMember is a person in the household. Calendar sources and task
// instances are attributed to members by ID.
type FamilyMember struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
