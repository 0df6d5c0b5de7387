package models

import "time"

// Faculty is an academic division of the university.
type Faculty struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	IsDeleted bool       `db:"is_deleted" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	UpdatedBy *string    `db:"updated_by" json:"updated_by,omitempty"`
}
