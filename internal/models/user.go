package models

import "time"

// User represents an institutional account stored in the users table.
type User struct {
	ID            string     `db:"id" json:"id"`
	Code          string     `db:"code" json:"code"`
	FullName      string     `db:"full_name" json:"full_name"`
	Email         string     `db:"email" json:"email"`
	PersonalEmail *string    `db:"personal_email" json:"personal_email,omitempty"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	Role          UserRole   `db:"role" json:"role"`
	Active        bool       `db:"active" json:"active"`
	PositionTitle *string    `db:"position_title" json:"position_title,omitempty"`
	IsDeleted     bool       `db:"is_deleted" json:"-"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	CreatedBy     string     `db:"created_by" json:"created_by"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	UpdatedBy     *string    `db:"updated_by" json:"updated_by,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination derives the page count from the total row count.
func NewPagination(page, pageSize, total int) *Pagination {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return &Pagination{Page: page, PageSize: pageSize, TotalCount: total, TotalPages: pages}
}

// StringValue dereferences optional text columns.
func StringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// StringPtr returns nil for empty strings.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
