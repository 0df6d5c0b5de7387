package dto

import "github.com/itsmahammad/UniversityERP/internal/models"

// CreateUserRequest is the payload for provisioning a single account. When
// Password is empty a temporary password is generated.
type CreateUserRequest struct {
	Code          string  `json:"code" validate:"required,min=5,max=16,alphanum"`
	FullName      string  `json:"full_name" validate:"required,max=150"`
	PersonalEmail string  `json:"personal_email" validate:"omitempty,email,max=256"`
	Role          string  `json:"role" validate:"required"`
	Active        *bool   `json:"active"`
	PositionTitle string  `json:"position_title" validate:"omitempty,max=100"`
	Password      *string `json:"password" validate:"omitempty,min=6,max=64"`
}

// UpdateUserRequest updates profile attributes only.
type UpdateUserRequest struct {
	FullName      string `json:"full_name" validate:"required,max=150"`
	PersonalEmail string `json:"personal_email" validate:"omitempty,email,max=256"`
	PositionTitle string `json:"position_title" validate:"omitempty,max=100"`
}

// ChangeRoleRequest assigns a new role.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// ResetPasswordRequest optionally carries an administrator chosen password.
type ResetPasswordRequest struct {
	NewPassword *string `json:"new_password" validate:"omitempty,min=6,max=64"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	models.User
	TempPassword       string `json:"temp_password,omitempty"`
	CredentialsEmailed bool   `json:"credentials_emailed"`
	Warning            string `json:"warning,omitempty"`
}

// ResetPasswordResponse reports how the new credentials were delivered.
type ResetPasswordResponse struct {
	UserID             string `json:"user_id"`
	TempPassword       string `json:"temp_password,omitempty"`
	CredentialsEmailed bool   `json:"credentials_emailed"`
	Warning            string `json:"warning,omitempty"`
}
