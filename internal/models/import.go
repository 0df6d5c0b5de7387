package models

// ImportRow is the outcome of one spreadsheet data row.
type ImportRow struct {
	RowNumber          int      `json:"row_number"`
	Success            bool     `json:"success"`
	Code               string   `json:"code"`
	FullName           string   `json:"full_name"`
	PersonalEmail      string   `json:"personal_email,omitempty"`
	Role               UserRole `json:"role,omitempty"`
	IsActive           bool     `json:"is_active"`
	PositionTitle      string   `json:"position_title,omitempty"`
	Email              string   `json:"email,omitempty"`
	TempPassword       string   `json:"temp_password,omitempty"`
	Error              string   `json:"error,omitempty"`
	CredentialsEmailed bool     `json:"credentials_emailed"`
	Warning            string   `json:"warning,omitempty"`
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	TotalRows    int         `json:"total_rows"`
	CreatedCount int         `json:"created_count"`
	FailedCount  int         `json:"failed_count"`
	Rows         []ImportRow `json:"rows"`
}
