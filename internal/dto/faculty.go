package dto

// FacultyRequest creates or renames a faculty.
type FacultyRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}
