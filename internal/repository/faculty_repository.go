package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/itsmahammad/UniversityERP/internal/models"
)

const facultyColumns = `id, name, is_deleted, created_at, created_by, updated_at, updated_by`

// FacultyRepository persists the faculty catalog.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository constructs the repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// List returns every non-deleted faculty ordered by name.
func (r *FacultyRepository) List(ctx context.Context) ([]models.Faculty, error) {
	query := fmt.Sprintf(`SELECT %s FROM faculties WHERE is_deleted = FALSE ORDER BY name ASC`, facultyColumns)
	faculties := []models.Faculty{}
	if err := r.db.SelectContext(ctx, &faculties, query); err != nil {
		return nil, fmt.Errorf("list faculties: %w", err)
	}
	return faculties, nil
}

// FindByID returns a non-deleted faculty.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	query := fmt.Sprintf(`SELECT %s FROM faculties WHERE id = $1 AND is_deleted = FALSE`, facultyColumns)
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find faculty: %w", err)
	}
	return &faculty, nil
}

// ExistsByName reports whether a non-deleted faculty uses name, ignoring case.
func (r *FacultyRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM faculties WHERE LOWER(name) = LOWER($1) AND is_deleted = FALSE`
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += ")"
	var found bool
	if err := r.db.GetContext(ctx, &found, query, args...); err != nil {
		return false, fmt.Errorf("check faculty name: %w", err)
	}
	return found, nil
}

// Create inserts a faculty.
func (r *FacultyRepository) Create(ctx context.Context, faculty *models.Faculty) error {
	if faculty.ID == "" {
		faculty.ID = uuid.NewString()
	}
	if faculty.CreatedAt.IsZero() {
		faculty.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO faculties (id, name, is_deleted, created_at, created_by) VALUES (:id, :name, :is_deleted, :created_at, :created_by)`
	if _, err := r.db.NamedExecContext(ctx, query, faculty); err != nil {
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}

// Update renames a faculty.
func (r *FacultyRepository) Update(ctx context.Context, faculty *models.Faculty) error {
	now := time.Now().UTC()
	faculty.UpdatedAt = &now
	const query = `UPDATE faculties SET name = :name, updated_at = :updated_at, updated_by = :updated_by WHERE id = :id AND is_deleted = FALSE`
	res, err := r.db.NamedExecContext(ctx, query, faculty)
	if err != nil {
		return fmt.Errorf("update faculty: %w", err)
	}
	return requireAffected(res)
}

// SoftDelete flags a faculty as deleted.
func (r *FacultyRepository) SoftDelete(ctx context.Context, id, deletedBy string, deletedAt time.Time) error {
	const query = `UPDATE faculties SET is_deleted = TRUE, updated_at = $2, updated_by = $3 WHERE id = $1 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, deletedAt, deletedBy)
	if err != nil {
		return fmt.Errorf("delete faculty: %w", err)
	}
	return requireAffected(res)
}
