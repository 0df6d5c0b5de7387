package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/itsmahammad/UniversityERP/internal/models"
)

const userColumns = `id, code, full_name, email, personal_email, password_hash, role, active, position_title, is_deleted, last_login, created_at, created_by, updated_at, updated_by`

const insertUserQuery = `INSERT INTO users (id, code, full_name, email, personal_email, password_hash, role, active, position_title, is_deleted, created_at, created_by)
VALUES (:id, :code, :full_name, :email, :personal_email, :password_hash, :role, :active, :position_title, :is_deleted, :created_at, :created_by)`

// UserRepository is the PostgreSQL backed identity directory.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func notDeleted(includeDeleted bool) string {
	if includeDeleted {
		return ""
	}
	return " AND is_deleted = FALSE"
}

func (r *UserRepository) findOne(ctx context.Context, column, value string, includeDeleted bool) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1%s LIMIT 1`, userColumns, column, notDeleted(includeDeleted))
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by %s: %w", column, err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string, includeDeleted bool) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	return r.findOne(ctx, "id", id, includeDeleted)
}

// FindByEmail returns a user by institutional email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string, includeDeleted bool) (*models.User, error) {
	return r.findOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)), includeDeleted)
}

// FindByCode returns a user by institutional code.
func (r *UserRepository) FindByCode(ctx context.Context, code string, includeDeleted bool) (*models.User, error) {
	return r.findOne(ctx, "code", strings.ToUpper(strings.TrimSpace(code)), includeDeleted)
}

func (r *UserRepository) exists(ctx context.Context, column, value, excludeID string, includeDeleted bool) (bool, error) {
	args := []interface{}{value}
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM users WHERE %s = $1%s`, column, notDeleted(includeDeleted))
	if excludeID != "" {
		args = append(args, excludeID)
		query += " AND id <> $2"
	}
	query += ")"

	var found bool
	if err := r.db.GetContext(ctx, &found, query, args...); err != nil {
		return false, fmt.Errorf("check user %s: %w", column, err)
	}
	return found, nil
}

// ExistsByEmail reports whether an institutional email is taken.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email, excludeID string, includeDeleted bool) (bool, error) {
	return r.exists(ctx, "email", strings.ToLower(email), excludeID, includeDeleted)
}

// ExistsByCode reports whether an institutional code is taken.
func (r *UserRepository) ExistsByCode(ctx context.Context, code, excludeID string, includeDeleted bool) (bool, error) {
	return r.exists(ctx, "code", strings.ToUpper(code), excludeID, includeDeleted)
}

func (r *UserRepository) existing(ctx context.Context, column string, values []string, includeDeleted bool) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	if len(values) == 0 {
		return result, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = ANY($1)%s`, column, column, notDeleted(includeDeleted))
	var found []string
	if err := r.db.SelectContext(ctx, &found, query, pq.Array(values)); err != nil {
		return nil, fmt.Errorf("list existing user %ss: %w", column, err)
	}
	for _, v := range found {
		result[v] = struct{}{}
	}
	return result, nil
}

// ExistingCodes returns the subset of codes already present in the directory.
func (r *UserRepository) ExistingCodes(ctx context.Context, codes []string, includeDeleted bool) (map[string]struct{}, error) {
	return r.existing(ctx, "code", codes, includeDeleted)
}

// ExistingEmails returns the subset of emails already present in the directory.
func (r *UserRepository) ExistingEmails(ctx context.Context, emails []string, includeDeleted bool) (map[string]struct{}, error) {
	return r.existing(ctx, "email", emails, includeDeleted)
}

func prepareInsert(user *models.User, now time.Time) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.CreatedBy == "" {
		user.CreatedBy = models.SystemActor
	}
}

// Create inserts a single user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	prepareInsert(user, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertUserQuery, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateBatch inserts all users in one transaction. Nothing is persisted when
// any insert fails.
func (r *UserRepository) CreateBatch(ctx context.Context, users []*models.User) error {
	if len(users) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user batch tx: %w", err)
	}
	now := time.Now().UTC()
	for _, user := range users {
		prepareInsert(user, now)
		if _, err := tx.NamedExecContext(ctx, insertUserQuery, user); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("batch create user %s: %w", user.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user batch tx: %w", err)
	}
	return nil
}

// Update persists profile, role and activation attributes.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.UpdatedAt = &now
	const query = `UPDATE users SET full_name = :full_name, personal_email = :personal_email, position_title = :position_title,
role = :role, active = :active, updated_at = :updated_at, updated_by = :updated_by
WHERE id = :id AND is_deleted = FALSE`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(res)
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash, updatedBy string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3, updated_by = $4 WHERE id = $1 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt, updatedBy)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}

// UpdateLastLogin stamps the last successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SoftDelete flags the user as deleted and deactivates it.
func (r *UserRepository) SoftDelete(ctx context.Context, id, deletedBy string, deletedAt time.Time) error {
	const query = `UPDATE users SET is_deleted = TRUE, active = FALSE, updated_at = $2, updated_by = $3 WHERE id = $1 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, deletedAt, deletedBy)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res)
}

// List returns non-deleted users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE is_deleted = FALSE`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(code) LIKE $%d)", n, n, n))
		args = append(args, "%"+strings.ToLower(search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"code":       true,
		"email":      true,
		"full_name":  true,
		"role":       true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page, pageSize := NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// NormalizePage applies the default page size of 10 and caps it at 100.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
