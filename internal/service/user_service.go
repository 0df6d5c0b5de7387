package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/internal/dto"
	"github.com/itsmahammad/UniversityERP/internal/models"
	"github.com/itsmahammad/UniversityERP/internal/policy"
	"github.com/itsmahammad/UniversityERP/internal/repository"
	"github.com/itsmahammad/UniversityERP/pkg/database"
	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
	"github.com/itsmahammad/UniversityERP/pkg/security"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string, includeDeleted bool) (*models.User, error)
	ExistsByCode(ctx context.Context, code, excludeID string, includeDeleted bool) (bool, error)
	ExistsByEmail(ctx context.Context, email, excludeID string, includeDeleted bool) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash, updatedBy string, updatedAt time.Time) error
	SoftDelete(ctx context.Context, id, deletedBy string, deletedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type passwordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) security.VerifyResult
}

type credentialSender interface {
	SendWelcome(ctx context.Context, user *models.User, tempPassword string) error
	SendPasswordReset(ctx context.Context, user *models.User, tempPassword string) error
}

// AccountConfig carries provisioning settings shared by single and bulk
// account creation.
type AccountConfig struct {
	EmailDomain        string
	TempPasswordLength int
}

func (c AccountConfig) normalized() AccountConfig {
	c.EmailDomain = strings.ToLower(strings.TrimSpace(c.EmailDomain))
	if c.EmailDomain == "" {
		c.EmailDomain = "uni.local"
	}
	if c.TempPasswordLength <= 0 {
		c.TempPasswordLength = security.DefaultTempPasswordLength
	}
	return c
}

// InstitutionalEmail derives the login address from a normalized code.
func (c AccountConfig) InstitutionalEmail(code string) string {
	return strings.ToLower(code) + "@" + c.EmailDomain
}

// UserService handles the account lifecycle.
type UserService struct {
	repo      userRepository
	hasher    passwordHasher
	notifier  credentialSender
	validator *validator.Validate
	logger    *zap.Logger
	config    AccountConfig
	now       func() time.Time
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, hasher passwordHasher, notifier credentialSender, validate *validator.Validate, logger *zap.Logger, config AccountConfig) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		repo:      repo,
		hasher:    hasher,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		config:    config.normalized(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	filter.Page, filter.PageSize = repository.NormalizePage(filter.Page, filter.PageSize)
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a non-deleted user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.load(ctx, id)
}

// Create provisions a single account. Without an explicit password a
// temporary one is generated and emailed to the personal address when present.
func (s *UserService) Create(ctx context.Context, actor models.Actor, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	if err := policy.CanManageAccounts(actor); err != nil {
		return nil, err
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.FullName = strings.TrimSpace(req.FullName)
	req.PersonalEmail = strings.ToLower(strings.TrimSpace(req.PersonalEmail))
	req.PositionTitle = strings.TrimSpace(req.PositionTitle)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	role, ok := models.ParseRole(req.Role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if err := policy.CanAssignRole(actor, role); err != nil {
		return nil, err
	}

	email := s.config.InstitutionalEmail(req.Code)
	if taken, err := s.repo.ExistsByCode(ctx, req.Code, "", true); err != nil {
		return nil, appErrors.Internal(err, "failed to check code uniqueness")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "code already exists")
	}
	if taken, err := s.repo.ExistsByEmail(ctx, email, "", true); err != nil {
		return nil, appErrors.Internal(err, "failed to check email uniqueness")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}

	password, generated, err := s.resolvePassword(req.Password)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	user := &models.User{
		ID:            uuid.NewString(),
		Code:          req.Code,
		FullName:      req.FullName,
		Email:         email,
		PersonalEmail: models.StringPtr(req.PersonalEmail),
		PasswordHash:  hash,
		Role:          role,
		Active:        active,
		PositionTitle: models.StringPtr(req.PositionTitle),
		CreatedAt:     s.now(),
		CreatedBy:     actor.Stamp(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "code or email already exists")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.audit(ctx, actor, models.AuditActionUserCreate, user.ID, nil, map[string]interface{}{
		"code": user.Code, "email": user.Email, "role": user.Role, "active": user.Active,
	})

	resp := &dto.UserResponse{User: *user}
	if generated {
		s.deliver(ctx, resp, password, DeliveryWelcome)
	}
	return resp, nil
}

// Update changes profile attributes.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateUserRequest) (*models.User, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.PersonalEmail = strings.ToLower(strings.TrimSpace(req.PersonalEmail))
	req.PositionTitle = strings.TrimSpace(req.PositionTitle)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanMutate(actor, user, policy.OpUpdate); err != nil {
		return nil, err
	}

	before := profileSnapshot(user)
	user.FullName = req.FullName
	user.PersonalEmail = models.StringPtr(req.PersonalEmail)
	user.PositionTitle = models.StringPtr(req.PositionTitle)

	if err := s.save(ctx, actor, user); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, models.AuditActionUserUpdate, user.ID, before, profileSnapshot(user))
	return user, nil
}

// Delete performs a soft delete.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.CanMutate(actor, user, policy.OpDelete); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, user.ID, actor.Stamp(), s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to delete user")
	}

	s.audit(ctx, actor, models.AuditActionUserDelete, user.ID,
		map[string]interface{}{"is_deleted": false, "active": user.Active},
		map[string]interface{}{"is_deleted": true, "active": false})
	return nil
}

// SetActive activates or deactivates an account. Requesting the current state
// succeeds without writing.
func (s *UserService) SetActive(ctx context.Context, actor models.Actor, id string, active bool) (*models.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	op, action := policy.OpActivate, models.AuditActionUserActivate
	if !active {
		op, action = policy.OpDeactivate, models.AuditActionUserDeactivate
	}
	if err := policy.CanMutate(actor, user, op); err != nil {
		return nil, err
	}
	if policy.IsActiveNoop(user, active) {
		return user, nil
	}

	user.Active = active
	if err := s.save(ctx, actor, user); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, action, user.ID,
		map[string]interface{}{"active": !active},
		map[string]interface{}{"active": active})
	return user, nil
}

// ChangeRole assigns a new role. Requesting the current role succeeds without
// writing.
func (s *UserService) ChangeRole(ctx context.Context, actor models.Actor, id string, req dto.ChangeRoleRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanChangeRole(actor, user, role); err != nil {
		return nil, err
	}
	if policy.IsRoleNoop(user, role) {
		return user, nil
	}

	previous := user.Role
	user.Role = role
	if err := s.save(ctx, actor, user); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, models.AuditActionRoleChange, user.ID,
		map[string]interface{}{"role": previous},
		map[string]interface{}{"role": role})
	return user, nil
}

// ResetPassword sets a new password chosen by the administrator or generates
// a temporary one and emails it.
func (s *UserService) ResetPassword(ctx context.Context, actor models.Actor, id string, req dto.ResetPasswordRequest) (*dto.ResetPasswordResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset password payload")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanMutate(actor, user, policy.OpResetPassword); err != nil {
		return nil, err
	}

	password, generated, err := s.resolvePassword(req.NewPassword)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash, actor.Stamp(), s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to reset password")
	}

	s.audit(ctx, actor, models.AuditActionPasswordReset, user.ID, nil, map[string]interface{}{"generated": generated})

	resp := &dto.ResetPasswordResponse{UserID: user.ID}
	if generated {
		holder := &dto.UserResponse{User: *user}
		s.deliver(ctx, holder, password, DeliveryReset)
		resp.TempPassword = holder.TempPassword
		resp.CredentialsEmailed = holder.CredentialsEmailed
		resp.Warning = holder.Warning
	}
	return resp, nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

func (s *UserService) save(ctx context.Context, actor models.Actor, user *models.User) error {
	stamp := actor.Stamp()
	user.UpdatedBy = &stamp
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to update user")
	}
	return nil
}

func (s *UserService) resolvePassword(explicit *string) (string, bool, error) {
	if explicit != nil && *explicit != "" {
		return *explicit, false, nil
	}
	generated, err := security.GenerateTempPassword(s.config.TempPasswordLength)
	if err != nil {
		return "", false, appErrors.Internal(err, "failed to generate temporary password")
	}
	return generated, true, nil
}

// deliver emails a generated password when the user has a personal address.
// Failures keep the password in the response and attach a warning.
func (s *UserService) deliver(ctx context.Context, resp *dto.UserResponse, password, kind string) {
	if s.notifier == nil || resp.PersonalEmail == nil {
		resp.TempPassword = password
		return
	}
	var err error
	if kind == DeliveryReset {
		err = s.notifier.SendPasswordReset(ctx, &resp.User, password)
	} else {
		err = s.notifier.SendWelcome(ctx, &resp.User, password)
	}
	if err != nil {
		resp.TempPassword = password
		resp.Warning = deliveryWarning
		return
	}
	resp.CredentialsEmailed = true
}

func (s *UserService) audit(ctx context.Context, actor models.Actor, action, resourceID string, oldValues, newValues map[string]interface{}) {
	writeAudit(ctx, s.repo, s.logger, actor, action, models.AuditResourceUser, resourceID, oldValues, newValues)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

func writeAudit(ctx context.Context, repo auditWriter, logger *zap.Logger, actor models.Actor, action, resource, resourceID string, oldValues, newValues map[string]interface{}) {
	entry := &models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if actor.ID != "" {
		id := actor.ID
		entry.UserID = &id
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func profileSnapshot(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"full_name":      user.FullName,
		"personal_email": models.StringValue(user.PersonalEmail),
		"position_title": models.StringValue(user.PositionTitle),
	}
}
