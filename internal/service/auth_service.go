package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/internal/models"
	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
	"github.com/itsmahammad/UniversityERP/pkg/security"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string, includeDeleted bool) (*models.User, error)
	FindByCode(ctx context.Context, code string, includeDeleted bool) (*models.User, error)
	FindByID(ctx context.Context, id string, includeDeleted bool) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash, updatedBy string, updatedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type tokenIssuer interface {
	IssueToken(user *models.User) (string, time.Time, error)
	ValidateToken(tokenString string) (*models.JWTClaims, error)
	Expiry() time.Duration
}

// AuthService provides authentication use cases.
type AuthService struct {
	repo      authUserRepository
	hasher    passwordHasher
	tokens    tokenIssuer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, hasher passwordHasher, tokens tokenIssuer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates by institutional email or code. Every rejection carries
// the same message so callers cannot tell which check failed.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Identifier = strings.TrimSpace(req.Identifier)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.lookup(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.rejectLogin("unknown identifier")
		}
		s.metrics.RecordLogin(OutcomeFailure)
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if user.IsDeleted || !user.Active {
		return nil, s.rejectLogin("inactive account")
	}
	if s.hasher.Verify(user.PasswordHash, req.Password) != security.Match {
		return nil, s.rejectLogin("password mismatch")
	}

	token, expiresAt, err := s.tokens.IssueToken(user)
	if err != nil {
		s.metrics.RecordLogin(OutcomeFailure)
		return nil, appErrors.Internal(err, "failed to create access token")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	actor := models.Actor{ID: user.ID, FullName: user.FullName, Role: user.Role, IP: req.IP, UserAgent: req.UserAgent}
	writeAudit(ctx, s.repo, s.logger, actor, models.AuditActionLogin, models.AuditResourceAuthentication, user.ID, nil, map[string]interface{}{"status": "success"})
	s.metrics.RecordLogin(OutcomeSuccess)

	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		ExpiresIn:   int64(s.tokens.Expiry().Seconds()),
		User:        userInfo(user),
	}, nil
}

// GetSelf returns the caller's own account.
func (s *AuthService) GetSelf(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// ChangePassword replaces the caller's password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, actor models.Actor, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.GetSelf(ctx, actor.ID)
	if err != nil {
		return err
	}
	if s.hasher.Verify(user.PasswordHash, req.CurrentPassword) != security.Match {
		return appErrors.Clone(appErrors.ErrValidation, "current password is incorrect")
	}
	if req.NewPassword == req.CurrentPassword {
		return appErrors.Clone(appErrors.ErrValidation, "new password must differ from the current password")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash, actor.Stamp(), s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to update password")
	}

	writeAudit(ctx, s.repo, s.logger, actor, models.AuditActionPasswordChange, models.AuditResourceAuthentication, user.ID, nil, map[string]interface{}{"status": "changed"})
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	return claims, nil
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*models.User, error) {
	if strings.Contains(identifier, "@") {
		return s.repo.FindByEmail(ctx, strings.ToLower(identifier), false)
	}
	return s.repo.FindByCode(ctx, strings.ToUpper(identifier), false)
}

func (s *AuthService) rejectLogin(reason string) error {
	s.metrics.RecordLogin(OutcomeFailure)
	s.logger.Debug("login rejected", zap.String("reason", reason))
	return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
}

func userInfo(user *models.User) models.UserInfo {
	return models.UserInfo{
		ID:       user.ID,
		Code:     user.Code,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	}
}
