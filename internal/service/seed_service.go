package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/internal/models"
)

// SuperAdminCode is the institutional code of the bootstrap account.
const SuperAdminCode = "SUPERADMIN"

type seedRepository interface {
	FindByEmail(ctx context.Context, email string, includeDeleted bool) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// SeedService bootstraps the first super administrator in development.
type SeedService struct {
	repo     seedRepository
	hasher   passwordHasher
	accounts AccountConfig
	logger   *zap.Logger
}

// NewSeedService constructs a SeedService.
func NewSeedService(repo seedRepository, hasher passwordHasher, accounts AccountConfig, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{repo: repo, hasher: hasher, accounts: accounts.normalized(), logger: logger}
}

// EnsureSuperAdmin creates superadmin@<domain> unless an account with that
// email exists, deleted or not. It reports whether an account was created.
// Nothing is seeded without a configured password.
func (s *SeedService) EnsureSuperAdmin(ctx context.Context, password string) (bool, error) {
	email := s.accounts.InstitutionalEmail(SuperAdminCode)
	if _, err := s.repo.FindByEmail(ctx, email, true); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("look up seed account: %w", err)
	}

	if password == "" {
		s.logger.Warn("SEED_SUPERADMIN_PASSWORD is empty; skipping super administrator seed", zap.String("email", email))
		return false, nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash seed password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Code:         SuperAdminCode,
		FullName:     "Super Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
		CreatedBy:    models.SystemActor,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return false, fmt.Errorf("create seed account: %w", err)
	}

	s.logger.Info("seeded super administrator", zap.String("email", email))
	return true, nil
}
