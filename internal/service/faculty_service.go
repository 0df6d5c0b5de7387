package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/internal/dto"
	"github.com/itsmahammad/UniversityERP/internal/models"
	"github.com/itsmahammad/UniversityERP/pkg/database"
	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
)

const facultyListCacheKey = "faculties:list"

type facultyRepository interface {
	List(ctx context.Context) ([]models.Faculty, error)
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, faculty *models.Faculty) error
	Update(ctx context.Context, faculty *models.Faculty) error
	SoftDelete(ctx context.Context, id, deletedBy string, deletedAt time.Time) error
}

type listCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string)
}

// FacultyService manages the faculty catalog.
type FacultyService struct {
	repo      facultyRepository
	audit     auditWriter
	cache     listCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFacultyService constructs the service. A nil cache disables list caching.
func NewFacultyService(repo facultyRepository, audit auditWriter, cache listCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *FacultyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FacultyService{
		repo:      repo,
		audit:     audit,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns every faculty ordered by name and reports whether the list
// came from cache.
func (s *FacultyService) List(ctx context.Context) ([]models.Faculty, bool, error) {
	if s.cache != nil {
		var cached []models.Faculty
		if s.cache.Get(ctx, facultyListCacheKey, &cached) {
			return cached, true, nil
		}
	}

	faculties, err := s.repo.List(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to list faculties")
	}
	if faculties == nil {
		faculties = []models.Faculty{}
	}
	if s.cache != nil {
		s.cache.Set(ctx, facultyListCacheKey, faculties, s.cacheTTL)
	}
	return faculties, false, nil
}

// Get returns a faculty by ID.
func (s *FacultyService) Get(ctx context.Context, id string) (*models.Faculty, error) {
	faculty, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Internal(err, "failed to load faculty")
	}
	return faculty, nil
}

// Create adds a faculty with a unique name.
func (s *FacultyService) Create(ctx context.Context, actor models.Actor, req dto.FacultyRequest) (*models.Faculty, error) {
	name, err := s.validName(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, name, ""); err != nil {
		return nil, err
	}

	faculty := &models.Faculty{Name: name, CreatedAt: s.now(), CreatedBy: actor.Stamp()}
	if err := s.repo.Create(ctx, faculty); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "faculty name already exists")
		}
		return nil, appErrors.Internal(err, "failed to create faculty")
	}

	s.invalidate(ctx)
	s.record(ctx, actor, models.AuditActionFacultyCreate, faculty.ID, nil, map[string]interface{}{"name": faculty.Name})
	return faculty, nil
}

// Update renames a faculty.
func (s *FacultyService) Update(ctx context.Context, actor models.Actor, id string, req dto.FacultyRequest) (*models.Faculty, error) {
	name, err := s.validName(req)
	if err != nil {
		return nil, err
	}
	faculty, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, name, faculty.ID); err != nil {
		return nil, err
	}

	previous := faculty.Name
	faculty.Name = name
	stamp := actor.Stamp()
	faculty.UpdatedBy = &stamp
	if err := s.repo.Update(ctx, faculty); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		case database.IsUniqueViolation(err):
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "faculty name already exists")
		}
		return nil, appErrors.Internal(err, "failed to update faculty")
	}

	s.invalidate(ctx)
	s.record(ctx, actor, models.AuditActionFacultyUpdate, faculty.ID,
		map[string]interface{}{"name": previous},
		map[string]interface{}{"name": faculty.Name})
	return faculty, nil
}

// Delete soft deletes a faculty.
func (s *FacultyService) Delete(ctx context.Context, actor models.Actor, id string) error {
	faculty, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, faculty.ID, actor.Stamp(), s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return appErrors.Internal(err, "failed to delete faculty")
	}

	s.invalidate(ctx)
	s.record(ctx, actor, models.AuditActionFacultyDelete, faculty.ID, map[string]interface{}{"name": faculty.Name}, nil)
	return nil
}

func (s *FacultyService) validName(req dto.FacultyRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	return req.Name, nil
}

func (s *FacultyService) ensureUnique(ctx context.Context, name, excludeID string) error {
	taken, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check faculty name")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, "faculty name already exists")
	}
	return nil
}

func (s *FacultyService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, facultyListCacheKey)
	}
}

func (s *FacultyService) record(ctx context.Context, actor models.Actor, action, id string, oldValues, newValues map[string]interface{}) {
	if s.audit == nil {
		return
	}
	writeAudit(ctx, s.audit, s.logger, actor, action, models.AuditResourceFaculty, id, oldValues, newValues)
}
