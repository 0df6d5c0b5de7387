package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/internal/dto"
	"github.com/itsmahammad/UniversityERP/internal/models"
	"github.com/itsmahammad/UniversityERP/internal/repository"
	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
)

type mockFacultyRepo struct {
	faculties map[string]*models.Faculty
	listCalls int
}

func (m *mockFacultyRepo) List(ctx context.Context) ([]models.Faculty, error) {
	m.listCalls++
	out := make([]models.Faculty, 0, len(m.faculties))
	for _, f := range m.faculties {
		if !f.IsDeleted {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (m *mockFacultyRepo) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	f, ok := m.faculties[id]
	if !ok || f.IsDeleted {
		return nil, sql.ErrNoRows
	}
	copy := *f
	return &copy, nil
}

func (m *mockFacultyRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for _, f := range m.faculties {
		if !f.IsDeleted && f.ID != excludeID && strings.EqualFold(f.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFacultyRepo) Create(ctx context.Context, faculty *models.Faculty) error {
	faculty.ID = uuid.NewString()
	copy := *faculty
	m.faculties[faculty.ID] = &copy
	return nil
}

func (m *mockFacultyRepo) Update(ctx context.Context, faculty *models.Faculty) error {
	copy := *faculty
	m.faculties[faculty.ID] = &copy
	return nil
}

func (m *mockFacultyRepo) SoftDelete(ctx context.Context, id, deletedBy string, deletedAt time.Time) error {
	f, ok := m.faculties[id]
	if !ok {
		return sql.ErrNoRows
	}
	f.IsDeleted = true
	return nil
}

func newFacultyFixture(t *testing.T) (*FacultyService, *mockFacultyRepo, *mockUserRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewCacheService(repository.NewCacheRepository(client, "uerp:"), NewMetricsService(), time.Minute, zap.NewNop())
	repo := &mockFacultyRepo{faculties: make(map[string]*models.Faculty)}
	audit := newMockUserRepo()
	return NewFacultyService(repo, audit, cache, time.Minute, nil, zap.NewNop()), repo, audit
}

func TestFacultyServiceListIsCachedAndInvalidated(t *testing.T) {
	svc, repo, _ := newFacultyFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, superAdmin, dto.FacultyRequest{Name: "Engineering"})
	require.NoError(t, err)

	first, hit, err := svc.List(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := svc.List(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, second, len(first))
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, "Engineering", second[0].Name)
	assert.Equal(t, 1, repo.listCalls)

	_, err = svc.Create(ctx, superAdmin, dto.FacultyRequest{Name: "Medicine"})
	require.NoError(t, err)
	third, hit, err := svc.List(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, third, 2)
	assert.Equal(t, 2, repo.listCalls)
}

func TestFacultyServiceCreateTrimsAndRejectsDuplicates(t *testing.T) {
	svc, _, audit := newFacultyFixture(t)
	ctx := context.Background()

	faculty, err := svc.Create(ctx, superAdmin, dto.FacultyRequest{Name: "  Law  "})
	require.NoError(t, err)
	assert.Equal(t, "Law", faculty.Name)
	assert.Equal(t, "Root Admin", faculty.CreatedBy)
	require.Len(t, audit.auditLogs, 1)
	assert.Equal(t, models.AuditActionFacultyCreate, audit.auditLogs[0].Action)
	assert.Equal(t, models.AuditResourceFaculty, audit.auditLogs[0].Resource)

	_, err = svc.Create(ctx, superAdmin, dto.FacultyRequest{Name: "law"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(ctx, superAdmin, dto.FacultyRequest{Name: "   "})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFacultyServiceUpdate(t *testing.T) {
	svc, _, _ := newFacultyFixture(t)
	ctx := context.Background()

	law, err := svc.Create(ctx, superAdmin, dto.FacultyRequest{Name: "Law"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, superAdmin, dto.FacultyRequest{Name: "History"})
	require.NoError(t, err)

	renamed, err := svc.Update(ctx, superAdmin, law.ID, dto.FacultyRequest{Name: "LAW"})
	require.NoError(t, err)
	assert.Equal(t, "LAW", renamed.Name)
	assert.Equal(t, "Root Admin", models.StringValue(renamed.UpdatedBy))

	_, err = svc.Update(ctx, superAdmin, law.ID, dto.FacultyRequest{Name: "history"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(ctx, superAdmin, "missing", dto.FacultyRequest{Name: "X"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFacultyServiceDelete(t *testing.T) {
	svc, _, _ := newFacultyFixture(t)
	ctx := context.Background()

	law, err := svc.Create(ctx, superAdmin, dto.FacultyRequest{Name: "Law"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, superAdmin, law.ID))

	_, err = svc.Get(ctx, law.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	list, _, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.Create(ctx, superAdmin, dto.FacultyRequest{Name: "Law"})
	require.NoError(t, err)
}

func TestFacultyServiceWithoutCache(t *testing.T) {
	repo := &mockFacultyRepo{faculties: make(map[string]*models.Faculty)}
	svc := NewFacultyService(repo, nil, nil, 0, nil, nil)

	list, hit, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.False(t, hit)
	_, _, err = svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}
