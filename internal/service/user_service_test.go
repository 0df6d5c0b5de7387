package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/internal/dto"
	"github.com/itsmahammad/UniversityERP/internal/models"
	"github.com/itsmahammad/UniversityERP/pkg/config"
	appErrors "github.com/itsmahammad/UniversityERP/pkg/errors"
	"github.com/itsmahammad/UniversityERP/pkg/mailer"
	"github.com/itsmahammad/UniversityERP/pkg/security"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listUsers []models.User
	listCount int
	listErr   error
	createErr error
	updates   int
	auditLogs []*models.AuditLog
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string, includeDeleted bool) (*models.User, error) {
	user, ok := m.users[id]
	if !ok || (user.IsDeleted && !includeDeleted) {
		return nil, sql.ErrNoRows
	}
	copy := *user
	return &copy, nil
}

func (m *mockUserRepo) ExistsByCode(ctx context.Context, code, excludeID string, includeDeleted bool) (bool, error) {
	for _, u := range m.users {
		if u.Code == code && u.ID != excludeID && (includeDeleted || !u.IsDeleted) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email, excludeID string, includeDeleted bool) (bool, error) {
	for _, u := range m.users {
		if u.Email == email && u.ID != excludeID && (includeDeleted || !u.IsDeleted) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	m.updates++
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash, updatedBy string, updatedAt time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	m.updates++
	user.PasswordHash = passwordHash
	user.UpdatedBy = &updatedBy
	return nil
}

func (m *mockUserRepo) SoftDelete(ctx context.Context, id, deletedBy string, deletedAt time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	m.updates++
	user.IsDeleted = true
	user.Active = false
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type fakeNotifier struct {
	err      error
	welcomes []string
	resets   []string
}

func (f *fakeNotifier) SendWelcome(ctx context.Context, user *models.User, tempPassword string) error {
	f.welcomes = append(f.welcomes, user.Code)
	return f.err
}

func (f *fakeNotifier) SendPasswordReset(ctx context.Context, user *models.User, tempPassword string) error {
	f.resets = append(f.resets, user.Code)
	return f.err
}

var (
	superAdmin    = models.Actor{ID: "00000000-0000-0000-0000-000000000001", FullName: "Root Admin", Role: models.RoleSuperAdmin}
	academicAdmin = models.Actor{ID: "00000000-0000-0000-0000-000000000002", FullName: "Leyla Academic", Role: models.RoleAcademicAdmin}
)

func newUserFixture(users ...*models.User) (*UserService, *mockUserRepo, *fakeNotifier) {
	repo := newMockUserRepo(users...)
	notifier := &fakeNotifier{}
	svc := NewUserService(repo, security.NewHasher(4), notifier, validator.New(), zap.NewNop(), AccountConfig{EmailDomain: "uni.local", TempPasswordLength: 14})
	return svc, repo, notifier
}

func teacherUser() *models.User {
	email := "teacher@mail.test"
	return &models.User{ID: "t-1", Code: "TCH0001", Email: "tch0001@uni.local", FullName: "Tural Teacher", PersonalEmail: &email, Role: models.RoleTeacher, Active: true}
}

func TestUserServiceList(t *testing.T) {
	svc, repo, _ := newUserFixture()
	repo.listUsers = []models.User{{ID: "1", Code: "AB12345"}}
	repo.listCount = 21

	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 100, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalPages)
}

func TestUserServiceListEmptyIsNotNil(t *testing.T) {
	svc, _, _ := newUserFixture()

	users, pagination, err := svc.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Equal(t, 10, pagination.PageSize)
}

func TestUserServiceCreateDerivesEmail(t *testing.T) {
	svc, repo, notifier := newUserFixture()

	resp, err := svc.Create(context.Background(), academicAdmin, dto.CreateUserRequest{
		Code: " ab12345 ", FullName: "Aysel Babayeva", Role: "teacher", PersonalEmail: "Aysel@Mail.Test",
	})
	require.NoError(t, err)
	assert.Equal(t, "AB12345", resp.Code)
	assert.Equal(t, "ab12345@uni.local", resp.Email)
	assert.Equal(t, models.RoleTeacher, resp.Role)
	assert.True(t, resp.Active)
	assert.Equal(t, "Leyla Academic", resp.CreatedBy)
	assert.True(t, resp.CredentialsEmailed)
	assert.Empty(t, resp.TempPassword)
	assert.Equal(t, []string{"AB12345"}, notifier.welcomes)

	stored := repo.users[resp.ID]
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.PasswordHash)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestUserServiceCreateWithoutPersonalEmailReturnsPassword(t *testing.T) {
	svc, _, notifier := newUserFixture()

	resp, err := svc.Create(context.Background(), academicAdmin, dto.CreateUserRequest{Code: "AB12345", FullName: "Aysel", Role: "Student"})
	require.NoError(t, err)
	assert.Len(t, resp.TempPassword, 14)
	assert.False(t, resp.CredentialsEmailed)
	assert.Empty(t, notifier.welcomes)
}

func TestUserServiceCreateWithExplicitPasswordSendsNothing(t *testing.T) {
	svc, repo, notifier := newUserFixture()
	password := "chosen-pass"

	resp, err := svc.Create(context.Background(), academicAdmin, dto.CreateUserRequest{
		Code: "AB12345", FullName: "Aysel", Role: "Student", PersonalEmail: "a@mail.test", Password: &password,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.TempPassword)
	assert.False(t, resp.CredentialsEmailed)
	assert.Empty(t, notifier.welcomes)
	assert.Equal(t, security.Match, security.NewHasher(4).Verify(repo.users[resp.ID].PasswordHash, password))
}

func TestUserServiceCreateDeliveryFailureKeepsAccount(t *testing.T) {
	svc, repo, notifier := newUserFixture()
	notifier.err = errors.New("smtp down")

	resp, err := svc.Create(context.Background(), academicAdmin, dto.CreateUserRequest{
		Code: "AB12345", FullName: "Aysel", Role: "Student", PersonalEmail: "a@mail.test",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TempPassword)
	assert.Equal(t, deliveryWarning, resp.Warning)
	assert.False(t, resp.CredentialsEmailed)
	assert.Contains(t, repo.users, resp.ID)
}

func TestUserServiceCreateMultibytePassword(t *testing.T) {
	svc, repo, _ := newUserFixture()
	password := strings.Repeat("ş", 40)

	resp, err := svc.Create(context.Background(), academicAdmin, dto.CreateUserRequest{
		Code: "AB12345", FullName: "Aysel", Role: "Student", Password: &password,
	})
	require.NoError(t, err)
	assert.Equal(t, security.Match, security.NewHasher(4).Verify(repo.users[resp.ID].PasswordHash, password))
}

func TestUserServiceCreateDuplicateCodeIncludingDeleted(t *testing.T) {
	deleted := &models.User{ID: "old", Code: "AB12345", Email: "ab12345@uni.local", IsDeleted: true}
	svc, repo, _ := newUserFixture(deleted)

	_, err := svc.Create(context.Background(), academicAdmin, dto.CreateUserRequest{Code: "ab12345", FullName: "Aysel", Role: "Student"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.users, 1)
	assert.Empty(t, repo.auditLogs)
}

func TestUserServiceCreateUniqueViolationMapsToConflict(t *testing.T) {
	svc, repo, _ := newUserFixture()
	repo.createErr = &pq.Error{Code: "23505"}

	_, err := svc.Create(context.Background(), academicAdmin, dto.CreateUserRequest{Code: "AB12345", FullName: "Aysel", Role: "Student"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRejections(t *testing.T) {
	cases := []struct {
		name  string
		actor models.Actor
		req   dto.CreateUserRequest
		code  string
	}{
		{"short code", academicAdmin, dto.CreateUserRequest{Code: "AB1", FullName: "X", Role: "Student"}, appErrors.ErrValidation.Code},
		{"symbol in code", academicAdmin, dto.CreateUserRequest{Code: "AB-12345", FullName: "X", Role: "Student"}, appErrors.ErrValidation.Code},
		{"unknown role", academicAdmin, dto.CreateUserRequest{Code: "AB12345", FullName: "X", Role: "Dean"}, appErrors.ErrValidation.Code},
		{"bad personal email", academicAdmin, dto.CreateUserRequest{Code: "AB12345", FullName: "X", Role: "Student", PersonalEmail: "nope"}, appErrors.ErrValidation.Code},
		{"elevation by admin", academicAdmin, dto.CreateUserRequest{Code: "AB12345", FullName: "X", Role: "SuperAdmin"}, appErrors.ErrInsufficientPrivilege.Code},
		{"non admin caller", models.Actor{ID: "t", Role: models.RoleTeacher}, dto.CreateUserRequest{Code: "AB12345", FullName: "X", Role: "Student"}, appErrors.ErrForbidden.Code},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := newUserFixture()
			_, err := svc.Create(context.Background(), tc.actor, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
			assert.Empty(t, repo.users)
		})
	}
}

func TestUserServiceSuperAdminCanCreateSuperAdmin(t *testing.T) {
	svc, _, _ := newUserFixture()

	resp, err := svc.Create(context.Background(), superAdmin, dto.CreateUserRequest{Code: "ROOT2", FullName: "Second Root", Role: "superadmin"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, resp.Role)
}

func TestUserServiceUpdateProfile(t *testing.T) {
	svc, repo, _ := newUserFixture(teacherUser())

	user, err := svc.Update(context.Background(), academicAdmin, "t-1", dto.UpdateUserRequest{FullName: " Tural Updated ", PositionTitle: "Lecturer"})
	require.NoError(t, err)
	assert.Equal(t, "Tural Updated", user.FullName)
	assert.Nil(t, user.PersonalEmail)
	assert.Equal(t, "Lecturer", models.StringValue(user.PositionTitle))
	assert.Equal(t, "Leyla Academic", models.StringValue(repo.users["t-1"].UpdatedBy))
	require.Len(t, repo.auditLogs, 1)
	assert.Contains(t, string(repo.auditLogs[0].OldValues), "Tural Teacher")
}

func TestUserServiceUpdateMissing(t *testing.T) {
	svc, _, _ := newUserFixture()

	_, err := svc.Update(context.Background(), academicAdmin, "missing", dto.UpdateUserRequest{FullName: "X"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceChangeRole(t *testing.T) {
	t.Run("admin cannot elevate to super admin", func(t *testing.T) {
		svc, repo, _ := newUserFixture(teacherUser())
		_, err := svc.ChangeRole(context.Background(), academicAdmin, "t-1", dto.ChangeRoleRequest{Role: "SuperAdmin"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInsufficientPrivilege.Code, appErrors.FromError(err).Code)
		assert.Equal(t, models.RoleTeacher, repo.users["t-1"].Role)
	})

	t.Run("super admin elevates", func(t *testing.T) {
		svc, repo, _ := newUserFixture(teacherUser())
		user, err := svc.ChangeRole(context.Background(), superAdmin, "t-1", dto.ChangeRoleRequest{Role: "SuperAdmin"})
		require.NoError(t, err)
		assert.Equal(t, models.RoleSuperAdmin, user.Role)
		require.Len(t, repo.auditLogs, 1)
		assert.Equal(t, models.AuditActionRoleChange, repo.auditLogs[0].Action)
	})

	t.Run("same role is a no-op", func(t *testing.T) {
		svc, repo, _ := newUserFixture(teacherUser())
		user, err := svc.ChangeRole(context.Background(), academicAdmin, "t-1", dto.ChangeRoleRequest{Role: "teacher"})
		require.NoError(t, err)
		assert.Equal(t, models.RoleTeacher, user.Role)
		assert.Zero(t, repo.updates)
		assert.Nil(t, repo.users["t-1"].UpdatedBy)
		assert.Empty(t, repo.auditLogs)
	})

	t.Run("super admin cannot demote self", func(t *testing.T) {
		self := &models.User{ID: superAdmin.ID, Code: "ROOT1", Role: models.RoleSuperAdmin, Active: true}
		svc, _, _ := newUserFixture(self)
		_, err := svc.ChangeRole(context.Background(), superAdmin, self.ID, dto.ChangeRoleRequest{Role: "Teacher"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrSelfAction.Code, appErrors.FromError(err).Code)
	})
}

func TestUserServiceSetActive(t *testing.T) {
	t.Run("deactivate", func(t *testing.T) {
		svc, repo, _ := newUserFixture(teacherUser())
		user, err := svc.SetActive(context.Background(), academicAdmin, "t-1", false)
		require.NoError(t, err)
		assert.False(t, user.Active)
		require.Len(t, repo.auditLogs, 1)
		assert.Equal(t, models.AuditActionUserDeactivate, repo.auditLogs[0].Action)
	})

	t.Run("already active is a no-op", func(t *testing.T) {
		svc, repo, _ := newUserFixture(teacherUser())
		_, err := svc.SetActive(context.Background(), academicAdmin, "t-1", true)
		require.NoError(t, err)
		assert.Zero(t, repo.updates)
		assert.Empty(t, repo.auditLogs)
	})

	t.Run("self deactivate is refused", func(t *testing.T) {
		self := &models.User{ID: academicAdmin.ID, Code: "ADM0001", Role: models.RoleAcademicAdmin, Active: true}
		svc, repo, _ := newUserFixture(self)
		_, err := svc.SetActive(context.Background(), academicAdmin, self.ID, false)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrSelfAction.Code, appErrors.FromError(err).Code)
		assert.True(t, repo.users[self.ID].Active)
		assert.Empty(t, repo.auditLogs)
	})

	t.Run("admin cannot touch super admin", func(t *testing.T) {
		root := &models.User{ID: "root", Code: "ROOT1", Role: models.RoleSuperAdmin, Active: true}
		svc, _, _ := newUserFixture(root)
		_, err := svc.SetActive(context.Background(), academicAdmin, "root", false)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInsufficientPrivilege.Code, appErrors.FromError(err).Code)
	})
}

func TestUserServiceDelete(t *testing.T) {
	svc, repo, _ := newUserFixture(teacherUser())

	require.NoError(t, svc.Delete(context.Background(), academicAdmin, "t-1"))
	assert.True(t, repo.users["t-1"].IsDeleted)
	assert.False(t, repo.users["t-1"].Active)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDelete, repo.auditLogs[0].Action)

	_, err := svc.Get(context.Background(), "t-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeleteSelfRefused(t *testing.T) {
	self := &models.User{ID: academicAdmin.ID, Code: "ADM0001", Role: models.RoleAcademicAdmin, Active: true}
	svc, repo, _ := newUserFixture(self)

	err := svc.Delete(context.Background(), academicAdmin, self.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSelfAction.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.users[self.ID].IsDeleted)
}

func TestUserServiceResetPassword(t *testing.T) {
	t.Run("generated password is emailed", func(t *testing.T) {
		svc, repo, notifier := newUserFixture(teacherUser())
		resp, err := svc.ResetPassword(context.Background(), academicAdmin, "t-1", dto.ResetPasswordRequest{})
		require.NoError(t, err)
		assert.True(t, resp.CredentialsEmailed)
		assert.Empty(t, resp.TempPassword)
		assert.Equal(t, []string{"TCH0001"}, notifier.resets)
		assert.NotEmpty(t, repo.users["t-1"].PasswordHash)
		require.Len(t, repo.auditLogs, 1)
		assert.Equal(t, models.AuditActionPasswordReset, repo.auditLogs[0].Action)
	})

	t.Run("delivery failure returns the password", func(t *testing.T) {
		svc, _, notifier := newUserFixture(teacherUser())
		notifier.err = errors.New("smtp down")
		resp, err := svc.ResetPassword(context.Background(), academicAdmin, "t-1", dto.ResetPasswordRequest{})
		require.NoError(t, err)
		assert.Len(t, resp.TempPassword, 14)
		assert.Equal(t, deliveryWarning, resp.Warning)
	})

	t.Run("smtp disabled returns the password", func(t *testing.T) {
		sender, err := mailer.New(config.SMTPConfig{}, zap.NewNop())
		require.NoError(t, err)
		repo := newMockUserRepo(teacherUser())
		svc := NewUserService(repo, security.NewHasher(4), NewCredentialNotifier(sender, nil, nil), validator.New(), zap.NewNop(), AccountConfig{EmailDomain: "uni.local", TempPasswordLength: 14})

		resp, err := svc.ResetPassword(context.Background(), academicAdmin, "t-1", dto.ResetPasswordRequest{})
		require.NoError(t, err)
		assert.False(t, resp.CredentialsEmailed)
		assert.Len(t, resp.TempPassword, 14)
		assert.Equal(t, deliveryWarning, resp.Warning)
	})

	t.Run("explicit password", func(t *testing.T) {
		svc, repo, notifier := newUserFixture(teacherUser())
		chosen := "Admin-Chosen1"
		resp, err := svc.ResetPassword(context.Background(), academicAdmin, "t-1", dto.ResetPasswordRequest{NewPassword: &chosen})
		require.NoError(t, err)
		assert.Empty(t, resp.TempPassword)
		assert.Empty(t, notifier.resets)
		assert.Equal(t, security.Match, security.NewHasher(4).Verify(repo.users["t-1"].PasswordHash, chosen))
		assert.False(t, strings.Contains(string(repo.auditLogs[0].NewValues), chosen))
	})
}
