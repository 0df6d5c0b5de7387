package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmahammad/UniversityERP/internal/models"
)

var facultyColumnNames = []string{"id", "name", "is_deleted", "created_at", "created_by", "updated_at", "updated_by"}

func TestFacultyRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacultyRepository(db)

	rows := sqlmock.NewRows(facultyColumnNames).
		AddRow("f-1", "Engineering", false, time.Now(), "Root", nil, nil).
		AddRow("f-2", "Medicine", false, time.Now(), "Root", nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM faculties WHERE is_deleted = FALSE ORDER BY name ASC")).WillReturnRows(rows)

	faculties, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, faculties, 2)
	assert.Equal(t, "Engineering", faculties[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacultyRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacultyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM faculties WHERE LOWER(name) = LOWER($1) AND is_deleted = FALSE AND id <> $2)")).
		WithArgs("Engineering", testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	found, err := repo.ExistsByName(context.Background(), "Engineering", testUserID)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacultyRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacultyRepository(db)

	mock.ExpectExec("INSERT INTO faculties").WillReturnResult(sqlmock.NewResult(1, 1))

	faculty := &models.Faculty{Name: "Law", CreatedBy: "Root"}
	require.NoError(t, repo.Create(context.Background(), faculty))
	assert.NotEmpty(t, faculty.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacultyRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacultyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE faculties SET is_deleted = TRUE")).
		WithArgs(testUserID, sqlmock.AnyArg(), "Root").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), testUserID, "Root", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacultyRepositoryFindByIDMalformed(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewFacultyRepository(db)

	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
