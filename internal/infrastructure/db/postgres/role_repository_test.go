package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/auth-service/internal/core/domain"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestRoleRepository_RolesFor(t *testing.T) {
	db, mock := newDB(t)
	repo := NewRoleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ad.api_name = $1")).
		WithArgs("UPDATE_PASSWORD").
		WillReturnRows(sqlmock.NewRows([]string{"role_name"}).AddRow("ROLE_USER").AddRow("ROLE_ADMIN"))

	roles, err := repo.RolesFor(context.Background(), "UPDATE_PASSWORD")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, roles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_RolesFor_Unmapped(t *testing.T) {
	db, mock := newDB(t)
	repo := NewRoleRepository(db)

	mock.ExpectQuery("SELECT r.role_name").
		WithArgs("x' OR '1'='1").
		WillReturnRows(sqlmock.NewRows([]string{"role_name"}))

	roles, err := repo.RolesFor(context.Background(), "x' OR '1'='1")
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.NotNil(t, roles)
}

func TestRoleRepository_RolesFor_QueryError(t *testing.T) {
	db, mock := newDB(t)
	repo := NewRoleRepository(db)

	mock.ExpectQuery("SELECT r.role_name").WillReturnError(errors.New("boom"))

	_, err := repo.RolesFor(context.Background(), "GET_USER")
	assert.Error(t, err)
}

func TestRoleRepository_DefaultRoles(t *testing.T) {
	db, mock := newDB(t)
	repo := NewRoleRepository(db)

	mock.ExpectQuery("SELECT role_id, role_name, default_role FROM role").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "role_name", "default_role"}).AddRow(int64(1), "ROLE_USER", true))

	roles, err := repo.DefaultRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{{ID: 1, Name: domain.RoleUser, Default: true}}, roles)
}

func TestMigrate_UsesEmbeddedRoot(t *testing.T) {
	db, _ := newDB(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	assert.Error(t, Migrate(context.Background(), db))
}
