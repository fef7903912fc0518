package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"product_catalog/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

var userRowColumns = []string{"id", "name", "email", "password_hash", "role", "token_version", "created_at", "updated_at"}

func TestUserRepository_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`^INSERT INTO users`).
		WithArgs("Ann", "ann@example.com", "hash", model.RoleUser).
		WillReturnRows(pgxmock.NewRows([]string{"id", "token_version", "created_at", "updated_at"}).
			AddRow(id, 0, now, now))

	user := &model.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "hash", Role: model.RoleUser}
	err := repo.Create(context.Background(), user)

	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, now, user.CreatedAt)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`^INSERT INTO users`).
		WithArgs("Ann", "ann@example.com", "hash", model.RoleUser).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := repo.Create(context.Background(), &model.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "hash", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepository_FindByEmail(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM users WHERE email = \$1`).
		WithArgs("ann@example.com").
		WillReturnRows(pgxmock.NewRows(userRowColumns).
			AddRow(id, "Ann", "ann@example.com", "hash", model.RoleAdmin, 3, now, now))

	user, err := repo.FindByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, model.RoleAdmin, user.Role)
	assert.Equal(t, 3, user.TokenVersion)
}

func TestUserRepository_FindByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id := uuid.New()
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(userRowColumns))

	user, err := repo.FindByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestUserRepository_FindByID_DBError(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id := uuid.New()
	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(errors.New("db down"))

	_, err := repo.FindByID(context.Background(), id)
	assert.ErrorContains(t, err, "failed to find user by ID: db down")
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	id := uuid.New()

	t.Run("duplicate email", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`^UPDATE users SET name = \$1, email = \$2`).
			WithArgs("Ann", "taken@example.com", id).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := NewUserRepository(mock).UpdateProfile(context.Background(), &model.User{ID: id, Name: "Ann", Email: "taken@example.com"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("missing user", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`^UPDATE users SET name = \$1, email = \$2`).
			WithArgs("Ann", "ann@example.com", id).
			WillReturnRows(pgxmock.NewRows([]string{"updated_at"}))

		err := NewUserRepository(mock).UpdateProfile(context.Background(), &model.User{ID: id, Name: "Ann", Email: "ann@example.com"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUserRepository_UpdatePassword_BumpsVersion(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id := uuid.New()
	mock.ExpectQuery(`token_version = token_version \+ 1`).
		WithArgs("newhash", id).
		WillReturnRows(pgxmock.NewRows([]string{"token_version"}).AddRow(5))

	version, err := repo.UpdatePassword(context.Background(), id, "newhash")
	require.NoError(t, err)
	assert.Equal(t, 5, version)
}

func TestUserRepository_IncrementTokenVersion(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id := uuid.New()
	mock.ExpectQuery(`^UPDATE users SET token_version = token_version \+ 1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"token_version"}).AddRow(2))

	version, err := repo.IncrementTokenVersion(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestUserRepository_IncrementTokenVersion_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id := uuid.New()
	mock.ExpectQuery(`^UPDATE users SET token_version = token_version \+ 1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"token_version"}))

	_, err := repo.IncrementTokenVersion(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}
