package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krishimitra/api/internal/models"
)

func newMockRepo(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepository(mock), mock
}

var userColumns = []string{
	"id", "username", "mobile", "first_name", "last_name", "password_hash", "created_at", "last_login_at",
}

func testUser() models.User {
	return models.User{
		ID:           "2bKpMhxQ5Y0Xv6tC1hN8a3sZk4R",
		Username:     "farmer_joe",
		Mobile:       "9876543210",
		FirstName:    "Joe",
		LastName:     "Smith",
		PasswordHash: "$2a$12$hash",
	}
}

func TestUserRepository_Create_Success(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := testUser()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`(?s)INSERT INTO users .* ON CONFLICT DO NOTHING\s+RETURNING created_at`).
		WithArgs(user.ID, user.Username, user.Mobile, user.FirstName, user.LastName, user.PasswordHash).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	got, err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, user.Username, got.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_Conflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := testUser()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(user.ID, user.Username, user.Mobile, user.FirstName, user.LastName, user.PasswordHash).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}))

	_, err := repo.Create(context.Background(), user)
	assert.ErrorIs(t, err, ErrUserConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_StorageError(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := testUser()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(user.ID, user.Username, user.Mobile, user.FirstName, user.LastName, user.PasswordHash).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.Create(context.Background(), user)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestUserRepository_ExistsByUsernameOrMobile(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE username = \$1 OR mobile = \$2\)`).
		WithArgs("farmer_joe", "9876543210").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByUsernameOrMobile(context.Background(), "farmer_joe", "9876543210")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByUsername(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := testUser()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	lastLogin := created.Add(time.Hour)

	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE username = \$1`).
		WithArgs(user.Username).
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(
			user.ID, user.Username, user.Mobile, user.FirstName, user.LastName, user.PasswordHash, created, &lastLogin,
		))

	got, err := repo.FindByUsername(context.Background(), user.Username)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.PasswordHash, got.PasswordHash)
	require.NotNil(t, got.LastLoginAt)
	assert.Equal(t, lastLogin, *got.LastLoginAt)
}

func TestUserRepository_FindByUsername_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(userColumns))

	_, err := repo.FindByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_GetByID_NeverLoggedIn(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := testUser()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE id = \$1`).
		WithArgs(user.ID).
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(
			user.ID, user.Username, user.Mobile, user.FirstName, user.LastName, user.PasswordHash, created, (*time.Time)(nil),
		))

	got, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastLoginAt)
}

func TestUserRepository_TouchLastLogin(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`UPDATE users SET last_login_at = \$2 WHERE id = \$1`).
		WithArgs("u-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users SET last_login_at`).
		WithArgs("u-2", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.TouchLastLogin(context.Background(), "u-1", at))
	assert.ErrorIs(t, repo.TouchLastLogin(context.Background(), "u-2", at), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
