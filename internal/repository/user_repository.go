package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"krishimitra/api/internal/models"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user unless the username or mobile is taken. The
// conflict check and the write are a single statement, so concurrent
// signups for the same username cannot both succeed.
func (r *UserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (
			id, username, mobile, first_name, last_name, password_hash, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW()
		)
		ON CONFLICT DO NOTHING
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Mobile,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
	).Scan(&user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserConflict
		}
		return models.User{}, storageErr("create user", err)
	}
	return user, nil
}

func (r *UserRepository) ExistsByUsernameOrMobile(ctx context.Context, username string, mobile string) (bool, error) {
	const query = `
		SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR mobile = $2)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, username, mobile).Scan(&exists); err != nil {
		return false, storageErr("check user exists", err)
	}
	return exists, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	const query = `
		SELECT id, username, mobile, first_name, last_name, password_hash, created_at, last_login_at
		FROM users WHERE username = $1
	`
	return r.scanOne(ctx, "find user by username", query, username)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, username, mobile, first_name, last_name, password_hash, created_at, last_login_at
		FROM users WHERE id = $1
	`
	return r.scanOne(ctx, "get user by id", query, id)
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE users SET last_login_at = $2 WHERE id = $1
	`
	cmd, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return storageErr("touch last login", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanOne(ctx context.Context, op string, query string, arg any) (models.User, error) {
	row := r.db.QueryRow(ctx, query, arg)
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Mobile,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.LastLoginAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, storageErr(op, err)
	}
	return user, nil
}
