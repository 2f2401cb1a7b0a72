package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/invisicipher/internal/errs"
	"github.com/and161185/invisicipher/internal/model"
	"github.com/and161185/invisicipher/internal/repository"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

var _ repository.UserRepository = (*UserRepo)(nil)

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row. The unique indexes on username and email make the
// insert itself the uniqueness check, so concurrent signups cannot both succeed.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (full_name, email, phone, username, pwd_hash, salt_auth)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, u.FullName, u.Email, u.Phone, u.Username, u.PwdHash, u.SaltAuth).
		Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const q = `
SELECT id, full_name, email, COALESCE(phone, ''), username, pwd_hash, salt_auth, created_at
FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByIdentifier selects a user by username or email, preferring the username match.
func (r *UserRepo) GetByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	const q = `
SELECT id, full_name, email, COALESCE(phone, ''), username, pwd_hash, salt_auth, created_at
FROM users WHERE username=$1 OR email=$1
ORDER BY (username=$1) DESC
LIMIT 1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, identifier))
}

// Ping checks the pool.
func (r *UserRepo) Ping(ctx context.Context) error { return r.db.Pool.Ping(ctx) }

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.Username, &u.PwdHash, &u.SaltAuth, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}
