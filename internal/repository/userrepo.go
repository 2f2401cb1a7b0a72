// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/invisicipher/internal/model"
)

// UserRepository is the credential store. Implementations must keep username and email
// unique even under concurrent Create calls.
type UserRepository interface {
	// Create inserts a new user and fills u.ID and u.CreatedAt.
	// It returns errs.ErrAlreadyExists when the username or email is taken.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByIdentifier loads a user whose username or email equals identifier.
	// A username match takes precedence over an email match.
	GetByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
