// Package memory implements an in-memory credential store for development and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/invisicipher/internal/errs"
	"github.com/and161185/invisicipher/internal/model"
	"github.com/and161185/invisicipher/internal/repository"
)

// UserRepo keeps users in memory. A single mutex covers the uniqueness check and the insert.
type UserRepo struct {
	mu     sync.Mutex
	users  []*model.User
	nextID int64
	now    func() time.Time
}

var _ repository.UserRepository = (*UserRepo)(nil)

// NewUserRepo creates an empty store.
func NewUserRepo() *UserRepo {
	return &UserRepo{nextID: 1, now: time.Now}
}

// Create inserts u unless its username or email is already present.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, x := range r.users {
		if x.Username == u.Username || x.Email == u.Email {
			return errs.ErrAlreadyExists
		}
	}

	u.ID = r.nextID
	u.CreatedAt = r.now().UTC()
	r.nextID++

	cpy := *u
	r.users = append(r.users, &cpy)
	return nil
}

// GetByID returns a copy of the user with the given id.
func (r *UserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

// GetByIdentifier looks up by username first, then by email.
func (r *UserRepo) GetByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var byEmail *model.User
	for _, u := range r.users {
		if u.Username == identifier {
			c := *u
			return &c, nil
		}
		if byEmail == nil && u.Email == identifier {
			byEmail = u
		}
	}
	if byEmail == nil {
		return nil, errs.ErrNotFound
	}
	c := *byEmail
	return &c, nil
}

// Ping always succeeds.
func (r *UserRepo) Ping(context.Context) error { return nil }
