package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/invisicipher/internal/errs"
	"github.com/and161185/invisicipher/internal/model"
)

func user(username, email string) *model.User {
	return &model.User{FullName: "Test", Username: username, Email: email, PwdHash: []byte("h"), SaltAuth: []byte("s")}
}

func TestUserRepo_CreateAssignsIDs(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()

	a := user("alice", "a@example.com")
	require.NoError(t, r.Create(ctx, a))
	b := user("bob", "b@example.com")
	require.NoError(t, r.Create(ctx, b))

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestUserRepo_DuplicateUsernameOrEmail(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, user("alice", "a@example.com")))

	require.ErrorIs(t, r.Create(ctx, user("alice", "other@example.com")), errs.ErrAlreadyExists)
	require.ErrorIs(t, r.Create(ctx, user("alice2", "a@example.com")), errs.ErrAlreadyExists)
}

func TestUserRepo_Lookups(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()
	a := user("alice", "a@example.com")
	require.NoError(t, r.Create(ctx, a))

	got, err := r.GetByIdentifier(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = r.GetByIdentifier(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = r.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = r.GetByIdentifier(ctx, "nobody")
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = r.GetByID(ctx, 42)
	require.ErrorIs(t, err, errs.ErrNotFound)

	// returned values are copies
	got.Username = "mallory"
	again, _ := r.GetByID(ctx, a.ID)
	assert.Equal(t, "alice", again.Username)
}

func TestUserRepo_UsernameMatchWinsOverEmail(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()
	first := user("x", "c@example.com")
	require.NoError(t, r.Create(ctx, first))
	second := user("c@example.com", "y@example.com")
	require.NoError(t, r.Create(ctx, second))

	got, err := r.GetByIdentifier(ctx, "c@example.com")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestUserRepo_ConcurrentSignupsAdmitOne(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()

	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.Create(ctx, user("alice", fmt.Sprintf("a%d@example.com", i)))
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, errs.ErrAlreadyExists):
				dup.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(49), dup.Load())
}
