package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/todo-auth/internal/model"
)

func TestMemoryUserRepo_UniqueEmail(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepo()

	u, err := r.Create(ctx, "A@B.com", "hash", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)

	_, err = r.Create(ctx, " a@b.COM", "hash2", "Other")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestMemoryUserRepo_DeactivatedHiddenFromEmailLookup(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepo()
	u, err := r.Create(ctx, "a@b.com", "hash", "Alice")
	require.NoError(t, err)

	inactive := false
	updated, err := r.Update(ctx, u.ID, model.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.False(t, updated.UpdatedAt.Before(u.UpdatedAt))

	_, err = r.GetByEmail(ctx, "a@b.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	byID, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, byID.IsActive)
}

func TestMemoryUserRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepo()
	u, err := r.Create(ctx, "a@b.com", "hash", "Alice")
	require.NoError(t, err)

	u.DisplayName = "Mallory"
	got, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)
}

func TestMemoryUserRepo_UpdateMissing(t *testing.T) {
	name := "x"
	_, err := NewMemoryUserRepo().Update(context.Background(), "nope", model.UserUpdate{DisplayName: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
