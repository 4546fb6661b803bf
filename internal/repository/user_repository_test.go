package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"parallax-gateway/internal/model"
	"parallax-gateway/internal/testutil"
	"parallax-gateway/internal/tier"
)

func TestUserRepository_CreateAndFind(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	u := &model.User{Email: "a@x.com", PasswordHash: "h", Tier: tier.Free, IsActive: true}
	require.NoError(t, repo.Create(ctx, u))
	require.NotEmpty(t, u.ID)

	byEmail, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", byID.Email)
	assert.True(t, byID.IsActive)

	_, err = repo.FindByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	require.NoError(t, repo.Create(ctx, &model.User{Email: "a@x.com", PasswordHash: "h", Tier: tier.Free, IsActive: true}))
	err := repo.Create(ctx, &model.User{Email: "a@x.com", PasswordHash: "h2", Tier: tier.Free, IsActive: true})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
