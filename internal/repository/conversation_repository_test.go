package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"parallax-gateway/internal/model"
	"parallax-gateway/internal/testutil"
)

func TestConversationRepository_MessagesKeepInsertionOrder(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "a@x.com", "pw123456")
	repo := NewConversationRepository(db)

	conv := &model.Conversation{UserID: user.ID, Title: "T", CurrentMode: model.DefaultMode}
	require.NoError(t, repo.Create(ctx, conv))

	for _, text := range []string{"M1", "M2", "M3"} {
		require.NoError(t, repo.AddMessageOwned(ctx, conv.ID, user.ID, &model.Message{Role: model.RoleUser, Content: text}))
	}

	got, err := repo.FindOwnedWithMessages(ctx, conv.ID, user.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "M1", got.Messages[0].Content)
	assert.Equal(t, "M2", got.Messages[1].Content)
	assert.Equal(t, "M3", got.Messages[2].Content)

	msgs, err := repo.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Messages, msgs)
}

func TestConversationRepository_OwnershipIsNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner@x.com", "pw123456")
	other := testutil.CreateUser(t, db, "other@x.com", "pw123456")
	repo := NewConversationRepository(db)

	conv := &model.Conversation{UserID: owner.ID, Title: "T", CurrentMode: model.DefaultMode}
	require.NoError(t, repo.Create(ctx, conv))

	_, err := repo.FindOwned(ctx, conv.ID, other.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.UpdateOwned(ctx, conv.ID, other.ID, map[string]interface{}{"title": "stolen"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = repo.AddMessageOwned(ctx, conv.ID, other.ID, &model.Message{Role: model.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.ErrorIs(t, repo.DeleteOwned(ctx, conv.ID, other.ID), gorm.ErrRecordNotFound)

	// 失败的归属检查不应产生任何写入
	fresh, err := repo.FindOwnedWithMessages(ctx, conv.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", fresh.Title)
	assert.Empty(t, fresh.Messages)
}

func TestConversationRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "a@x.com", "pw123456")
	repo := NewConversationRepository(db)

	conv := &model.Conversation{UserID: user.ID, Title: "T", CurrentMode: model.DefaultMode}
	require.NoError(t, repo.Create(ctx, conv))
	require.NoError(t, repo.AddMessageOwned(ctx, conv.ID, user.ID, &model.Message{Role: model.RoleUser, Content: "hi"}))

	require.NoError(t, repo.DeleteOwned(ctx, conv.ID, user.ID))
	assert.ErrorIs(t, repo.DeleteOwned(ctx, conv.ID, user.ID), gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, db.Model(&model.Message{}).Where("conversation_id = ?", conv.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConversationRepository_ListNewestUpdatedFirst(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "a@x.com", "pw123456")
	r := NewConversationRepository(db).(*gormConversationRepository)

	base := time.Now()
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first := &model.Conversation{UserID: user.ID, Title: "first", CurrentMode: model.DefaultMode}
	second := &model.Conversation{UserID: user.ID, Title: "second", CurrentMode: model.DefaultMode}
	require.NoError(t, r.Create(ctx, first))
	require.NoError(t, r.Create(ctx, second))

	// 给 first 追加消息后它应排到最前
	require.NoError(t, r.AddMessageOwned(ctx, first.ID, user.ID, &model.Message{Role: model.RoleUser, Content: "bump"}))

	list, err := r.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
}

func TestConversationRepository_UpdateTouchesUpdatedAt(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "a@x.com", "pw123456")
	r := NewConversationRepository(db).(*gormConversationRepository)

	conv := &model.Conversation{UserID: user.ID, Title: "T", CurrentMode: model.DefaultMode}
	require.NoError(t, r.Create(ctx, conv))

	later := conv.UpdatedAt.Add(time.Hour)
	r.now = func() time.Time { return later }

	updated, err := r.UpdateOwned(ctx, conv.ID, user.ID, map[string]interface{}{"current_mode": "explore"})
	require.NoError(t, err)
	assert.Equal(t, "explore", updated.CurrentMode)
	assert.Equal(t, "T", updated.Title)
	assert.True(t, updated.UpdatedAt.After(conv.UpdatedAt))
}
