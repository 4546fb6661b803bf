package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parallax-gateway/internal/model"
	"parallax-gateway/internal/repository"
	"parallax-gateway/internal/testutil"
)

func newConversationService(t *testing.T) (ConversationService, *model.User, *model.User) {
	t.Helper()
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice@x.com", "pw123456")
	bob := testutil.CreateUser(t, db, "bob@x.com", "pw123456")
	return NewConversationService(repository.NewConversationRepository(db), nil), alice, bob
}

func TestConversationService_Defaults(t *testing.T) {
	svc, alice, _ := newConversationService(t)

	conv, err := svc.Create(context.Background(), alice.ID, "  ", "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConversationTitle, conv.Title)
	assert.Equal(t, model.DefaultMode, conv.CurrentMode)
	assert.Equal(t, alice.ID, conv.UserID)
}

func TestConversationService_RoundTrip(t *testing.T) {
	svc, alice, _ := newConversationService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, alice.ID, "T", "balanced")
	require.NoError(t, err)

	_, err = svc.AddMessage(ctx, conv.ID, alice.ID, model.RoleUser, "one", nil)
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, conv.ID, alice.ID, model.RoleAssistant, "two", nil)
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, conv.ID, alice.ID, model.RoleUser, "three", nil)
	require.NoError(t, err)

	got, err := svc.Get(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, []string{"one", "two", "three"},
		[]string{got.Messages[0].Content, got.Messages[1].Content, got.Messages[2].Content})
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestConversationService_ForeignOwnerIsNotFound(t *testing.T) {
	svc, alice, bob := newConversationService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, alice.ID, "private", "")
	require.NoError(t, err)

	title := "stolen"
	_, err = svc.Get(ctx, conv.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(ctx, conv.ID, bob.ID, ConversationPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.UpdateMode(ctx, conv.ID, bob.ID, "creative")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.AddMessage(ctx, conv.ID, bob.ID, model.RoleUser, "hi", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, conv.ID, bob.ID), ErrNotFound)

	// 未知 id 与格式错误的 id 同样是 404
	_, err = svc.Get(ctx, uuid.NewString(), alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, "not-a-uuid", alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// alice 的数据不受影响
	got, err := svc.Get(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "private", got.Title)
	assert.Empty(t, got.Messages)
}

func TestConversationService_UpdatePatch(t *testing.T) {
	svc, alice, _ := newConversationService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, alice.ID, "T", "balanced")
	require.NoError(t, err)

	title := "Renamed"
	got, err := svc.Update(ctx, conv.ID, alice.ID, ConversationPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "balanced", got.CurrentMode)

	got, err = svc.UpdateMode(ctx, conv.ID, alice.ID, "concise")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "concise", got.CurrentMode)
}

func TestConversationService_DeleteTwice(t *testing.T) {
	svc, alice, _ := newConversationService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, alice.ID, "T", "")
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, conv.ID, alice.ID, model.RoleUser, "hi", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, conv.ID, alice.ID))
	assert.ErrorIs(t, svc.Delete(ctx, conv.ID, alice.ID), ErrNotFound)

	list, err := svc.List(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConversationService_InvalidRole(t *testing.T) {
	svc, alice, _ := newConversationService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, alice.ID, "T", "")
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, conv.ID, alice.ID, "system", "x", nil)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

type recordingIndexer struct {
	indexed []string
	deleted []string
}

func (r *recordingIndexer) IndexMessage(_ context.Context, _ string, msg *model.Message) error {
	r.indexed = append(r.indexed, msg.ID)
	return nil
}

func (r *recordingIndexer) DeleteConversation(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func TestConversationService_Indexer(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice@x.com", "pw123456")
	idx := &recordingIndexer{}
	svc := NewConversationService(repository.NewConversationRepository(db), idx)
	ctx := context.Background()

	conv, err := svc.Create(ctx, alice.ID, "T", "")
	require.NoError(t, err)
	msg, err := svc.AddMessage(ctx, conv.ID, alice.ID, model.RoleUser, "hi", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, conv.ID, alice.ID))

	assert.Equal(t, []string{msg.ID}, idx.indexed)
	assert.Equal(t, []string{conv.ID}, idx.deleted)
}

func TestConversationService_History(t *testing.T) {
	svc, alice, bob := newConversationService(t)
	ctx := context.Background()

	conv, err := svc.Create(ctx, alice.ID, "T", "")
	require.NoError(t, err)

	msgs, err := svc.History(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	for _, content := range []string{"one", "two", "three"} {
		_, err = svc.AddMessage(ctx, conv.ID, alice.ID, model.RoleUser, content, nil)
		require.NoError(t, err)
	}
	msgs, err = svc.History(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "three", msgs[2].Content)

	_, err = svc.History(ctx, conv.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.History(ctx, "not-a-uuid", alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.History(ctx, uuid.NewString(), alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
