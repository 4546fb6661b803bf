package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parallax-gateway/internal/model"
	"parallax-gateway/internal/repository"
	"parallax-gateway/internal/testutil"
)

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, name, _ string, data []byte) error {
	m.objects[name] = data
	return nil
}

func (m *memoryStore) PresignedURL(_ context.Context, name string, _ time.Duration) (string, error) {
	return "https://objects.test/" + name, nil
}

func TestExportService_WritesTranscript(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice@x.com", "pw123456")
	bob := testutil.CreateUser(t, db, "bob@x.com", "pw123456")
	conversations := NewConversationService(repository.NewConversationRepository(db), nil)
	store := &memoryStore{objects: map[string][]byte{}}
	svc := NewExportService(conversations, store, 15*time.Minute)
	ctx := context.Background()

	conv, err := conversations.Create(ctx, alice.ID, "T", "")
	require.NoError(t, err)
	_, err = conversations.AddMessage(ctx, conv.ID, alice.ID, model.RoleUser, "hi", nil)
	require.NoError(t, err)

	res, err := svc.Export(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	objectName := ExportObjectName(alice.ID, conv.ID)
	assert.Equal(t, "https://objects.test/"+objectName, res.URL)
	assert.True(t, res.ExpiresAt.After(time.Now()))

	var doc struct {
		Conversation model.Conversation `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(store.objects[objectName], &doc))
	assert.Equal(t, conv.ID, doc.Conversation.ID)
	require.Len(t, doc.Conversation.Messages, 1)
	assert.Equal(t, "hi", doc.Conversation.Messages[0].Content)

	_, err = svc.Export(ctx, conv.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportService_Disabled(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "a@x.com", "pw123456")
	stranger := testutil.CreateUser(t, db, "b@x.com", "pw123456")
	conversations := NewConversationService(repository.NewConversationRepository(db), nil)
	conv, err := conversations.Create(context.Background(), owner.ID, "T", "")
	require.NoError(t, err)
	svc := NewExportService(conversations, nil, time.Minute)

	_, err = svc.Export(context.Background(), conv.ID, owner.ID)
	assert.ErrorIs(t, err, ErrFeatureDisabled)

	// 未配置存储时，别人的或不存在的会话仍然是 404
	_, err = svc.Export(context.Background(), conv.ID, stranger.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Export(context.Background(), "not-a-uuid", owner.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchService_Disabled(t *testing.T) {
	svc := NewSearchService(nil)
	_, err := svc.SearchMessages(context.Background(), &model.User{ID: "u"}, "q", 10)
	assert.ErrorIs(t, err, ErrFeatureDisabled)
}
