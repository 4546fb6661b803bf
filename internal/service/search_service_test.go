package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parallax-gateway/internal/model"
)

type recordingSearcher struct {
	userID string
	query  string
	size   int
	hits   []model.SearchHit
	err    error
}

func (r *recordingSearcher) Search(_ context.Context, userID, query string, size int) ([]model.SearchHit, error) {
	r.userID, r.query, r.size = userID, query, size
	return r.hits, r.err
}

func TestSearchService_ScopesToUserAndClampsSize(t *testing.T) {
	searcher := &recordingSearcher{hits: []model.SearchHit{{ConversationID: "c1", Content: "hello"}}}
	svc := NewSearchService(searcher)
	user := &model.User{ID: "user-1"}

	hits, err := svc.SearchMessages(context.Background(), user, "  hello ", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, "user-1", searcher.userID)
	assert.Equal(t, "hello", searcher.query)
	assert.Equal(t, defaultSearchSize, searcher.size)

	_, err = svc.SearchMessages(context.Background(), user, "hello", 5000)
	require.NoError(t, err)
	assert.Equal(t, maxSearchSize, searcher.size)
}

func TestSearchService_BlankQuery(t *testing.T) {
	searcher := &recordingSearcher{}
	svc := NewSearchService(searcher)

	hits, err := svc.SearchMessages(context.Background(), &model.User{ID: "u"}, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Empty(t, searcher.userID, "backend must not be queried")
}

func TestSearchService_BackendError(t *testing.T) {
	backendErr := errors.New("cluster unavailable")
	svc := NewSearchService(&recordingSearcher{err: backendErr})

	_, err := svc.SearchMessages(context.Background(), &model.User{ID: "u"}, "q", 10)
	assert.ErrorIs(t, err, backendErr)
}
