package es

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHits(t *testing.T) {
	body := `{"hits":{"hits":[
		{"_score":1.5,"_source":{"message_id":"m1","conversation_id":"c1","user_id":"u1","role":"user","content":"hello world","created_at":"2025-01-02T03:04:05Z"}},
		{"_score":0.7,"_source":{"message_id":"m2","conversation_id":"c1","user_id":"u1","role":"assistant","content":"hello back","created_at":"2025-01-02T03:04:06Z"}}
	]}}`

	hits, err := decodeHits(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "m1", hits[0].MessageID)
	assert.Equal(t, 1.5, hits[0].Score)
	assert.Equal(t, "assistant", hits[1].Role)
	assert.Equal(t, 2025, hits[1].CreatedAt.Year())
}

func TestDecodeHits_Empty(t *testing.T) {
	hits, err := decodeHits(strings.NewReader(`{"hits":{"hits":[]}}`))
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}
