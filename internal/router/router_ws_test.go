package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parallax-gateway/internal/service"
)

func dialChat(t *testing.T, srv *httptest.Server, accessToken string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws?token=" + accessToken
	return websocket.DefaultDialer.Dial(wsURL, nil)
}

func readUntilTerminal(t *testing.T, conn *websocket.Conn) []service.StreamEvent {
	t.Helper()
	var events []service.StreamEvent
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var ev service.StreamEvent
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Done || ev.Error != "" {
			return events
		}
	}
}

func TestChatWebSocket_StreamsAndPersists(t *testing.T) {
	s := newTestServer(t)
	accessToken := s.registerAndLogin("ws@x.com")
	w := s.do(http.MethodPost, "/conversations", accessToken, `{"title":"WS"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var conv map[string]interface{}
	decode(t, w, &conv)
	convID := conv["id"].(string)

	srv := httptest.NewServer(s.engine)
	defer srv.Close()
	conn, _, err := dialChat(t, srv, accessToken)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(service.ChatRequest{ConversationID: convID, Message: "hi"}))
	events := readUntilTerminal(t, conn)
	require.Len(t, events, 3)
	assert.Equal(t, "Hello", events[0].Content)
	assert.Equal(t, " there", events[1].Content)
	assert.True(t, events[2].Done)

	// 同一连接上的第二个请求：会话不存在
	require.NoError(t, conn.WriteJSON(service.ChatRequest{ConversationID: "00000000-0000-0000-0000-000000000000", Message: "hi"}))
	events = readUntilTerminal(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, "Conversation not found", events[0].Error)

	// 缺少字段
	require.NoError(t, conn.WriteJSON(map[string]string{"conversation_id": convID}))
	events = readUntilTerminal(t, conn)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].Error)

	w = s.do(http.MethodGet, "/conversations/"+convID, accessToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	decode(t, w, &got)
	assert.Len(t, got["messages"], 2)
}

func TestChatWebSocket_RejectsBadToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	_, resp, err := dialChat(t, srv, "garbage")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
