package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"parallax-gateway/internal/middleware"
	"parallax-gateway/internal/service"
	"parallax-gateway/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源，与 CORS 配置一致
		},
	}
)

// ChatHandler 负责 SSE 与 WebSocket 两种聊天流入口。
type ChatHandler struct {
	chatService service.ChatService
	resolver    middleware.TokenResolver
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, resolver middleware.TokenResolver) *ChatHandler {
	return &ChatHandler{chatService: chatService, resolver: resolver}
}

// sseSink 把事件写成 `data: {...}\n\n` 并立即 flush。
type sseSink struct {
	w gin.ResponseWriter
}

func (s *sseSink) Send(event service.StreamEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

// Stream 处理 POST /chat，以 Server-Sent Events 返回回答。
// 流开始前的错误（校验、404、409）以普通 JSON 响应返回。
func (h *ChatHandler) Stream(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}
	user := middleware.CurrentUser(c)

	session, err := h.chatService.Start(c.Request.Context(), user.ID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	if err := session.Run(c.Request.Context(), &sseSink{w: c.Writer}); err != nil {
		log.Warnf("[ChatHandler] 聊天流结束于错误, conversationId: %s, error: %v", session.ConversationID(), err)
	}
}

// wsSink 把每个事件作为一帧 JSON 文本发送。
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(event service.StreamEvent) error {
	return s.conn.WriteJSON(event)
}

// HandleWebSocket 处理 GET /chat/ws?token=...。
// 浏览器无法为 WebSocket 设置 Authorization 头，因此 token 走查询参数。
// 每条收到的文本帧是一个聊天请求，同一连接上的请求依次处理。
func (h *ChatHandler) HandleWebSocket(c *gin.Context) {
	user, err := h.resolver.Resolve(c.Request.Context(), c.Query("token"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			middleware.Unauthorized(c)
			return
		}
		writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", user.ID)
	sink := &wsSink{conn: conn}
	ctx := c.Request.Context()

	for {
		var req service.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				_ = sink.Send(service.StreamEvent{Error: "invalid request: " + err.Error()})
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}
		if req.ConversationID == "" || req.Message == "" {
			_ = sink.Send(service.StreamEvent{Error: "conversation_id and message are required"})
			continue
		}

		session, err := h.chatService.Start(ctx, user.ID, req)
		if err != nil {
			if err := sink.Send(service.StreamEvent{Error: startErrorMessage(err)}); err != nil {
				return
			}
			continue
		}
		if err := session.Run(ctx, sink); err != nil {
			log.Warnf("[ChatHandler] WebSocket 聊天流结束于错误, conversationId: %s, error: %v", session.ConversationID(), err)
		}
	}
}

func startErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "Conversation not found"
	case errors.Is(err, service.ErrConversationBusy):
		return "A response is already streaming for this conversation"
	default:
		log.Errorf("[ChatHandler] 启动聊天流失败: %v", err)
		return "Internal server error"
	}
}
