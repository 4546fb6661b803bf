// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parallax-gateway/internal/middleware"
	"parallax-gateway/internal/model"
	"parallax-gateway/internal/service"
	"parallax-gateway/internal/tier"
	"parallax-gateway/pkg/log"
)

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message})
}

// validationError 对应请求体或参数校验失败。
func validationError(c *gin.Context, err error) {
	abortJSON(c, http.StatusUnprocessableEntity, err.Error())
}

// writeError 把 service 层的错误映射为 HTTP 状态码。
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		abortJSON(c, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.Unauthorized(c)
	case errors.Is(err, service.ErrEmailTaken):
		abortJSON(c, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, service.ErrInactiveUser):
		abortJSON(c, http.StatusBadRequest, "Inactive user")
	case errors.Is(err, service.ErrInvalidRole):
		abortJSON(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrConversationBusy):
		abortJSON(c, http.StatusConflict, "A response is already streaming for this conversation")
	case errors.Is(err, service.ErrFeatureDisabled):
		abortJSON(c, http.StatusServiceUnavailable, err.Error())
	default:
		_ = c.Error(err)
		log.Errorf("[Handler] %s %s 处理失败: %v", c.Request.Method, c.FullPath(), err)
		abortJSON(c, http.StatusInternalServerError, "Internal server error")
	}
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Tier      tier.Tier `json:"tier"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Tier: u.Tier, IsActive: u.IsActive, CreatedAt: u.CreatedAt}
}

type conversationResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	CurrentMode string    `json:"current_mode"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newConversationResponse(conv *model.Conversation) conversationResponse {
	return conversationResponse{
		ID:          conv.ID,
		UserID:      conv.UserID,
		Title:       conv.Title,
		CurrentMode: conv.CurrentMode,
		CreatedAt:   conv.CreatedAt,
		UpdatedAt:   conv.UpdatedAt,
	}
}

type conversationWithMessages struct {
	conversationResponse
	Messages []messageResponse `json:"messages"`
}

type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Mode           *string   `json:"mode"`
	CreatedAt      time.Time `json:"created_at"`
}

func newMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Mode:           m.Mode,
		CreatedAt:      m.CreatedAt,
	}
}
