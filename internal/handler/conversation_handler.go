package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"parallax-gateway/internal/middleware"
	"parallax-gateway/internal/service"
)

// ConversationHandler 处理与对话相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
	export  service.ExportService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(svc service.ConversationService, export service.ExportService) *ConversationHandler {
	return &ConversationHandler{service: svc, export: export}
}

// CreateConversationRequest 中 mode 是 current_mode 的别名。
type CreateConversationRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	CurrentMode *string `json:"current_mode" binding:"omitempty,max=20"`
	Mode        *string `json:"mode" binding:"omitempty,max=20"`
}

// UpdateConversationRequest 只更新出现的字段。
type UpdateConversationRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	CurrentMode *string `json:"current_mode" binding:"omitempty,max=20"`
}

// UpdateModeRequest 是 PATCH /conversations/{id}/mode 的请求体。
type UpdateModeRequest struct {
	Mode string `json:"mode" binding:"required,max=20"`
}

// AddMessageRequest 是手动追加消息的请求体。content 必须出现，允许为空字符串。
type AddMessageRequest struct {
	Role    string  `json:"role" binding:"required"`
	Content *string `json:"content" binding:"required"`
	Mode    *string `json:"mode" binding:"omitempty,max=20"`
}

// 请求体可以为空，此时全部使用默认值
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// List 返回当前用户的会话，最近更新的在前。
func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.service.List(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]conversationResponse, 0, len(convs))
	for i := range convs {
		out = append(out, newConversationResponse(&convs[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Create 创建会话。
func (h *ConversationHandler) Create(c *gin.Context) {
	var req CreateConversationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		validationError(c, err)
		return
	}
	var title, mode string
	if req.Title != nil {
		title = *req.Title
	}
	switch {
	case req.CurrentMode != nil:
		mode = *req.CurrentMode
	case req.Mode != nil:
		mode = *req.Mode
	}

	conv, err := h.service.Create(c.Request.Context(), middleware.CurrentUser(c).ID, title, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newConversationResponse(conv))
}

// Get 返回会话及其全部消息。
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := conversationWithMessages{
		conversationResponse: newConversationResponse(conv),
		Messages:             make([]messageResponse, 0, len(conv.Messages)),
	}
	for i := range conv.Messages {
		out.Messages = append(out.Messages, newMessageResponse(&conv.Messages[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Update 部分更新标题和/或模式。
func (h *ConversationHandler) Update(c *gin.Context) {
	var req UpdateConversationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		validationError(c, err)
		return
	}
	conv, err := h.service.Update(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).ID,
		service.ConversationPatch{Title: req.Title, Mode: req.CurrentMode})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newConversationResponse(conv))
}

// UpdateMode 修改会话的当前模式。
func (h *ConversationHandler) UpdateMode(c *gin.Context) {
	var req UpdateModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}
	conv, err := h.service.UpdateMode(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).ID, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newConversationResponse(conv))
}

// Delete 删除会话及其消息。
func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddMessage 手动向会话追加一条消息。
func (h *ConversationHandler) AddMessage(c *gin.Context) {
	var req AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}
	msg, err := h.service.AddMessage(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).ID, req.Role, *req.Content, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMessageResponse(msg))
}

// Export 把会话导出到对象存储并返回临时下载地址。
func (h *ConversationHandler) Export(c *gin.Context) {
	res, err := h.export.Export(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
