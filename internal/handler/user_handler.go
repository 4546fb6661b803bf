package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parallax-gateway/internal/middleware"
	"parallax-gateway/internal/service"
)

// UserHandler 负责处理当前登录用户的信息与用量查询。
type UserHandler struct {
	usageService service.UsageService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(usageService service.UsageService) *UserHandler {
	return &UserHandler{usageService: usageService}
}

// Me 返回当前用户。
func (h *UserHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, newUserResponse(middleware.CurrentUser(c)))
}

// Usage 返回当前用户本月每个模型的用量与等级上限。
func (h *UserHandler) Usage(c *gin.Context) {
	summary, err := h.usageService.CurrentSummary(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
