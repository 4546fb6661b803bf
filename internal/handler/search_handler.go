package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parallax-gateway/internal/middleware"
	"parallax-gateway/internal/service"
	"parallax-gateway/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 在当前用户的消息中做全文检索：GET /search?q=...&size=...
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		abortJSON(c, http.StatusUnprocessableEntity, "query parameter q is required")
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil {
		size = 0
	}
	log.Infof("[SearchHandler] 收到检索请求, size: %d", size)

	hits, err := h.searchService.SearchMessages(c.Request.Context(), middleware.CurrentUser(c), query, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": hits})
}
