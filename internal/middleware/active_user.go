package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ActiveUserMiddleware 拒绝已停用的账号。
// 此中间件必须在 AuthMiddleware 之后使用。
func ActiveUserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).IsActive {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Inactive user"})
			return
		}
		c.Next()
	}
}
