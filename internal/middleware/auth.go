// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parallax-gateway/internal/model"
	"parallax-gateway/internal/service"
	"parallax-gateway/pkg/log"
)

const userKey = "user"

// TokenResolver 把 access token 解析为用户。
type TokenResolver interface {
	Resolve(ctx context.Context, tokenString string) (*model.User, error)
}

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 Bearer token，验证其有效性，并将完整的 User 对象存入 Gin 的上下文中。
func AuthMiddleware(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			Unauthorized(c)
			return
		}

		user, err := resolver.Resolve(c.Request.Context(), tokenString)
		if err != nil {
			if !errors.Is(err, service.ErrInvalidCredentials) {
				log.Error("[AuthMiddleware] 解析用户失败", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Internal server error"})
				return
			}
			Unauthorized(c)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// Unauthorized 返回 401 并附带 WWW-Authenticate 头。
func Unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "Could not validate credentials"})
}

// Token 通常以 "Bearer <token>" 的形式提供，scheme 不区分大小写
func bearerToken(header string) (string, bool) {
	scheme, tokenString, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tokenString = strings.TrimSpace(tokenString)
	return tokenString, tokenString != ""
}

// CurrentUser 返回 AuthMiddleware 存入的用户，必须在 AuthMiddleware 之后使用。
func CurrentUser(c *gin.Context) *model.User {
	return c.MustGet(userKey).(*model.User)
}
