package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"parallax-gateway/pkg/log"
)

// RequestLogger 是一个 Gin 中间件，记录每个请求的状态码、耗时与来源。
// 请求体与响应体不记录：注册和登录请求里有明文密码，聊天响应是流。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		fields := []interface{}{
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		if c.Writer.Status() >= 500 {
			log.Warnw("HTTP Request Log", fields...)
			return
		}
		log.Infow("HTTP Request Log", fields...)
	}
}
