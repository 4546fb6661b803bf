// Package router 组装 Gin 引擎与全部路由。
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parallax-gateway/internal/config"
	"parallax-gateway/internal/handler"
	"parallax-gateway/internal/middleware"
	"parallax-gateway/internal/service"
	"parallax-gateway/pkg/metrics"
)

// Services 是路由层需要的全部业务依赖。
type Services struct {
	Users         service.UserService
	Conversations service.ConversationService
	Chat          service.ChatService
	Usage         service.UsageService
	Search        service.SearchService
	Export        service.ExportService
}

// New 创建路由引擎。所有业务路由挂在 cfg.BasePath 之下，/health 与 /metrics 始终在根路径。
func New(cfg config.ServerConfig, svc Services) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery(), metrics.GinMiddleware(), middleware.CORS(cfg.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authHandler := handler.NewAuthHandler(svc.Users)
	userHandler := handler.NewUserHandler(svc.Usage)
	conversationHandler := handler.NewConversationHandler(svc.Conversations, svc.Export)
	chatHandler := handler.NewChatHandler(svc.Chat, svc.Users)
	searchHandler := handler.NewSearchHandler(svc.Search)
	authed := middleware.AuthMiddleware(svc.Users)

	api := r.Group(cfg.BasePath)
	{
		api.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "Welcome to Parallax AI API", "status": "running"})
		})

		// Auth 路由组
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", authed, middleware.ActiveUserMiddleware(), userHandler.Me)
		}

		// Conversation 路由组，需要认证
		conversations := api.Group("/conversations")
		conversations.Use(authed)
		{
			conversations.GET("", conversationHandler.List)
			conversations.POST("", conversationHandler.Create)
			conversations.GET("/:id", conversationHandler.Get)
			conversations.PATCH("/:id", conversationHandler.Update)
			conversations.PATCH("/:id/mode", conversationHandler.UpdateMode)
			conversations.DELETE("/:id", conversationHandler.Delete)
			conversations.POST("/:id/messages", conversationHandler.AddMessage)
			conversations.POST("/:id/export", conversationHandler.Export)
		}

		// Chat 路由：SSE 需要认证头，WebSocket 自行校验查询参数中的 token
		api.POST("/chat", authed, chatHandler.Stream)
		api.GET("/chat/ws", chatHandler.HandleWebSocket)

		api.GET("/usage", authed, userHandler.Usage)
		api.GET("/search", authed, searchHandler.Search)
	}

	return r
}
