// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"parallax-gateway/internal/config"
	"parallax-gateway/internal/model"
	"parallax-gateway/internal/repository"
	"parallax-gateway/internal/router"
	"parallax-gateway/internal/service"
	"parallax-gateway/pkg/database"
	"parallax-gateway/pkg/es"
	"parallax-gateway/pkg/kafka"
	"parallax-gateway/pkg/llm"
	"parallax-gateway/pkg/lock"
	"parallax-gateway/pkg/log"
	"parallax-gateway/pkg/storage"
	"parallax-gateway/pkg/token"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to config.yaml")
	flag.Parse()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 后台组件（Kafka 消费者）随该 context 退出
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 3. 初始化数据库
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("数据库连接失败", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, model.AllModels()...); err != nil {
			log.Fatal("数据库迁移失败", err)
		}
		log.Info("数据库迁移完成")
	}

	// 4. 会话锁：配置了 Redis 时使用分布式锁，否则使用进程内锁
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Addr != "" {
		rdb, err := database.OpenRedis(rootCtx, cfg.Redis)
		if err != nil {
			log.Fatal("Redis 连接失败", err)
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, "parallax:lock:")
	}

	// 5. 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	// 6. 可选组件：Elasticsearch 消息检索、MinIO 导出
	var indexer service.MessageIndexer
	var searcher service.MessageSearcher
	if cfg.Elasticsearch.Enabled() {
		esClient, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			log.Fatal("Elasticsearch 初始化失败", err)
		}
		indexer, searcher = esClient, esClient
	}
	var store service.ObjectStore
	if cfg.MinIO.Enabled() {
		s, err := storage.NewMinIO(rootCtx, cfg.MinIO)
		if err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
		store = s
	}

	// 7. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL())
	llmClient := llm.NewClient(cfg.LLM)
	userService := service.NewUserService(userRepo, jwtManager)
	conversationService := service.NewConversationService(conversationRepo, indexer)
	usageService := service.NewUsageService(usageRepo)

	// 8. 用量上报：配置了 Kafka 时异步写入，由后台消费者落库
	usagePublisher := service.NewDirectPublisher(usageService)
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		usagePublisher = producer
		go kafka.StartConsumer(rootCtx, cfg.Kafka, usageService)
	}

	chatService := service.NewChatService(conversationService, llmClient, locker, usagePublisher, cfg.LLM)
	searchService := service.NewSearchService(searcher)
	exportService := service.NewExportService(conversationService, store, cfg.MinIO.URLExpiry)

	if cfg.LLM.APIKey == "" {
		log.Warnf("未配置 ANTHROPIC_API_KEY，聊天请求将返回上游错误")
	}

	// 9. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := router.New(cfg.Server, router.Services{
		Users:         userService,
		Conversations: conversationService,
		Chat:          chatService,
		Usage:         usageService,
		Search:        searchService,
		Export:        exportService,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 进行中的聊天流最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	cancelRoot()
	log.Info("服务已优雅关闭")
}
