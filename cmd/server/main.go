// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"banking-kb-go/internal/config"
	"banking-kb-go/internal/handler"
	"banking-kb-go/internal/middleware"
	"banking-kb-go/internal/pipeline"
	"banking-kb-go/internal/repository"
	"banking-kb-go/internal/service"
	"banking-kb-go/pkg/database"
	"banking-kb-go/pkg/embedding"
	"banking-kb-go/pkg/extractor"
	"banking-kb-go/pkg/kafka"
	"banking-kb-go/pkg/llm"
	"banking-kb-go/pkg/log"
	"banking-kb-go/pkg/storage"
	"banking-kb-go/pkg/token"
	"banking-kb-go/pkg/vectorstore"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	blobStore, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		log.Fatal("MinIO 初始化失败", err)
	}

	// 4. 初始化向量库后端（进程启动时选择一次）
	store, err := vectorstore.New(cfg.VectorStore, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatal("向量库后端初始化失败", err)
	}
	if err := store.Initialize(context.Background()); err != nil {
		log.Fatal("向量库结构初始化失败", err)
	}
	log.Infof("向量库后端就绪: %s", store.Backend())

	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 5. 初始化 Repository
	docRepo := repository.NewDocumentRepository(database.DB)
	versionRepo := repository.NewVersionRepository(database.DB)
	grantRepo := repository.NewAccessGrantRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	// 主提取器是内嵌 PDF 解析器，Tika 仅在其失败时兜底
	pageExtractor := extractor.NewChain(
		extractor.NewPDFExtractor(),
		extractor.NewTikaExtractor(cfg.Tika),
	)

	documentService := service.NewDocumentService(
		docRepo, versionRepo, grantRepo,
		store, blobStore, pageExtractor, embeddingClient, producer,
		cfg.Document, cfg.Embedding,
	)
	searchService := service.NewSearchService(embeddingClient, store, cfg.Retrieval)
	chatService := service.NewChatService(embeddingClient, store, llmClient, conversationRepo, cfg.Retrieval)

	// 7. 启动后台 Kafka 消费者处理重建索引任务
	go kafka.StartConsumer(cfg.Kafka, pipeline.NewProcessor(documentService))

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	documentHandler := handler.NewDocumentHandler(documentService)
	searchHandler := handler.NewSearchHandler(searchService)
	chatHandler := handler.NewChatHandler(chatService, jwtManager)
	healthHandler := handler.NewHealthHandler(store)

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/health", healthHandler.Health)

		// Document 路由组，需要认证；写操作额外要求管理员
		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager))
		{
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.GET("/:id/versions", documentHandler.GetVersions)

			admin := documents.Group("")
			admin.Use(middleware.AdminAuthMiddleware())
			{
				admin.POST("/upload", documentHandler.Upload)
				admin.PUT("/:id", documentHandler.Update)
				admin.DELETE("/:id", documentHandler.Delete)
				admin.POST("/:id/reprocess", documentHandler.Reprocess)
			}
		}

		// Search 路由
		search := apiV1.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager))
		{
			search.POST("", searchHandler.Search)
		}

		// Chat 路由：HTTP 一次性问答与 WebSocket 流式两种形态
		chat := apiV1.Group("/chat")
		{
			chat.GET("/ws", chatHandler.HandleWS)

			authed := chat.Group("")
			authed.Use(middleware.AuthMiddleware(jwtManager))
			{
				authed.POST("", chatHandler.Chat)
			}
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
