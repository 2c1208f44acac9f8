package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"docchat-backend/internal/ai"
	"docchat-backend/internal/chat"
	"docchat-backend/internal/config"
	"docchat-backend/internal/logger"
	"docchat-backend/internal/telemetry"
	vqdrant "docchat-backend/internal/vectorindex/qdrant"
	"docchat-backend/middleware"
	"docchat-backend/routes"
	"docchat-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("docchat-backend", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	queueClient := asynq.NewClient(config.AsynqRedisOpt(cfg))
	defer queueClient.Close()

	ctx := context.Background()
	embedder, err := ai.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingsModel, cfg.VectorDimensions)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GenerationModel)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	index, err := vqdrant.NewStorage(vqdrant.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Dimension:  cfg.VectorDimensions,
	})
	if err != nil {
		log.Fatal("Failed to initialize vector index:", err)
	}

	sessions := chat.NewSessionStore()
	transcripts := chat.NewMongoTranscript(db.Collection("messages"))
	orchestrator := chat.NewOrchestrator(
		sessions,
		chat.NewReformulator(geminiClient, nil),
		chat.NewRetriever(embedder, index, cfg.RetrieverK),
		chat.NewGenerator(geminiClient),
		transcripts,
		metrics,
		nil,
	).WithHistoryWindow(cfg.HistoryWindow)
	exporter := services.NewExportService(transcripts)

	janitor := services.NewJanitor(config.AsynqRedisOpt(cfg), nil, sessions, cfg.SessionTimeout)
	if err := janitor.Start(); err != nil {
		log.Fatal("Failed to start janitor:", err)
	}
	defer janitor.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	if metrics != nil {
		router.Use(middleware.MetricsMiddleware(metrics))
	}
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	documents := db.Collection("documents")
	router.POST("/upload/pdf", routes.HandleDocumentUpload(cfg, documents, queueClient))
	router.GET("/documents", routes.ListDocuments(documents))
	router.GET("/documents/:id/status", routes.CheckDocumentStatus(documents))
	router.GET("/documents/:id/text", routes.GetDocumentText(documents))
	router.DELETE("/documents/:id", routes.DeleteDocument(documents, index))

	router.POST("/chat/send", routes.HandleChatSend(orchestrator))
	router.GET("/chat/sessions/:id", routes.HandleSessionHistory(orchestrator))
	router.GET("/chat/sessions/:id/export", routes.HandleSessionExport(exporter))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
