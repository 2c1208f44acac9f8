package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"docchat-backend/internal/ai"
	"docchat-backend/internal/config"
	"docchat-backend/internal/ingest"
	"docchat-backend/internal/logger"
	"docchat-backend/internal/queue"
	"docchat-backend/internal/telemetry"
	vqdrant "docchat-backend/internal/vectorindex/qdrant"
	"docchat-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("docchat-worker", cfg.OTLPEndpoint)
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
	defer mongoClient.Disconnect(context.Background())
	documents := mongoClient.Database(cfg.DBName).Collection("documents")

	ctx := context.Background()
	embedder, err := ai.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingsModel, cfg.VectorDimensions)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	index, err := vqdrant.NewStorage(vqdrant.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Dimension:  cfg.VectorDimensions,
	})
	if err != nil {
		log.Fatal("Failed to initialize vector index:", err)
	}

	status := ingest.NewMongoStatus(documents)
	pipeline := ingest.NewPipeline(
		ingest.NewExtractor(),
		embedder,
		index,
		status,
		ingest.Config{
			ChunkSize:        cfg.ChunkSize,
			ChunkOverlap:     cfg.ChunkOverlap,
			BatchSize:        cfg.EmbeddingBatchSize,
			MaxRetryAttempts: cfg.MaxRetryAttempts,
			RetryBackoffBase: cfg.RetryBackoffBase,
		},
		metrics,
		nil,
	)

	redisOpt := config.AsynqRedisOpt(cfg)

	janitor := services.NewJanitor(redisOpt, status, nil, cfg.SessionTimeout)
	if err := janitor.Start(); err != nil {
		log.Fatal("Failed to start janitor:", err)
	}
	defer janitor.Stop()

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	handler := queue.NewIngestTaskHandler(pipeline)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, handler.ProcessDocument)

	logger.Info("starting ingestion worker",
		"concurrency", cfg.WorkerConcurrency,
		"redis", redisOpt.Addr,
	)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
