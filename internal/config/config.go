package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	MongoURI string
	DBName   string

	// Redis / queue configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Qdrant vector index
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	VectorDimensions int

	// Gemini
	GeminiAPIKey    string
	GenerationModel string
	EmbeddingsModel string

	// Upload handling
	FileStorageDir string
	MaxFileSize    int64

	// Ingestion pipeline
	ChunkSize          int
	ChunkOverlap       int
	EmbeddingBatchSize int
	WorkerConcurrency  int
	MaxRetryAttempts   int
	RetryBackoffBase   time.Duration

	// Conversation
	RetrieverK     int
	HistoryWindow  int
	SessionTimeout time.Duration

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/docchat"),
		DBName:   getEnv("DB_NAME", "docchat"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "document_chunks"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GenerationModel: getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),

		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB

		ChunkSize:          getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 200),
		EmbeddingBatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", 16),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 20),
		MaxRetryAttempts:   getEnvInt("MAX_RETRY_ATTEMPTS", 3),
		RetryBackoffBase:   getEnvDuration("RETRY_BACKOFF_BASE", 500*time.Millisecond),

		RetrieverK:     getEnvInt("RETRIEVER_K", 10),
		HistoryWindow:  getEnvInt("HISTORY_WINDOW", 10),
		SessionTimeout: getEnvDuration("SESSION_TIMEOUT", 30*time.Minute),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	if cfg.EmbeddingBatchSize <= 0 {
		return nil, fmt.Errorf("EMBEDDING_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
