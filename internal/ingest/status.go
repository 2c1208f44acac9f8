package ingest

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"docchat-backend/models"
	"docchat-backend/utils"
)

// StatusRecorder receives lifecycle transitions of an ingestion job.
// Failures to record status never fail the job itself.
type StatusRecorder interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, chunkCount int, text string, meta models.DocumentMetadata) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// MongoStatus records job status on the documents collection. The extracted
// text is archived gzip-compressed alongside the record.
type MongoStatus struct {
	col *mongo.Collection
}

func NewMongoStatus(col *mongo.Collection) *MongoStatus {
	return &MongoStatus{col: col}
}

func (s *MongoStatus) MarkProcessing(ctx context.Context, id string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":     models.StatusProcessing,
			"updated_at": time.Now(),
		}},
	)
	return err
}

func (s *MongoStatus) MarkCompleted(ctx context.Context, id string, chunkCount int, text string, meta models.DocumentMetadata) error {
	now := time.Now()
	update := bson.M{
		"status":       models.StatusCompleted,
		"chunk_count":  chunkCount,
		"processed_at": now,
		"updated_at":   now,
		"metadata":     meta,
	}

	archived, err := utils.CompressData([]byte(text), utils.CompressionGzip)
	if err == nil {
		update["archived_text"] = archived
		update["compression"] = string(utils.CompressionGzip)
	}

	_, err = s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	return err
}

func (s *MongoStatus) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":         models.StatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		}},
	)
	return err
}
