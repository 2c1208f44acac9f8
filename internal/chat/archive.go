package chat

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docchat-backend/models"
)

// TranscriptArchiver persists completed exchanges for listing and export.
type TranscriptArchiver interface {
	Archive(ctx context.Context, rec models.MessageRecord) error
}

// MongoTranscript archives exchanges on the messages collection.
type MongoTranscript struct {
	col *mongo.Collection
}

func NewMongoTranscript(col *mongo.Collection) *MongoTranscript {
	return &MongoTranscript{col: col}
}

func (t *MongoTranscript) Archive(ctx context.Context, rec models.MessageRecord) error {
	_, err := t.col.InsertOne(ctx, rec)
	return err
}

// BySession returns a session's archived exchanges in chronological order.
func (t *MongoTranscript) BySession(ctx context.Context, sessionID string) ([]models.MessageRecord, error) {
	cursor, err := t.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.MessageRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
