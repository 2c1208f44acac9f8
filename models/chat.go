package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is a single turn in a session's history. Append-only.
type ChatTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is the inbound chat payload from the UI
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// SourceRef points at a retrieved chunk that grounded an answer
type SourceRef struct {
	Text  string  `bson:"text" json:"text"`
	Score float64 `bson:"score" json:"score"`
}

// ChatResponse is the outbound chat payload
type ChatResponse struct {
	Answer    string      `json:"answer"`
	Sources   []SourceRef `json:"sources"`
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// MessageRecord is the durable transcript entry archived to MongoDB after a
// turn fully succeeds. The live engine history is held in-process; this
// record backs history listing and export only.
type MessageRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	Message   string             `bson:"message" json:"message"`
	Reply     string             `bson:"reply" json:"reply"`
	Sources   []SourceRef        `bson:"sources,omitempty" json:"sources,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
