package models

import "time"

// Document is the status record for an uploaded source file. The chunk
// vectors themselves live in the vector index; this record tracks the
// ingestion lifecycle and keeps a compressed copy of the extracted text.
type Document struct {
	ID            string           `bson:"_id" json:"id"`
	Filename      string           `bson:"filename" json:"filename"`
	OriginalName  string           `bson:"original_name" json:"original_name"`
	FilePath      string           `bson:"file_path" json:"-"`
	Status        string           `bson:"status" json:"status"` // pending, processing, completed, failed
	FailureReason string           `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	ChunkCount    int              `bson:"chunk_count" json:"chunk_count"`
	ArchivedText  []byte           `bson:"archived_text,omitempty" json:"-"`
	Compression   string           `bson:"compression,omitempty" json:"-"`
	UploadedAt    time.Time        `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt   *time.Time       `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	UpdatedAt     time.Time        `bson:"updated_at" json:"updated_at"`
	Metadata      DocumentMetadata `bson:"metadata" json:"metadata"`
}

// DocumentMetadata contains extraction metadata
type DocumentMetadata struct {
	Size             int64   `bson:"size" json:"size"`
	Pages            int     `bson:"pages" json:"pages"`
	CharacterCount   int     `bson:"character_count" json:"character_count"`
	ExtractionMethod string  `bson:"extraction_method" json:"extraction_method"`
	ProcessingMS     int64   `bson:"processing_ms" json:"processing_ms"`
	QualityScore     float64 `bson:"quality_score,omitempty" json:"quality_score,omitempty"`
}

// Document processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
