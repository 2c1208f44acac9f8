package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"docchat-backend/internal/config"
	"docchat-backend/internal/queue"
	"docchat-backend/models"
	"docchat-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// HandleDocumentUpload accepts a PDF or plain-text upload, stores it, creates
// a pending status record and enqueues the ingestion task. The response is
// 202 Accepted; processing happens on the worker.
func HandleDocumentUpload(cfg *config.Config, documents *mongo.Collection, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithTooLarge(c, "File size exceeds maximum limit")
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			// Older clients send the part under "pdf".
			file, header, err = c.Request.FormFile("pdf")
			if err != nil {
				utils.RespondWithBadRequest(c, "No file provided", nil)
				return
			}
		}
		defer file.Close()

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithTooLarge(c, "File size exceeds maximum limit")
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".pdf" && ext != ".txt" {
			utils.RespondWithBadRequest(c, "Only PDF and plain-text files are accepted", nil)
			return
		}

		if ext == ".pdf" {
			headerBuf := make([]byte, 5)
			if _, err := io.ReadFull(file, headerBuf); err != nil {
				utils.RespondWithBadRequest(c, "Cannot read file header", nil)
				return
			}
			if string(headerBuf[:4]) != "%PDF" {
				utils.RespondWithError(c, http.StatusBadRequest, "invalid_pdf", "File does not appear to be a valid PDF", nil)
				return
			}
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				utils.RespondWithInternalError(c, "Failed to reset file for saving", nil)
				return
			}
		}

		fileID := uuid.NewString()

		uploadDir := filepath.Join(cfg.FileStorageDir, "pdfs")
		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		filePath := filepath.Join(uploadDir, fmt.Sprintf("%s%s", fileID, ext))
		dst, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to open destination", nil)
			return
		}
		defer dst.Close()
		if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}

		ctx := c.Request.Context()
		now := time.Now()
		doc := models.Document{
			ID:           fileID,
			Filename:     fmt.Sprintf("%s%s", fileID, ext),
			OriginalName: header.Filename,
			FilePath:     filePath,
			Status:       models.StatusPending,
			UploadedAt:   now,
			UpdatedAt:    now,
			Metadata:     models.DocumentMetadata{Size: header.Size},
		}
		if _, err := documents.InsertOne(ctx, doc); err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to create document record", nil)
			return
		}

		task, err := queue.NewDocumentIngestTask(fileID, header.Filename, filePath, cfg.MaxRetryAttempts)
		if err != nil {
			os.Remove(filePath)
			documents.DeleteOne(ctx, bson.M{"_id": fileID})
			utils.RespondWithError(c, http.StatusInternalServerError, "queue_error", "Failed to create processing task", nil)
			return
		}

		// An upload only counts as accepted once the job is durably queued;
		// on enqueue failure everything is rolled back and the client retries.
		info, err := queueClient.Enqueue(task)
		if err != nil {
			os.Remove(filePath)
			documents.DeleteOne(ctx, bson.M{"_id": fileID})
			utils.RespondWithError(c, http.StatusInternalServerError, "queue_error", "Failed to enqueue processing task", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message":     "Document accepted for processing",
			"document_id": fileID,
			"task_id":     info.ID,
			"status":      models.StatusPending,
			"filename":    header.Filename,
			"size":        header.Size,
			"uploaded_at": doc.UploadedAt,
		})
	}
}

// CheckDocumentStatus reports where a document is in its ingestion lifecycle.
func CheckDocumentStatus(documents *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID := c.Param("id")

		var doc models.Document
		err := documents.FindOne(c.Request.Context(), bson.M{"_id": docID}).Decode(&doc)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve document status", nil)
			return
		}

		resp := gin.H{
			"document_id": doc.ID,
			"filename":    doc.OriginalName,
			"status":      doc.Status,
			"chunk_count": doc.ChunkCount,
			"uploaded_at": doc.UploadedAt,
			"updated_at":  doc.UpdatedAt,
		}
		if doc.Status == models.StatusFailed {
			resp["failure_reason"] = doc.FailureReason
		}
		if doc.ProcessedAt != nil {
			resp["processed_at"] = doc.ProcessedAt
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetDocumentText returns the archived extracted text of a completed
// document.
func GetDocumentText(documents *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID := c.Param("id")

		var doc models.Document
		err := documents.FindOne(c.Request.Context(), bson.M{"_id": docID}).Decode(&doc)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}
		if doc.Status != models.StatusCompleted || len(doc.ArchivedText) == 0 {
			utils.RespondWithNotFound(c, "Document has no archived text")
			return
		}

		text, err := utils.DecompressText(doc.ArchivedText, utils.CompressionAlgorithm(doc.Compression))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to decompress archived text", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"document_id": doc.ID,
			"filename":    doc.OriginalName,
			"text":        text,
		})
	}
}

// SourceDeleter removes every indexed chunk of a source document.
type SourceDeleter interface {
	DeleteSource(ctx context.Context, sourceID string) error
}

// DeleteDocument removes a document: its indexed chunks, stored file and
// status record, in that order. The record goes last so a partial delete
// stays visible and can be retried.
func DeleteDocument(documents *mongo.Collection, index SourceDeleter) gin.HandlerFunc {
	return func(c *gin.Context) {
		docID := c.Param("id")
		ctx := c.Request.Context()

		var doc models.Document
		err := documents.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load document", nil)
			return
		}

		if err := index.DeleteSource(ctx, docID); err != nil {
			utils.RespondWithInternalError(c, "Failed to remove indexed chunks", nil)
			return
		}
		if doc.FilePath != "" {
			os.Remove(doc.FilePath)
		}
		if _, err := documents.DeleteOne(ctx, bson.M{"_id": docID}); err != nil {
			utils.RespondWithInternalError(c, "Failed to delete document record", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Document deleted", "document_id": docID})
	}
}

// ListDocuments lists uploaded documents with their status, newest first.
func ListDocuments(documents *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		pageInt := 1
		limitInt := 20
		if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
			pageInt = p
		}
		if l, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && l > 0 && l <= 100 {
			limitInt = l
		}

		ctx := c.Request.Context()
		filter := bson.M{}
		if status := c.Query("status"); status != "" {
			filter["status"] = status
		}

		total, err := documents.CountDocuments(ctx, filter)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to count documents", nil)
			return
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
			SetSkip(int64((pageInt - 1) * limitInt)).
			SetLimit(int64(limitInt)).
			SetProjection(bson.M{"archived_text": 0})
		cursor, err := documents.Find(ctx, filter, opts)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		defer cursor.Close(ctx)

		docs := []models.Document{}
		if err := cursor.All(ctx, &docs); err != nil {
			utils.RespondWithInternalError(c, "Failed to decode documents", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"documents": docs,
			"total":     total,
			"page":      pageInt,
			"limit":     limitInt,
		})
	}
}
