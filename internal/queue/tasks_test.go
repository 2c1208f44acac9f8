package queue

import (
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentIngestTask(t *testing.T) {
	task, err := NewDocumentIngestTask("doc-42", "report.pdf", "/data/pdfs/doc-42.pdf", 3)
	require.NoError(t, err)
	assert.Equal(t, TaskIngestDocument, task.Type())

	var payload IngestPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "doc-42", payload.SourceID)
	assert.Equal(t, "report.pdf", payload.Filename)
	assert.Equal(t, "/data/pdfs/doc-42.pdf", payload.StoragePath)
	assert.False(t, payload.ReceivedAt.IsZero())
}

func TestProcessDocumentRejectsMalformedPayload(t *testing.T) {
	h := NewIngestTaskHandler(nil)
	task := asynq.NewTask(TaskIngestDocument, []byte("{not json"))

	err := h.ProcessDocument(t.Context(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry, "a malformed payload can never succeed and must not be redelivered")
}
