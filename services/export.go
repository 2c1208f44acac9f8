// Package services holds background and support services that sit beside the
// HTTP layer: transcript export and queue/state janitorial work.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"docchat-backend/internal/chat"
	"docchat-backend/internal/logger"
	"docchat-backend/models"
)

// ExportFormat selects the transcript export encoding.
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatExcel ExportFormat = "xlsx"
)

// ExportResult is a rendered transcript export ready to stream to the client.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	RecordCount int
}

// ExportService renders archived session transcripts as JSON or Excel.
type ExportService struct {
	transcripts *chat.MongoTranscript
}

func NewExportService(transcripts *chat.MongoTranscript) *ExportService {
	return &ExportService{transcripts: transcripts}
}

// ExportSession renders every archived exchange of a session. An unknown
// session yields an empty export, not an error.
func (es *ExportService) ExportSession(ctx context.Context, sessionID string, format ExportFormat) (*ExportResult, error) {
	records, err := es.transcripts.BySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	switch format {
	case FormatExcel:
		return es.exportExcel(sessionID, records)
	case FormatJSON, "":
		return es.exportJSON(sessionID, records)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

func (es *ExportService) exportJSON(sessionID string, records []models.MessageRecord) (*ExportResult, error) {
	payload := map[string]interface{}{
		"session_id":  sessionID,
		"exported_at": time.Now(),
		"exchanges":   records,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("session-%s.json", sessionID),
		ContentType: "application/json",
		Data:        data,
		RecordCount: len(records),
	}, nil
}

func (es *ExportService) exportExcel(sessionID string, records []models.MessageRecord) (*ExportResult, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("error closing Excel file", "error", err)
		}
	}()

	sheetName := "Transcript"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Timestamp", "Message", "Reply", "Sources"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, rec := range records {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), rec.Timestamp.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), rec.Message)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), rec.Reply)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), len(rec.Sources))
	}

	for i := range headers {
		col := string(rune('A' + i))
		width := 18.0
		if i == 1 || i == 2 {
			width = 60.0
		}
		f.SetColWidth(sheetName, col, col, width)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to render Excel file: %w", err)
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("session-%s.xlsx", sessionID),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
		RecordCount: len(records),
	}, nil
}
