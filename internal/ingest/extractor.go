package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// ExtractionResult carries the raw text pulled out of a source file.
type ExtractionResult struct {
	Text   string
	Pages  int
	Method string
}

// Extractor pulls raw text from uploaded source files. PDFs go through
// pdftotext when available, then the pure-Go reader; plain .txt files are
// read directly. Any failure is a ParseError and terminal for the job.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractText(ctx context.Context, filePath string) (*ExtractionResult, error) {
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, &ParseError{Path: filePath, Err: err}
	}
	if stat.Size() > 200<<20 { // 200MB safety cap
		return nil, &ParseError{Path: filePath, Err: fmt.Errorf("file too large for in-memory extraction")}
	}

	if strings.EqualFold(filepath.Ext(filePath), ".txt") {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, &ParseError{Path: filePath, Err: err}
		}
		return &ExtractionResult{Text: string(data), Pages: 1, Method: "plaintext"}, nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &ParseError{Path: filePath, Err: err}
	}
	if len(content) < 5 || string(content[:4]) != "%PDF" {
		return nil, &ParseError{Path: filePath, Err: fmt.Errorf("not a PDF file")}
	}

	var lastErr error
	if hasBinary("pdftotext") {
		result, err := e.extractWithPoppler(ctx, content)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	result, err := e.extractWithGoPDF(content)
	if err == nil {
		return result, nil
	}
	if lastErr == nil {
		lastErr = err
	}

	return nil, &ParseError{Path: filePath, Err: lastErr}
}

// extractWithPoppler uses poppler-utils (pdftotext) for extraction
func (e *Extractor) extractWithPoppler(ctx context.Context, content []byte) (*ExtractionResult, error) {
	extractCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, "pdftotext", "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext failed: %v, stderr: %s", err, stderr.String())
	}

	text := stdout.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text extracted by pdftotext")
	}

	return &ExtractionResult{
		Text:   text,
		Pages:  strings.Count(text, "\f") + 1,
		Method: "poppler",
	}, nil
}

// extractWithGoPDF uses the Go PDF library for extraction
func (e *Extractor) extractWithGoPDF(content []byte) (*ExtractionResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	text := textBuilder.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text extracted by go-pdf")
	}

	return &ExtractionResult{
		Text:   text,
		Pages:  pages,
		Method: "go-pdf",
	}, nil
}

func hasBinary(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
