package ingest

import (
	"errors"
	"fmt"
)

// ErrInvalidMaxAttempts is returned by RetryWithBackoff for a non-positive
// attempt count.
var ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

// ParseError marks unreadable or unsupported input. It is terminal: the job
// is failed immediately and never retried.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmbeddingError marks a transient embedding-provider failure after retries
// were exhausted for a batch.
type EmbeddingError struct {
	Batch int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed batch %d: %v", e.Batch, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexError marks a vector-index failure after retries were exhausted.
type IndexError struct {
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("vector index: %v", e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// IsTerminal reports whether an ingestion error must not be redelivered.
// Parse failures are terminal; provider and index failures are left to the
// queue's retry policy and eventually dead-lettered.
func IsTerminal(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
