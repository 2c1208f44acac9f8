package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text body"), 0600))

	e := NewExtractor()
	result, err := e.ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "plain text body", result.Text)
	assert.Equal(t, "plaintext", result.Method)
}

func TestExtractRejectsNonPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf at all"), 0600))

	e := NewExtractor()
	_, err := e.ExtractText(context.Background(), path)
	require.Error(t, err)
	assert.True(t, IsTerminal(err), "an unparseable file can never succeed on retry")
}

func TestExtractMissingFile(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)

	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}
