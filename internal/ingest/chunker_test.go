package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextWindowPositions(t *testing.T) {
	text := "Apple is a fruit. Banana is a fruit too."
	require.Len(t, text, 40)

	chunks := SplitText(text, 20, 5)
	require.Len(t, chunks, 3)

	assert.Equal(t, text[0:20], chunks[0])
	assert.Equal(t, text[15:35], chunks[1])
	assert.Equal(t, text[30:40], chunks[2])
}

func TestSplitTextChunkCountFormula(t *testing.T) {
	cases := []struct {
		textLen   int
		chunkSize int
		overlap   int
	}{
		{40, 20, 5},
		{20, 20, 5},
		{21, 20, 5},
		{35, 20, 5},
		{36, 20, 5},
		{3, 20, 5},
		{1, 20, 5},
		{1000, 1000, 200},
		{1001, 1000, 200},
		{5000, 1000, 200},
		{5000, 1000, 0},
		{999, 1000, 200},
	}
	for _, tc := range cases {
		text := strings.Repeat("x", tc.textLen)
		chunks := SplitText(text, tc.chunkSize, tc.overlap)
		assert.Equal(t, ChunkCount(tc.textLen, tc.chunkSize, tc.overlap), len(chunks),
			"len=%d size=%d overlap=%d", tc.textLen, tc.chunkSize, tc.overlap)
	}
}

func TestSplitTextOverlapShared(t *testing.T) {
	text := strings.Repeat("abcdefghij", 10)
	chunks := SplitText(text, 30, 10)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-10:], chunks[i][:10], "chunk %d should start with the previous tail", i)
	}
}

func TestSplitTextDeterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 50)
	first := SplitText(text, 100, 20)
	second := SplitText(text, 100, 20)
	assert.Equal(t, first, second)
}

func TestSplitTextEmptyAndInvalid(t *testing.T) {
	assert.Empty(t, SplitText("", 20, 5))
	assert.Empty(t, SplitText("hello", 0, 0))
	assert.Empty(t, SplitText("hello", 5, 5))
	assert.Empty(t, SplitText("hello", 5, -1))
	assert.Equal(t, 0, ChunkCount(0, 20, 5))
}

func TestSplitTextShortTextSingleChunk(t *testing.T) {
	chunks := SplitText("hi", 20, 5)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hi", chunks[0])
}
