package ingest

// SplitText splits text into fixed-size character windows of chunkSize with
// overlap characters shared between consecutive chunks. Chunk i starts at
// i*(chunkSize-overlap); the last chunk may be shorter. A start position at
// or past len(text)-overlap would add no new characters, so iteration stops
// there, giving exactly ceil((L-overlap)/(chunkSize-overlap)) chunks for
// L > 0 and zero chunks for empty text.
func SplitText(text string, chunkSize, overlap int) []string {
	if len(text) == 0 || chunkSize <= 0 || overlap >= chunkSize || overlap < 0 {
		return nil
	}

	step := chunkSize - overlap
	var chunks []string
	for start := 0; start == 0 || start < len(text)-overlap; start += step {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}

// ChunkCount returns the number of chunks SplitText produces for a text of
// textLen characters.
func ChunkCount(textLen, chunkSize, overlap int) int {
	if textLen <= 0 || chunkSize <= 0 || overlap >= chunkSize || overlap < 0 {
		return 0
	}
	step := chunkSize - overlap
	n := (textLen - overlap + step - 1) / step
	if n < 1 {
		n = 1
	}
	return n
}
