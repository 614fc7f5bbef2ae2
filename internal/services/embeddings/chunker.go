package embeddings

// Chunk splits text into fixed-length character windows with the given
// overlap. Boundaries are purely positional so the same text always yields
// the same chunks, which keeps re-processing idempotent. Chunks are dense
// and 0-indexed by position in the returned slice.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if text == "" {
		return []string{}
	}

	runes := []rune(text)
	step := size - overlap

	chunks := []string{}
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
