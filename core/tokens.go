package core

// Tokenizer counts tokens exactly for a specific model family. When none is
// supplied the runtime falls back to the length/4 estimate.
type Tokenizer interface {
	CountTokens(text string) int
}

// EstimateTokens returns the token count for text using tok when available,
// otherwise the character-length/4 heuristic (rounded up).
func EstimateTokens(text string, tok Tokenizer) int {
	if tok != nil {
		return tok.CountTokens(text)
	}
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// ChunkTokens estimates the token cost of a chunk's text projection.
func ChunkTokens(c Chunk, tok Tokenizer) int {
	return EstimateTokens(ContentText(c.Content), tok)
}
