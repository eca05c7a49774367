package rag

import (
	"strings"

	"github.com/sandevgo/loanpilot/internal/core"
)

// ChunkerConfig is the character-based sliding-window configuration used by
// the knowledge-base index. Size and overlap are characters, not tokens;
// at ~4 chars/token the defaults land around 200 tokens per chunk.
type ChunkerConfig struct {
	ChunkSize int
	Overlap   int
}

func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize: 800,
		Overlap:   100,
	}
}

func (c ChunkerConfig) Validate() error {
	if c.ChunkSize < 100 {
		return core.NewConfigError("chunk_size", "must be at least 100")
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return core.NewConfigError("overlap", "must be in [0, chunk_size)")
	}
	return nil
}

// Step is the distance between consecutive chunk starts.
func (c ChunkerConfig) Step() int {
	return c.ChunkSize - c.Overlap
}

// SplitText splits text into overlapping chunks. Offsets are rune offsets
// so multi-byte characters are never cut in half. Chunks are emitted in
// increasing start order; windows whose stripped text is empty are skipped.
// Once a window reaches the end of the text the walk stops, so the final
// partial window is never emitted twice.
func SplitText(text string, cfg ChunkerConfig) []core.Chunk {
	runes := []rune(text)
	var chunks []core.Chunk

	for start := 0; start < len(runes); start += cfg.Step() {
		end := start + cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, core.Chunk{
				Text:  window,
				Start: start,
				End:   end,
			})
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}
