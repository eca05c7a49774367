package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkIDStable(t *testing.T) {
	a := ChunkID("kb/faq.md", 3)
	b := ChunkID("kb/faq.md", 3)
	assert.Equal(t, a, b)
}

func TestChunkIDDistinguishesInputs(t *testing.T) {
	base := ChunkID("kb/faq.md", 3)
	assert.NotEqual(t, base, ChunkID("kb/faq.md", 4))
	assert.NotEqual(t, base, ChunkID("kb/policy.md", 3))
	// Separator keeps (file "a", chunk 12) apart from (file "a1", chunk 2).
	assert.NotEqual(t, ChunkID("a", 12), ChunkID("a1", 2))
}
