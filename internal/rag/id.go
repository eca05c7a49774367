package rag

import (
	"fmt"
	"hash/fnv"
)

// ChunkID derives a stable identifier from a chunk's position in its source
// file. Re-indexing the same file produces the same IDs, so writes overwrite
// stale chunks instead of accumulating duplicates.
func ChunkID(sourceFile string, chunkIndex int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", sourceFile, chunkIndex)
	return int64(h.Sum64())
}
