package retrieval

import (
	"context"
	"fmt"

	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/internal/rag"
	"github.com/sandevgo/loanpilot/pkg/log"
)

// Index ties the chunker, the embedder and the chunk store together. It is
// the only component that writes to the vector store; everything else reads.
type Index struct {
	embedder core.Embedder
	chunks   core.ChunkRepository
	chunker  rag.ChunkerConfig
}

func NewIndex(embedder core.Embedder, chunks core.ChunkRepository, chunker rag.ChunkerConfig) *Index {
	return &Index{
		embedder: embedder,
		chunks:   chunks,
		chunker:  chunker,
	}
}

// AddDocument splits a document into chunks, embeds each one and upserts
// them. Returns the number of chunks written. Blank documents are a no-op.
func (i *Index) AddDocument(ctx context.Context, sourceFile, text string) (int, error) {
	logger := log.FromCtx(ctx)

	pieces := rag.SplitText(text, i.chunker)
	if len(pieces) == 0 {
		logger.Debug().Str("source", sourceFile).Msg("document produced no chunks, skipping")
		return 0, nil
	}

	indexed := make([]core.IndexedChunk, 0, len(pieces))
	for idx, c := range pieces {
		vec, err := i.embedder.Embed(ctx, c.Text)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d of %s: %w", idx, sourceFile, err)
		}
		indexed = append(indexed, core.IndexedChunk{
			Chunk:      c,
			ID:         rag.ChunkID(sourceFile, idx),
			SourceFile: sourceFile,
			ChunkIndex: idx,
			Embedding:  vec,
		})
	}

	if err := i.chunks.UpsertChunks(ctx, indexed); err != nil {
		return 0, fmt.Errorf("failed to store chunks for %s: %w", sourceFile, err)
	}

	logger.Info().Str("source", sourceFile).Int("chunks", len(indexed)).Msg("document indexed")
	return len(indexed), nil
}

// Search embeds the query and returns the k nearest chunks ordered by
// ascending distance. An embedding failure makes the whole index unusable
// for this query, not just degraded.
func (i *Index) Search(ctx context.Context, query string, k int) ([]core.RetrievalResult, error) {
	vec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query embedding failed: %v", core.ErrIndexUnavailable, err)
	}

	results, err := i.chunks.NearestChunks(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIndexUnavailable, err)
	}
	return results, nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	return i.chunks.CountChunks(ctx)
}
