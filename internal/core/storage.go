package core

import "context"

// ChunkRepository stores indexed chunks and answers nearest-neighbour
// queries. Writes happen during offline ingestion; request-time access is
// read-only.
type ChunkRepository interface {
	UpsertChunks(ctx context.Context, chunks []IndexedChunk) error
	NearestChunks(ctx context.Context, embedding []float32, k int) ([]RetrievalResult, error)
	CountChunks(ctx context.Context) (int, error)
}

// MemoryRepository persists memory records. Each write is an independent
// insert keyed by a fresh id, safe under concurrent requests.
type MemoryRepository interface {
	Create(ctx context.Context, rec MemoryRecord) error
	Get(ctx context.Context, id string) (*MemoryRecord, error)
	List(ctx context.Context, typ MemoryType, sessionID string, limit int) ([]MemoryRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
	PruneWorking(ctx context.Context, sessionID string, keep int) (int, error)
}
