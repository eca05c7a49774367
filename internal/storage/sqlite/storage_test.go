package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/loanpilot/internal/core"
	"github.com/sandevgo/loanpilot/pkg/log"
)

func newTestDB(t *testing.T) (context.Context, *sql.DB) {
	t.Helper()

	ctx, cleanup := log.NewContextWithLogger(context.Background(), false)
	t.Cleanup(cleanup)

	db, err := NewDB(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return ctx, db
}

func TestChunkRepoUpsertAndSearch(t *testing.T) {
	ctx, db := newTestDB(t)

	repo, err := NewChunkRepo(ctx, db, 3)
	require.NoError(t, err)

	chunks := []core.IndexedChunk{
		{
			Chunk:      core.Chunk{Text: "loan disbursement takes 3 days", Start: 0, End: 30},
			ID:         1,
			SourceFile: "faq.md",
			ChunkIndex: 0,
			Embedding:  []float32{1, 0, 0},
		},
		{
			Chunk:      core.Chunk{Text: "weather is sunny", Start: 30, End: 46},
			ID:         2,
			SourceFile: "faq.md",
			ChunkIndex: 1,
			Embedding:  []float32{0, 1, 0},
		},
	}
	require.NoError(t, repo.UpsertChunks(ctx, chunks))

	count, err := repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := repo.NearestChunks(ctx, []float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "loan disbursement takes 3 days", results[0].Text)
	require.NotNil(t, results[0].Distance)
	require.NotNil(t, results[1].Distance)
	assert.Less(t, *results[0].Distance, *results[1].Distance)
}

func TestChunkRepoUpsertOverwrites(t *testing.T) {
	ctx, db := newTestDB(t)

	repo, err := NewChunkRepo(ctx, db, 3)
	require.NoError(t, err)

	first := []core.IndexedChunk{{
		Chunk:      core.Chunk{Text: "old content", Start: 0, End: 11},
		ID:         42,
		SourceFile: "policy.md",
		ChunkIndex: 0,
		Embedding:  []float32{1, 0, 0},
	}}
	require.NoError(t, repo.UpsertChunks(ctx, first))

	second := []core.IndexedChunk{{
		Chunk:      core.Chunk{Text: "new content", Start: 0, End: 11},
		ID:         42,
		SourceFile: "policy.md",
		ChunkIndex: 0,
		Embedding:  []float32{0, 1, 0},
	}}
	require.NoError(t, repo.UpsertChunks(ctx, second))

	count, err := repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := repo.NearestChunks(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new content", results[0].Text)
}

func TestChunkRepoDimensionMismatch(t *testing.T) {
	ctx, db := newTestDB(t)

	_, err := NewChunkRepo(ctx, db, 3)
	require.NoError(t, err)

	_, err = NewChunkRepo(ctx, db, 1536)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "re-index")
}

func TestMemoryRepoCRUD(t *testing.T) {
	ctx, db := newTestDB(t)

	repo := NewMemoryRepo(db)
	now := time.Now().UTC()

	rec := core.MemoryRecord{
		ID:        "m-1",
		Type:      core.MemoryEpisodic,
		SessionID: "s-1",
		Content:   "customer asked about disbursement delays",
		Metadata:  map[string]string{"intent": "loan_status"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.Get(ctx, "m-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Content, got.Content)
	assert.Equal(t, "loan_status", got.Metadata["intent"])

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := repo.Delete(ctx, "m-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, "m-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryRepoPruneWorking(t *testing.T) {
	ctx, db := newTestDB(t)

	repo := NewMemoryRepo(db)
	base := time.Now().UTC()

	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		require.NoError(t, repo.Create(ctx, core.MemoryRecord{
			ID:        id,
			Type:      core.MemoryWorking,
			SessionID: "s-1",
			Content:   "turn",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	dropped, err := repo.PruneWorking(ctx, "s-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, dropped)

	left, err := repo.List(ctx, core.MemoryWorking, "s-1", 10)
	require.NoError(t, err)
	require.Len(t, left, 2)
	// Newest first.
	assert.Equal(t, "e", left[0].ID)
	assert.Equal(t, "d", left[1].ID)
}

func TestMemoryRepoListIgnoresOtherSessions(t *testing.T) {
	ctx, db := newTestDB(t)

	repo := NewMemoryRepo(db)
	now := time.Now().UTC()

	for _, tc := range []struct{ id, session string }{
		{"w-1", "s-1"},
		{"w-2", "s-2"},
	} {
		require.NoError(t, repo.Create(ctx, core.MemoryRecord{
			ID:        tc.id,
			Type:      core.MemoryWorking,
			SessionID: tc.session,
			Content:   "turn",
			CreatedAt: now,
			UpdatedAt: now,
		}))
	}

	got, err := repo.List(ctx, core.MemoryWorking, "s-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "w-1", got[0].ID)

	// Empty session matches everything, used for semantic reads.
	all, err := repo.List(ctx, core.MemoryWorking, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
