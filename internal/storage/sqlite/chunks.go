package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/loanpilot/internal/core"
)

const dimensionKey = "embedding_dimension"

// ChunkRepo stores document chunks alongside their embeddings in a vec0
// virtual table. The virtual table is created at startup with the dimension
// of the bound embedder, so swapping embedding backends against an existing
// index fails loudly instead of silently mixing vector spaces.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(ctx context.Context, db *sql.DB, dimension int) (*ChunkRepo, error) {
	r := &ChunkRepo{db: db}
	if err := r.ensureVectorTable(ctx, dimension); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ChunkRepo) ensureVectorTable(ctx context.Context, dimension int) error {
	var stored string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM index_meta WHERE key = ?`, dimensionKey,
	).Scan(&stored)

	switch {
	case err == sql.ErrNoRows:
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO index_meta (key, value) VALUES (?, ?)`,
			dimensionKey, fmt.Sprint(dimension),
		); err != nil {
			return fmt.Errorf("failed to record embedding dimension: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read embedding dimension: %w", err)
	case stored != fmt.Sprint(dimension):
		return fmt.Errorf("index was built with embedding dimension %s but current backend produces %d: re-index from scratch", stored, dimension)
	}

	_, err = r.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_vec USING vec0(embedding float[%d])`,
		dimension,
	))
	if err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	return nil
}

// UpsertChunks writes chunks and their vectors in one transaction. Chunk IDs
// are stable hashes of (source_file, chunk_index), so re-indexing a file
// overwrites its previous chunks in place.
func (r *ChunkRepo) UpsertChunks(ctx context.Context, chunks []core.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range chunks {
		vecBlob, err := serializeVector(c.Embedding)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO chunks (id, source_file, chunk_index, content, start_offset, end_offset)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.SourceFile, c.ChunkIndex, c.Text, c.Start, c.End,
		); err != nil {
			return fmt.Errorf("failed to insert chunk metadata: %w", err)
		}

		// vec0 tables do not support INSERT OR REPLACE, delete first.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunks_vec WHERE rowid = ?`, c.ID,
		); err != nil {
			return fmt.Errorf("failed to clear chunk vector: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks_vec (rowid, embedding) VALUES (?, ?)`,
			c.ID, vecBlob,
		); err != nil {
			return fmt.Errorf("failed to insert chunk vector: %w", err)
		}
	}

	return tx.Commit()
}

// NearestChunks returns up to k chunks ordered by ascending L2 distance to
// the query embedding.
func (r *ChunkRepo) NearestChunks(ctx context.Context, embedding []float32, k int) ([]core.RetrievalResult, error) {
	vecBlob, err := serializeVector(embedding)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			c.content, c.source_file, c.chunk_index, c.start_offset, c.end_offset, v.distance
		FROM chunks_vec v
		JOIN chunks c ON c.id = v.rowid
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`
	rows, err := r.db.QueryContext(ctx, query, vecBlob, k)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}
	defer rows.Close()

	var results []core.RetrievalResult
	for rows.Next() {
		var res core.RetrievalResult
		var dist sql.NullFloat64
		if err := rows.Scan(&res.Text, &res.SourceFile, &res.ChunkIndex, &res.Start, &res.End, &dist); err != nil {
			return nil, err
		}
		if dist.Valid {
			d := dist.Float64
			res.Distance = &d
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *ChunkRepo) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("chunk count failed: %w", err)
	}
	return count, nil
}
