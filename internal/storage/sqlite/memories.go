package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sandevgo/loanpilot/internal/core"
)

type MemoryRepo struct {
	db *sql.DB
}

func NewMemoryRepo(db *sql.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

func (r *MemoryRepo) Create(ctx context.Context, rec core.MemoryRecord) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal memory metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO memories (id, type, session_id, content, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Type), rec.SessionID, rec.Content, string(meta), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (*core.MemoryRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, type, session_id, content, metadata, created_at, updated_at
		 FROM memories WHERE id = ?`, id,
	)

	rec, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the newest records first. An empty sessionID matches records
// of any session, which is how session-less semantic memory is read.
func (r *MemoryRepo) List(ctx context.Context, typ core.MemoryType, sessionID string, limit int) ([]core.MemoryRecord, error) {
	query := `
		SELECT id, type, session_id, content, metadata, created_at, updated_at
		FROM memories
		WHERE type = ? AND (? = '' OR session_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, string(typ), sessionID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory list failed: %w", err)
	}
	defer rows.Close()

	var records []core.MemoryRecord
	for rows.Next() {
		rec, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("memory delete failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PruneWorking removes the oldest working records of a session beyond the
// keep window and reports how many were dropped.
func (r *MemoryRepo) PruneWorking(ctx context.Context, sessionID string, keep int) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM memories
		WHERE type = ? AND session_id = ? AND id NOT IN (
			SELECT id FROM memories
			WHERE type = ? AND session_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)`,
		string(core.MemoryWorking), sessionID,
		string(core.MemoryWorking), sessionID, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("memory prune failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(s scanner) (*core.MemoryRecord, error) {
	var rec core.MemoryRecord
	var typ, meta string
	var created, updated time.Time

	if err := s.Scan(&rec.ID, &typ, &rec.SessionID, &rec.Content, &meta, &created, &updated); err != nil {
		return nil, err
	}

	rec.Type = core.MemoryType(typ)
	rec.CreatedAt = created
	rec.UpdatedAt = updated
	if meta != "" && meta != "{}" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal memory metadata: %w", err)
		}
	}
	return &rec, nil
}
