package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"testing"
)

func TestVecExtensionLoaded(t *testing.T) {
	db, err := sql.Open("sqlite3_vec", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		t.Fatalf("vec_version() failed: %v (extension not linked?)", err)
	}
	if version == "" {
		t.Error("expected a version string, got empty")
	}
}

func TestChunkVectorRelation(t *testing.T) {
	db, err := sql.Open("sqlite3_vec", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE chunks (
		id INTEGER PRIMARY KEY,
		text TEXT
	)`)
	if err != nil {
		t.Fatal(err)
	}

	// In sqlite-vec, rowid is the primary key of the virtual table.
	_, err = db.Exec(`CREATE VIRTUAL TABLE chunks_vec USING vec0(embedding float[3])`)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.Exec(`INSERT INTO chunks (id, text) VALUES (42, 'loan eligibility rules')`); err != nil {
		t.Fatal(err)
	}

	vec := []float32{0.1, 0.2, 0.3}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO chunks_vec(rowid, embedding) VALUES (?, ?)`, 42, buf.Bytes()); err != nil {
		t.Fatalf("failed to insert vector with rowid: %v", err)
	}

	var text string
	err = db.QueryRow(`
		SELECT c.text
		FROM chunks c
		JOIN chunks_vec v ON c.id = v.rowid
		WHERE v.rowid = ?`, 42).Scan(&text)
	if err != nil {
		t.Fatalf("join query failed: %v", err)
	}
	if text != "loan eligibility rules" {
		t.Errorf("expected chunk text, got %q", text)
	}
}
