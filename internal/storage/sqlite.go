package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/klauspost/compress/zstd"

	"modelc/internal/graph"
	"modelc/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ SnapshotStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	s := &SQLiteStore{db: db, enc: enc, dec: dec}
	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	s.dec.Close()
	_ = s.enc.Close()
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			content_hash TEXT,
			immutable INTEGER,
			compiled INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			id INTEGER PRIMARY KEY,
			kind TEXT,
			name TEXT,
			source TEXT,
			payload BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_source ON nodes(source);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot replaces the stored snapshot in one SQL transaction. Node
// payloads are JSON compressed with zstd.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap graph.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM nodes", "DELETE FROM sources"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes (id, kind, name, source, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	srcStmt, err := tx.PrepareContext(ctx, `INSERT INTO sources (id, content_hash, immutable, compiled) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer srcStmt.Close()

	for i := range snap.Nodes {
		n := &snap.Nodes[i]
		raw, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to encode node %d: %w", n.ID, err)
		}
		payload := s.enc.EncodeAll(raw, nil)
		if _, err := stmt.ExecContext(ctx, int64(n.ID), string(n.Kind), n.Name, n.Source, payload); err != nil {
			return err
		}

		if n.Kind != graph.KindSource {
			continue
		}
		immutable, _ := n.Literal(model.PropImmutable)
		compiled, _ := n.Literal(model.PropCompiled)
		if _, err := srcStmt.ExecContext(ctx, n.Name, n.String(model.PropContentHash), immutable.Bool(), compiled.Bool()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (graph.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, payload FROM nodes ORDER BY id")
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var snap graph.Snapshot
	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return graph.Snapshot{}, fmt.Errorf("failed to scan node: %w", err)
		}
		raw, err := s.dec.DecodeAll(payload, nil)
		if err != nil {
			return graph.Snapshot{}, fmt.Errorf("failed to decompress node %d: %w", id, err)
		}
		var n graph.Node
		if err := json.Unmarshal(raw, &n); err != nil {
			return graph.Snapshot{}, fmt.Errorf("failed to decode node %d: %w", id, err)
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return graph.Snapshot{}, err
	}
	if len(snap.Nodes) == 0 {
		return graph.Snapshot{}, ErrNoSnapshot
	}
	return snap, nil
}

func (s *SQLiteStore) SourceHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, content_hash FROM sources")
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out[id] = hash
	}
	return out, rows.Err()
}

// Load restores the stored snapshot into a fresh graph context.
func Load(ctx context.Context, s SnapshotStore, log logr.Logger) (*graph.Context, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	c, err := graph.Restore(snap, log)
	if err != nil {
		return nil, fmt.Errorf("failed to restore snapshot: %w", err)
	}
	log.V(1).Info("snapshot loaded", "nodes", len(snap.Nodes))
	return c, nil
}
