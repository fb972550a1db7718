package storage

import (
	"context"
	"errors"

	"modelc/internal/graph"
)

// ErrNoSnapshot is returned when the cache holds no saved graph.
var ErrNoSnapshot = errors.New("storage: no snapshot saved")

// SnapshotStore persists compiled graphs between runs.
type SnapshotStore interface {
	// SaveSnapshot replaces the stored snapshot.
	SaveSnapshot(ctx context.Context, s graph.Snapshot) error

	// LoadSnapshot returns the stored snapshot or ErrNoSnapshot.
	LoadSnapshot(ctx context.Context) (graph.Snapshot, error)

	// SourceHashes returns the content hash of every stored source.
	SourceHashes(ctx context.Context) (map[string]string, error)

	Close() error
}
