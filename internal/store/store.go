package store

import (
	"context"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// Store defines the persistence operations the generator and the sync
// orchestrator depend on. Consumers should depend on this interface rather
// than the concrete *DB type.
type Store interface {
	LoadGraph(ctx context.Context) (*model.Graph, error)
	Keys(ctx context.Context, f model.Family) (map[string]int64, error)
	Addresses(ctx context.Context, f model.Family) (map[string]int64, error)
	Begin(ctx context.Context) (Tx, error)
	RecordGenerated(ctx context.Context, rows []ManifestRow) error
	Manifest(ctx context.Context) (map[string]ManifestRow, error)
	PruneManifest(ctx context.Context, keep map[string]struct{}) (int, error)
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
