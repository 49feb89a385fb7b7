package ports

import (
	"context"

	"github.com/aretw0/rux/pkg/domain"
)

// SnapshotStore defines the interface for persisting store snapshots.
// A snapshot is the plain output of DumpStore; restoring it goes through LoadStore.
type SnapshotStore interface {
	// Save persists the snapshot under the given ID, replacing any previous one.
	Save(ctx context.Context, id string, snapshot *domain.Snapshot) error

	// Load retrieves the snapshot for a given ID.
	// Returns domain.ErrSnapshotNotFound if the snapshot does not exist.
	Load(ctx context.Context, id string) (*domain.Snapshot, error)

	// Delete removes the snapshot. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of every stored snapshot.
	List(ctx context.Context) ([]string, error)
}
