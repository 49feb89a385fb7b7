package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/rux/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	id := "contract-test-" + time.Now().Format("20060102150405")

	newSnapshot := func(id string) *domain.Snapshot {
		return &domain.Snapshot{
			ID: id,
			Slices: map[string]map[string]any{
				"Camera": {"name": "cam", "bit_depth": 16},
			},
			SavedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnapshot(id)

		err := store.Save(ctx, id, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, id, loaded.ID)
		assert.True(t, snap.SavedAt.Equal(loaded.SavedAt))
		require.Contains(t, loaded.Slices, "Camera")
		assert.Equal(t, "cam", loaded.Slices["Camera"]["name"])
		// Encoded stores return numbers as float64; rux coerces them back on LoadStore.
		assert.EqualValues(t, 16, loaded.Slices["Camera"]["bit_depth"])
	})

	t.Run("Save Replaces", func(t *testing.T) {
		snap := newSnapshot(id)
		snap.Slices["Camera"]["name"] = "other"
		require.NoError(t, store.Save(ctx, id, snap))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "other", loaded.Slices["Camera"]["name"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, id, newSnapshot(id)))

		err := store.Delete(ctx, id)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")

		assert.NoError(t, store.Delete(ctx, id), "Delete is idempotent")
	})

	t.Run("List", func(t *testing.T) {
		id1 := id + "-1"
		id2 := id + "-2"
		require.NoError(t, store.Save(ctx, id1, newSnapshot(id1)))
		require.NoError(t, store.Save(ctx, id2, newSnapshot(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
