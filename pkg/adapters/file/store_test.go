package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/rux/pkg/adapters/file"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.SnapshotStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_YAMLContract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, file.New(t.TempDir(), file.WithFormat(file.FormatYAML)))
}

func TestFileStore_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := file.New(dir, file.WithFormat(file.FormatYAML))

	require.NoError(t, store.Save(ctx, "snap", &domain.Snapshot{
		ID:     "snap",
		Slices: map[string]map[string]any{"X": {"v": 1}},
	}))

	data, err := os.ReadFile(filepath.Join(dir, "snap.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "slices:")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStore_RejectsBadIDs(t *testing.T) {
	ctx := context.Background()
	store := file.New(t.TempDir())

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, store.Save(ctx, id, &domain.Snapshot{}), id)
		_, err := store.Load(ctx, id)
		assert.Error(t, err, id)
	}
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
