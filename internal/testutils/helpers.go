package testutils

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// SliceRepo initialises a loam repository in a temp dir and saves docs into it,
// keyed by document ID. It returns the absolute repository path.
func SliceRepo(t *testing.T, docs map[string]string, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)

	repo, err := loam.Init(dir, opts...)
	require.NoError(t, err, "failed to init slice repository")

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		SaveSlice(t, repo, id, docs[id])
	}
	return dir, repo
}

// SaveSlice writes one slice document.
func SaveSlice(t *testing.T, repo core.Repository, id, content string) {
	t.Helper()
	require.NoError(t, repo.Save(context.Background(), core.Document{ID: id, Content: content}), "failed to save %s", id)
}
