package cli

import (
	"context"
	"testing"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/internal/logging"
	"github.com/aretw0/rux/internal/testutils"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterDoc = `---
name: Counter
fields:
  v: {type: int, default: 0}
reducers:
  - name: inc
    set: v
    expr: v + 1
---
A counter.`

func TestNewReloader_RequiresRepo(t *testing.T) {
	_, err := NewReloader(Config{Manifest: writeManifest(t, testManifest)}, logging.NewNop())
	assert.ErrorIs(t, err, errNotWatchable)
}

func TestReloader_CarriesStateAcrossReloads(t *testing.T) {
	ctx := context.Background()
	dir, repo := testutils.SliceRepo(t, map[string]string{"counter.md": counterDoc})

	r, err := NewReloader(Config{Repo: dir, SnapshotDir: t.TempDir()}, logging.NewNop())
	require.NoError(t, err)

	first, err := r.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, first.DispatchByName("Counter", "inc"))

	testutils.SaveSlice(t, repo, "label.md", "---\nname: Label\nfields:\n  text: {type: string, default: hi}\n---\n")

	next, err := r.reload(ctx, first)
	require.NoError(t, err)
	v, err := next.GetState(domain.BuildPath("Counter", "v"))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	text, err := next.GetState(domain.BuildPath("Label", "text"))
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	assert.Contains(t, Describe(next), "2 roots")
}

func TestReloader_KeepsEngineOnBrokenManifest(t *testing.T) {
	ctx := context.Background()
	dir, repo := testutils.SliceRepo(t, map[string]string{"counter.md": counterDoc})

	r, err := NewReloader(Config{Repo: dir, SnapshotDir: t.TempDir()}, logging.NewNop())
	require.NoError(t, err)
	first, err := r.Open(ctx)
	require.NoError(t, err)

	testutils.SaveSlice(t, repo, "broken.md", "---\nname: Broken\nextends: [Missing]\n---\n")
	_, err = r.reload(ctx, first)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.True(t, first.HasStore())
}

func TestReloader_ExclusiveInstall(t *testing.T) {
	ctx := context.Background()
	dir, _ := testutils.SliceRepo(t, map[string]string{"counter.md": counterDoc})

	r, err := NewReloader(Config{Repo: dir, SnapshotDir: t.TempDir()}, logging.NewNop())
	require.NoError(t, err)
	held, err := r.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, held.DispatchByName("Counter", "inc"))
	require.NoError(t, held.DispatchByName("Counter", "inc"))

	calls := 0
	r.Exclusive = func(install func(*rux.Engine) (*rux.Engine, error)) error {
		calls++
		_, err := install(held)
		return err
	}
	next, err := r.reload(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	v, err := next.GetState(domain.BuildPath("Counter", "v"))
	require.NoError(t, err)
	assert.Equal(t, 2, v, "state comes from the engine handed to install")

	r.Exclusive = func(func(*rux.Engine) (*rux.Engine, error)) error { return assert.AnError }
	_, err = r.reload(ctx, held)
	assert.ErrorIs(t, err, assert.AnError)
}
