package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/rux/internal/testutils"
	"github.com/aretw0/rux/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.ManifestSource = (*Loader)(nil)

func TestLoader_LoadManifest(t *testing.T) {
	ctx := context.Background()
	_, repo := testutils.SliceRepo(t, map[string]string{
		"bit_depth.md": `---
name: BitDepth
fields:
  - {name: bit_depth, type: int, default: 16}
reducers:
  - name: set_bit_depth
    payload: int
    set: bit_depth
    expr: min(64, max(0, payload))
---
Sensor bit depth.`,
		"camera.md": `---
name: Camera
extends: [BitDepth]
root: true
fields:
  exposure: {type: float, default: 1.5}
  owner: {type: string, default: ""}
---`,
		"display.md": `---
root: true
fields:
  bit_depth: {type: int, default: 8}
derive:
  - name: follow_camera
    from: [Camera.bit_depth]
    set: bit_depth
    expr: min(Camera_bit_depth, 32)
---`,
	})

	loader := New(loam.NewTypedRepository[SliceMetadata](repo))
	m, err := loader.LoadManifest(ctx)
	require.NoError(t, err)

	names, err := loader.ListSlices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BitDepth", "Camera", "display"}, names)
	assert.Equal(t, []string{"Camera", "display"}, m.Store)

	bitDepth, _ := m.Slice("BitDepth")
	assert.Equal(t, "Sensor bit depth.", bitDepth.Doc)
	require.Len(t, bitDepth.Reducers, 1)

	camera, _ := m.Slice("Camera")
	require.Len(t, camera.Fields, 2)
	assert.Equal(t, "exposure", camera.Fields[0].Name, "mapping fields are laid out by name")

	compiled, err := m.Compile()
	require.NoError(t, err)
	require.Len(t, compiled.Roots, 2)
}

func TestLoader_DetectsCollisions(t *testing.T) {
	tmpDir, repo := testutils.SliceRepo(t, nil)

	files := map[string]string{
		"foo.md": "---\nname: Foo\n---\n",
		"bar.md": "---\nname: Foo\n---\n",
	}
	for filename, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, filename), []byte(content), 0644))
	}

	loader := New(loam.NewTypedRepository[SliceMetadata](repo))
	_, err := loader.LoadManifest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestLoader_InvalidFields(t *testing.T) {
	tmpDir, repo := testutils.SliceRepo(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "bad.md"), []byte("---\nfields: 3\n---\n"), 0644))

	loader := New(loam.NewTypedRepository[SliceMetadata](repo))
	_, err := loader.LoadManifest(context.Background())
	assert.ErrorContains(t, err, "fields must be a mapping or a list")
}
