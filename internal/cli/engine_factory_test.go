package cli

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/rux/internal/logging"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
slices:
  - name: BitDepth
    fields:
      bit_depth: {type: int, default: 16}
    reducers:
      - name: set_bit_depth
        payload: int
        set: bit_depth
        expr: min(64, max(0, payload))
  - name: Camera
    extends: [BitDepth]
    fields:
      owner: {type: string, default: ""}
  - name: Display
    fields:
      bit_depth: {type: int, default: 8}
    derive:
      - name: follow_camera
        from: [Camera.bit_depth]
        set: bit_depth
        expr: min(Camera_bit_depth, 32)
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camera.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConfig_Validate(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))

	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"Manifest", Config{Manifest: "rux.yaml"}, ""},
		{"Repo", Config{Repo: "."}, ""},
		{"No source", Config{}, "required"},
		{"Both sources", Config{Manifest: "rux.yaml", Repo: "."}, "mutually exclusive"},
		{"Valid key", Config{Manifest: "rux.yaml", EncryptionKey: key}, ""},
		{"Short key", Config{Manifest: "rux.yaml", EncryptionKey: base64.StdEncoding.EncodeToString([]byte("short"))}, "want 32 bytes"},
		{"Not base64", Config{Manifest: "rux.yaml", EncryptionKey: "%%%"}, "invalid encryption key"},
		{"Seed", Config{Manifest: "rux.yaml", KeySeed: "seed", FallbackVersions: []string{"v0"}}, ""},
		{"Key and seed", Config{Manifest: "rux.yaml", EncryptionKey: key, KeySeed: "seed"}, "mutually exclusive"},
		{"Redis and postgres", Config{Manifest: "rux.yaml", RedisAddr: "localhost:6379", PostgresDSN: "postgres://localhost/rux"}, "--redis and --postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	_, err := NewLogger(Config{LogLevel: "debug", LogFormat: "json"})
	assert.NoError(t, err)
	_, err = NewLogger(Config{LogLevel: "loud"})
	assert.Error(t, err)
	_, err = NewLogger(Config{LogFormat: "xml"})
	assert.Error(t, err)
}

func TestNewEngine_FromManifest(t *testing.T) {
	ctx := context.Background()
	c := Config{Manifest: writeManifest(t, testManifest), SnapshotDir: t.TempDir()}

	engine, err := NewEngine(ctx, c, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "camera", engine.Name)

	roots, err := engine.Roots()
	require.NoError(t, err)
	assert.Equal(t, []string{"Camera", "Display"}, roots)

	require.NoError(t, engine.DispatchByName("Camera", "set_bit_depth", 12))
	v, err := engine.GetState(domain.BuildPath("Display", "bit_depth"))
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	id, err := engine.Persist(ctx, "s1")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(c.SnapshotDir, id+".json"))
	assert.NoError(t, err)
}

func TestNewEngine_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewEngine(ctx, Config{}, logging.NewNop())
	assert.ErrorIs(t, err, errNoSource)

	_, err = NewEngine(ctx, Config{Manifest: filepath.Join(t.TempDir(), "missing.yaml")}, logging.NewNop())
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewEngine(ctx, Config{Manifest: writeManifest(t, testManifest), SnapshotFormat: "toml"}, logging.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown snapshot format")
}

func TestSnapshotStore_EncryptedAndMasked(t *testing.T) {
	ctx := context.Background()
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	dir := t.TempDir()
	c := Config{
		Manifest:      writeManifest(t, testManifest),
		SnapshotDir:   dir,
		EncryptionKey: key,
		Mask:          []string{`^Camera\.owner$`},
	}

	engine, err := NewEngine(ctx, c, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, engine.DispatchState(domain.BuildPath("Camera", "owner"), "alice"))
	_, err = engine.Persist(ctx, "s1")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "s1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "alice")
	assert.NotContains(t, string(raw), "bit_depth")

	require.NoError(t, engine.Restore(ctx, "s1"))
	owner, err := engine.GetState(domain.BuildPath("Camera", "owner"))
	require.NoError(t, err)
	assert.Equal(t, "***", owner)
}

func TestSnapshotStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	c := Config{Manifest: writeManifest(t, testManifest), RedisAddr: mr.Addr()}

	engine, err := NewEngine(ctx, c, logging.NewNop())
	require.NoError(t, err)
	_, err = engine.Persist(ctx, "s1")
	require.NoError(t, err)

	assert.True(t, mr.Exists("rux:snapshot:s1"))
	assert.False(t, mr.Exists("rux:lock:snapshot:s1"), "lock is released after the save")
	ids, err := engine.Snapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestSnapshotStore_KeySeedRotation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := writeManifest(t, testManifest)

	old, err := NewEngine(ctx, Config{Manifest: path, SnapshotDir: dir, KeySeed: "seed"}, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, old.DispatchState(domain.BuildPath("Camera", "owner"), "bob"))
	_, err = old.Persist(ctx, "s1")
	require.NoError(t, err)

	rotated, err := NewEngine(ctx, Config{Manifest: path, SnapshotDir: dir, KeySeed: "seed", KeyVersion: "v2", FallbackVersions: []string{"v1"}}, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, rotated.Restore(ctx, "s1"))
	owner, err := rotated.GetState(domain.BuildPath("Camera", "owner"))
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	other, err := NewEngine(ctx, Config{Manifest: path, SnapshotDir: dir, KeySeed: "other"}, logging.NewNop())
	require.NoError(t, err)
	assert.Error(t, other.Restore(ctx, "s1"))
}
