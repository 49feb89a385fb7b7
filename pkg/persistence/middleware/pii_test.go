package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/rux/pkg/adapters/memory"
	"github.com/aretw0/rux/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := middleware.NewPIIMiddleware([]string{`\.owner$`, "ssn"})(underlying)

	snap := cameraSnapshot("pii")
	snap.Slices["Camera"]["details"] = map[string]any{"address": "123 St", "ssn_number": "999"}
	require.NoError(t, store.Save(ctx, "pii", snap))

	assert.Equal(t, "jdoe", snap.Slices["Camera"]["owner"], "input must not be modified")

	stored, err := underlying.Load(ctx, "pii")
	require.NoError(t, err)
	camera := stored.Slices["Camera"]
	assert.Equal(t, middleware.Mask, camera["owner"])
	assert.Equal(t, "SN-123", camera["serial"])
	details := camera["details"].(map[string]any)
	assert.Equal(t, middleware.Mask, details["ssn_number"])
	assert.Equal(t, "123 St", details["address"])
}

func TestChain_OrdersOutermostFirst(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	key := generateKey(t)
	store := middleware.Chain(underlying,
		middleware.NewPIIMiddleware([]string{"serial"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	require.NoError(t, store.Save(ctx, "c", cameraSnapshot("c")))

	loaded, err := store.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Slices["Camera"]["serial"])

	raw, err := underlying.Load(ctx, "c")
	require.NoError(t, err)
	assert.Contains(t, raw.Slices, "__encrypted__")
}
