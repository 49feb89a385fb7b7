package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/internal/dto"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/manifest"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterManifest = `
slices:
  - name: Counter
    doc: A counter.
    fields:
      v: {type: int, default: 0}
    reducers:
      - name: add
        payload: int
        set: v
        expr: v + payload
`

func newTestServer(t *testing.T) (*Server, *rux.Engine) {
	t.Helper()
	m, err := manifest.Load([]byte(counterManifest))
	require.NoError(t, err)
	eng, err := rux.NewFromManifest(m)
	require.NoError(t, err)
	return NewServer(eng, nil), eng
}

func TestServer_StateTools(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handleDispatchState(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"path":  "Counter.v",
		"value": "5",
	})
	require.NoError(t, err)
	assert.Equal(t, "Counter.v", resp.Path)
	assert.Equal(t, 5, resp.Value)

	resp, err = s.handleGetState(ctx, mcp.CallToolRequest{}, map[string]interface{}{"path": "Counter.v"})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Value)

	_, err = s.handleGetState(ctx, mcp.CallToolRequest{}, map[string]interface{}{"path": "Counter"})
	assert.Error(t, err)

	_, err = s.handleDispatchState(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"path":  "Counter.v",
		"value": `"five"`,
	})
	assert.Error(t, err)
}

func TestServer_Dispatch(t *testing.T) {
	s, eng := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handleDispatch(ctx, mcp.CallToolRequest{}, map[string]interface{}{
		"slice":   "Counter",
		"reducer": "add",
		"payload": "3",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Slices["Counter"]["v"])

	v, _ := eng.GetState(domain.BuildPath("Counter", "v"))
	assert.Equal(t, 3, v)

	_, err = s.handleDispatch(ctx, mcp.CallToolRequest{}, map[string]interface{}{"slice": "Counter", "reducer": "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	dump, err := s.handleDumpStore(ctx, mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]any{"Counter": {"v": 3}}, dump.Slices)
}

func TestServer_CatalogResource(t *testing.T) {
	s, _ := newTestServer(t)

	text, err := s.catalogJSON()
	require.NoError(t, err)

	var slices []dto.SliceInfo
	require.NoError(t, json.Unmarshal([]byte(text), &slices))
	require.Len(t, slices, 1)
	assert.Equal(t, "Counter", slices[0].Name)
	assert.Equal(t, "A counter.", slices[0].Doc)
	require.Len(t, slices[0].Reducers, 1)
	assert.True(t, slices[0].Reducers[0].Payload)
}
