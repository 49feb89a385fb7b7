package domain

import (
	"errors"
	"testing"

	"github.com/aretw0/rux/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roi struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func cameraType(t *testing.T) (*SliceType, *SliceType) {
	t.Helper()
	c := NewCatalog()
	bitDepth, err := c.Define(SliceDef{
		Name:   "BitDepth",
		Fields: []FieldDef{{Name: "bit_depth", Type: schema.Int()}},
	})
	require.NoError(t, err)
	camera, err := c.Define(SliceDef{
		Name:    "Camera",
		Parents: []*SliceType{bitDepth},
		Fields: []FieldDef{
			{Name: "name", Type: schema.String(), Default: "camera", HasDefault: true},
			{Name: "exposure", Type: schema.Float(), Default: 1.0, HasDefault: true},
			{Name: "roi", Type: schema.Struct[roi](), Default: roi{Width: 100, Height: 100}, HasDefault: true},
		},
	})
	require.NoError(t, err)
	return bitDepth, camera
}

func TestSliceType_New(t *testing.T) {
	_, camera := cameraType(t)

	inst, err := camera.New(map[string]any{"bit_depth": 16.0})
	require.NoError(t, err)
	assert.Equal(t, "Camera", inst.SliceName())
	assert.Equal(t, map[string]any{
		"bit_depth": 16,
		"name":      "camera",
		"exposure":  1.0,
		"roi":       roi{Width: 100, Height: 100},
	}, inst.Map())

	_, err = camera.New(map[string]any{"name": "x"})
	require.Error(t, err)
	assert.Len(t, schema.ValidationErrors(err), 1, "bit_depth has no default")

	_, err = camera.New(map[string]any{"bit_depth": 8, "zoom": 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zoom")
}

func TestInstance_UpdateIsCopyWithDelta(t *testing.T) {
	bitDepth, camera := cameraType(t)
	old := camera.MustNew(map[string]any{"bit_depth": 16})

	next, err := old.Update(
		Assign(bitDepth.MustPath("bit_depth"), 8),
		Assign(camera.MustPath("exposure"), 2),
	)
	require.NoError(t, err)

	assert.NotSame(t, old, next)
	assert.Same(t, old.Type(), next.Type())

	v, _ := old.Get("bit_depth")
	assert.Equal(t, 16, v, "old instance is untouched")
	v, _ = next.Get("bit_depth")
	assert.Equal(t, 8, v)
	v, _ = next.Get("exposure")
	assert.Equal(t, 2.0, v)
	v, _ = next.Get("name")
	assert.Equal(t, "camera", v)
}

func TestInstance_UpdateErrors(t *testing.T) {
	_, camera := cameraType(t)
	old := camera.MustNew(map[string]any{"bit_depth": 16})

	_, err := old.Set("bit_depth", "deep")
	var verr *schema.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "bit_depth", verr.Key)

	_, err = old.Update(Assign(BuildPath("Other", "bit_depth"), 8))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = old.Set("zoom", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	v, _ := old.Get("bit_depth")
	assert.Equal(t, 16, v)
}

func TestInstance_ValueThroughAncestorPath(t *testing.T) {
	bitDepth, camera := cameraType(t)
	inst := camera.MustNew(map[string]any{"bit_depth": 12})

	v, err := inst.Value(bitDepth.MustPath("bit_depth"))
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	p := MustPathOf[int](camera, "bit_depth")
	got, err := p.In(inst)
	require.NoError(t, err)
	assert.Equal(t, 12, got)

	r, err := Get[roi](inst, "roi")
	require.NoError(t, err)
	assert.Equal(t, 100, r.Width)

	_, err = Get[string](inst, "bit_depth")
	assert.Error(t, err)
}

func TestInstance_Equal(t *testing.T) {
	_, camera := cameraType(t)
	a := camera.MustNew(map[string]any{"bit_depth": 8})
	b := camera.MustNew(map[string]any{"bit_depth": 8.0})
	c, _ := a.Set("bit_depth", 10)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "Camera{bit_depth: 8, name: camera, exposure: 1, roi: {0 0 100 100}}", a.String())
}

func TestAs(t *testing.T) {
	n, err := As[int](16.0)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	f, err := As[float64](3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	r, err := As[roi](map[string]any{"left": 1, "top": 2, "width": 3, "height": 4})
	require.NoError(t, err)
	assert.Equal(t, roi{1, 2, 3, 4}, r)

	xs, err := As[[]int]([]any{1.0, 2.0})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, xs)

	var p *roi
	p, err = As[*roi](nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = As[int](nil)
	assert.Error(t, err)
	_, err = As[int]("sixteen")
	assert.Error(t, err)
}
