package dto

import (
	"testing"

	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/dsl"
	"github.com/aretw0/rux/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeCatalog(t *testing.T) {
	b := dsl.New()
	bitDepth := b.Slice("BitDepth").
		Field("bit_depth", schema.Int(), dsl.Default(8), dsl.Describe("bits per pixel")).
		Reducer(dsl.Payload("set_bit_depth", func(s *domain.Instance, v int) (*domain.Instance, error) {
			return s.Set("bit_depth", v)
		})).
		Define()
	camera := b.Slice("Camera").
		Extends(bitDepth).
		Field("owner", schema.String()).
		Define()
	b.Slice("Display").
		Field("gain", schema.Float(), dsl.Default(1.0)).
		React(dsl.On(camera.MustPath("bit_depth")).Do("follow", func(s *domain.Instance) (*domain.Instance, error) {
			return s, nil
		})).
		Define()
	catalog, err := b.Build()
	require.NoError(t, err)

	infos := DescribeCatalog(catalog)
	require.Len(t, infos, 3)

	cam := infos[1]
	assert.Equal(t, "Camera", cam.Name)
	assert.Equal(t, []string{"BitDepth"}, cam.Parents)
	require.Len(t, cam.Fields, 2)
	assert.Equal(t, FieldInfo{Name: "bit_depth", Type: "int", Owner: "BitDepth", Default: 8, Doc: "bits per pixel"}, cam.Fields[0])
	assert.Equal(t, FieldInfo{Name: "owner", Type: "string", Owner: "Camera"}, cam.Fields[1])
	assert.Equal(t, []ReducerInfo{{Name: "set_bit_depth", Owner: "BitDepth", Payload: true}}, cam.Reducers)

	display := infos[2]
	assert.Equal(t, []ReactionInfo{{Name: "follow", Deps: []string{"BitDepth.bit_depth"}}}, display.Reactions)
}
