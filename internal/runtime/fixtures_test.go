package runtime_test

import (
	"testing"

	"github.com/aretw0/rux/internal/runtime"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/dsl"
	"github.com/aretw0/rux/pkg/schema"
	"github.com/stretchr/testify/require"
)

type roi struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

const screenBitDepth = 8.0

// fixtures holds a camera/image pipeline, a diamond hierarchy and a counter.
type fixtures struct {
	catalog *domain.Catalog

	baseCamera *domain.SliceType
	bitDepth   *domain.SliceType
	roiSlice   *domain.SliceType
	exposure   *domain.SliceType
	camera     *domain.SliceType
	imgConfig  *domain.SliceType
	imgExtra   *domain.SliceType

	diamond []*domain.SliceType // Slice1..Slice7

	counter *domain.SliceType
}

func float(s *domain.Instance, field string) float64 {
	v, _ := domain.Get[float64](s, field)
	return v
}

func integer(s *domain.Instance, field string) int {
	v, _ := domain.Get[int](s, field)
	return v
}

func fitBitDepth(s *domain.Instance, bitDepth int) (*domain.Instance, error) {
	white := min(float(s, "white_level"), float(s, "black_level")+screenBitDepth/float64(bitDepth))
	return s.Update(
		domain.Assign(s.Type().MustPath("white_level"), white),
		domain.Assign(s.Type().MustPath("bit_depth"), bitDepth),
	)
}

func newFixtures(t *testing.T) *fixtures {
	t.Helper()
	b := dsl.New()
	f := &fixtures{}

	f.baseCamera = b.Slice("BaseCamera").
		Field("name", schema.String()).
		Field("camera_id", schema.String()).
		Define()

	f.bitDepth = b.Slice("BitDepth").
		Field("bit_depth", schema.Int()).
		Reducer(dsl.Payload("set_bit_depth", func(s *domain.Instance, depth int) (*domain.Instance, error) {
			return s.Set("bit_depth", min(64, max(0, depth)))
		})).
		Define()

	f.roiSlice = b.Slice("Roi").
		Field("roi", schema.Struct[roi]()).
		Define()

	f.exposure = b.Slice("Exposure").
		Field("exposure_in_s", schema.Float()).
		Reducer(dsl.Payload("set_exposure", func(s *domain.Instance, v float64) (*domain.Instance, error) {
			return s.Set("exposure_in_s", min(100, max(0, v)))
		})).
		Reduce("increment_exposure", func(s *domain.Instance) (*domain.Instance, error) {
			return s.Set("exposure_in_s", float(s, "exposure_in_s")+1)
		}).
		Reduce("decrement_exposure", func(s *domain.Instance) (*domain.Instance, error) {
			return s.Set("exposure_in_s", float(s, "exposure_in_s")-1)
		}).
		Define()

	f.camera = b.Slice("Camera").
		Extends(f.baseCamera, f.bitDepth, f.roiSlice, f.exposure).
		Field("owner", schema.String()).
		Define()

	img := b.Slice("ImgConfig").
		Field("rotation", schema.Float(), dsl.Default(0.0)).
		Field("log_display", schema.Bool(), dsl.Default(false)).
		Field("black_level", schema.Float(), dsl.Default(0.0)).
		Field("white_level", schema.Float(), dsl.Default(1.0)).
		Field("bit_depth", schema.Int(), dsl.Default(8)).
		Field("bg_enabled", schema.Bool(), dsl.Default(false)).
		Field("roi", schema.Struct[roi](), dsl.Default(roi{Width: 100, Height: 100})).
		Reducer(dsl.Payload("set_black_level", func(s *domain.Instance, level float64) (*domain.Instance, error) {
			white := float(s, "white_level")
			return s.Update(
				domain.Assign(s.Type().MustPath("black_level"), min(level, white)),
				domain.Assign(s.Type().MustPath("white_level"), min(white, level+screenBitDepth/float64(integer(s, "bit_depth")))),
			)
		})).
		Reducer(dsl.Payload("set_white_level", func(s *domain.Instance, level float64) (*domain.Instance, error) {
			black := float(s, "black_level")
			return s.Update(
				domain.Assign(s.Type().MustPath("black_level"), max(black, level-screenBitDepth/float64(integer(s, "bit_depth")))),
				domain.Assign(s.Type().MustPath("white_level"), max(level, black)),
			)
		})).
		Reducer(dsl.Payload("set_bit_depth", fitBitDepth)).
		Reducer(dsl.Payload("set_roi", func(s *domain.Instance, r roi) (*domain.Instance, error) {
			return s.Set("roi", r)
		})).
		React(domain.React1("react_to_bit_depth", domain.NewPath[int]("BitDepth", "bit_depth"), fitBitDepth)).
		React(dsl.On(f.camera.MustPath("exposure_in_s")).Do("react_to_exposure", func(s *domain.Instance) (*domain.Instance, error) {
			on, _ := domain.Get[bool](s, "bg_enabled")
			return s.Set("bg_enabled", !on)
		}))
	f.imgConfig = img.Define()

	f.imgExtra = b.Slice("ImgConfigExtra").
		Extends(f.imgConfig).
		React(domain.React1("react_to_roi", domain.NewPath[roi]("Camera", "roi"), func(s *domain.Instance, r roi) (*domain.Instance, error) {
			return s.Set("roi", r)
		})).
		React(domain.React2("react_to_many",
			domain.NewPath[float64]("Camera", "exposure_in_s"),
			domain.NewPath[int]("Camera", "bit_depth"),
			func(s *domain.Instance, exposure float64, depth int) (*domain.Instance, error) {
				return s.Set("black_level", exposure+float64(depth))
			})).
		Define()

	s1 := b.Slice("Slice1").Field("state1", schema.Int(), dsl.Default(0)).Define()
	s2 := b.Slice("Slice2").Field("state2", schema.Int(), dsl.Default(0)).Define()
	s3 := b.Slice("Slice3").Extends(s1).Field("state3", schema.Int(), dsl.Default(0)).Define()
	s4 := b.Slice("Slice4").Extends(s3, s2).Field("state4", schema.Int(), dsl.Default(0)).Define()
	s5 := b.Slice("Slice5").Field("state5", schema.Int(), dsl.Default(0)).Define()
	s6 := b.Slice("Slice6").Field("state6", schema.Int(), dsl.Default(0)).Define()
	s7 := b.Slice("Slice7").Extends(s4, s5, s6).Field("state7", schema.Int(), dsl.Default(0)).Define()
	f.diamond = []*domain.SliceType{s1, s2, s3, s4, s5, s6, s7}

	f.counter = b.Slice("X").
		Field("v", schema.Int(), dsl.Default(0)).
		Reduce("inc", func(s *domain.Instance) (*domain.Instance, error) {
			return s.Set("v", integer(s, "v")+1)
		}).
		Define()

	var err error
	f.catalog, err = b.Build()
	require.NoError(t, err)
	return f
}

func (f *fixtures) defaultCamera() *domain.Instance {
	return f.camera.MustNew(map[string]any{
		"name":          "Camera",
		"camera_id":     "camera_1",
		"roi":           roi{Width: 100, Height: 100},
		"exposure_in_s": 1.0,
		"bit_depth":     16,
		"owner":         "owner_1",
	})
}

func (f *fixtures) defaultImg() *domain.Instance {
	return f.imgConfig.MustNew(nil)
}

func (f *fixtures) defaultSlice7() *domain.Instance {
	return f.diamond[6].MustNew(map[string]any{
		"state1": 1, "state2": 2, "state3": 3, "state4": 4,
		"state5": 5, "state6": 6, "state7": 7,
	})
}

func (f *fixtures) engine(t *testing.T, instances ...*domain.Instance) *runtime.Engine {
	t.Helper()
	e := runtime.NewEngine(f.catalog)
	require.NoError(t, e.CreateStore(instances...))
	return e
}

func state[T any](t *testing.T, e *runtime.Engine, path domain.StatePath) T {
	t.Helper()
	v, err := e.GetState(path)
	require.NoError(t, err)
	out, err := domain.As[T](v)
	require.NoError(t, err)
	return out
}

// recorder collects the values delivered to a single-path subscriber.
type recorder[T any] struct {
	values []T
}

func (r *recorder[T]) callback(values []any) error {
	v, err := domain.As[T](values[0])
	if err != nil {
		return err
	}
	r.values = append(r.values, v)
	return nil
}
