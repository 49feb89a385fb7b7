/*
Package dsl provides a fluent builder for declaring rux slice types in Go.

Declarations accumulate errors instead of failing one by one; Build reports
them all at once.

	b := dsl.New()

	camera := b.Slice("Camera").
		Field("bit_depth", schema.Int(), dsl.Default(16)).
		Reducer(dsl.Payload("set_bit_depth", func(s *domain.Instance, depth int) (*domain.Instance, error) {
			return s.Set("bit_depth", min(64, depth))
		})).
		Define()

	b.Slice("Display").
		Field("bit_depth", schema.Int(), dsl.Default(8)).
		React(domain.React1("follow_camera", domain.MustPathOf[int](camera, "bit_depth"),
			func(s *domain.Instance, depth int) (*domain.Instance, error) {
				return s.Set("bit_depth", min(64, depth))
			})).
		Define()

	catalog, err := b.Build()
*/
package dsl
