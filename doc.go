/*
Package rux is a reactive, typed state store organised in slices.

A store holds one immutable instance per root slice. Slices are declared as
types with typed fields, reducers (pure functions producing a new instance) and
extra reducers, called reactions, that re-derive a slice whenever a field of
another slice changes. Slice types may extend other slice types; a path through
any ancestor reaches the root that owns it.

# Concept

Every write goes through Dispatch or DispatchState. The engine diffs the new
instance against the old one, notifies the subscribers of each changed field
and only then commits. A failing reducer or subscriber rolls the dispatch back:
subscribers are re-notified with the old values and the store is untouched.

# Key Features

  - Typed slices: fields are validated and coerced by package schema.
  - Multiple inheritance: a store is addressed through any ancestor type.
  - Reactions: cross-slice propagation declared by the dependent slice.
  - Snapshots: DumpStore/LoadStore round trips, persisted through ports.SnapshotStore.
  - Manifests: slices may be declared in YAML (package manifest) or Go (package dsl).

# Usage

	b := dsl.New()
	counter := b.Slice("X").
		Field("v", schema.Int(), dsl.Default(0)).
		Reduce("inc", func(s *domain.Instance) (*domain.Instance, error) {
			v, _ := domain.Get[int](s, "v")
			return s.Set("v", v+1)
		}).
		Define()

	eng := rux.New(b.MustBuild())
	if err := eng.CreateStore(counter.MustNew(nil)); err != nil {
		log.Fatal(err)
	}

	v := domain.MustPathOf[int](counter, "v")
	unsubscribe, _ := rux.Subscribe1(eng, v, func(n int) error {
		fmt.Println("v =", n)
		return nil
	})
	defer unsubscribe()

	_ = eng.Dispatch(counter.MustReducer("inc"))
*/
package rux
