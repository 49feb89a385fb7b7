package dsl

import "github.com/aretw0/rux/pkg/domain"

// ReactionBuilder collects the dependencies of a reaction.
type ReactionBuilder struct {
	deps []domain.StatePath
}

// On starts a reaction triggered by any of the given paths.
func On(paths ...domain.StatePath) *ReactionBuilder {
	return &ReactionBuilder{deps: paths}
}

// Do finishes a reaction that only reads its own slice.
func (r *ReactionBuilder) Do(name string, fn func(*domain.Instance) (*domain.Instance, error)) *domain.ExtraReducer {
	return domain.NewReaction(name, fn, r.deps...)
}

// With finishes a reaction that receives the dependency values in order.
func (r *ReactionBuilder) With(name string, fn func(*domain.Instance, []any) (*domain.Instance, error)) *domain.ExtraReducer {
	return domain.NewValuesReaction(name, fn, r.deps...)
}
