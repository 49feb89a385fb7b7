package runtime

import (
	"github.com/aretw0/rux/pkg/domain"
)

// activate turns the catalog's dependency table into subscriptions for the
// current store. A reaction is activated when its declaring slice and every
// dependency resolve to a root; otherwise it stays inert. Activated reactions
// then run once, in declaration order.
func (e *Engine) activate() error {
	seen := make(map[*domain.ExtraReducer]bool)
	var active []*subscription

	for _, entry := range e.catalog.Dependencies() {
		r := entry.Reaction
		if seen[r] {
			continue
		}
		seen[r] = true

		declRoot, ok := e.tree[entry.Declaring.Name()]
		if !ok {
			e.logger.Debug("reaction inert", "reaction", r.String(), "reason", "declaring slice not in store")
			continue
		}

		deps := r.Deps()
		resolved := make([]domain.StatePath, 0, len(deps))
		for _, dep := range deps {
			key, err := e.resolve(dep)
			if err != nil {
				break
			}
			resolved = append(resolved, key)
		}
		if len(resolved) != len(deps) {
			e.logger.Debug("reaction inert", "reaction", r.String(), "reason", "dependency not in store")
			continue
		}

		s := e.subs.add(e.reactionCallback(r, declRoot), resolved, originActivation, r.String())
		active = append(active, s)
	}

	for _, s := range active {
		values := make([]any, len(s.paths))
		for i, p := range s.paths {
			v, err := e.committed(p)
			if err != nil {
				return err
			}
			values[i] = v
		}
		if err := s.callback(values); err != nil {
			return err
		}
	}
	return nil
}

// reactionCallback dispatches r against declRoot with the delivered values.
func (e *Engine) reactionCallback(r *domain.ExtraReducer, declRoot string) domain.Callback {
	return func(values []any) error {
		return e.dispatch(declRoot, r.String(), func(inst *domain.Instance) (*domain.Instance, error) {
			next, err := r.Apply(inst, values)
			if err != nil {
				return nil, &domain.ReducerError{Slice: r.Owner().Name(), Reducer: r.Name(), Err: err}
			}
			return next, nil
		})
	}
}
