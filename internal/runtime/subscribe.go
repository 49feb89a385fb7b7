package runtime

import (
	"fmt"

	"github.com/aretw0/rux/pkg/domain"
)

// Subscribe registers cb for every path. cb is called once immediately with
// the current values and then whenever any of the paths changes. If the first
// call fails, or clears the store, nothing is registered.
func (e *Engine) Subscribe(cb domain.Callback, paths ...domain.StatePath) (domain.Unsubscribe, error) {
	if e.store == nil {
		return nil, domain.ErrStoreNotCreated
	}
	if cb == nil {
		return nil, &domain.ConfigurationError{Subject: "subscribe", Reason: "nil callback"}
	}
	if len(paths) == 0 {
		return nil, &domain.ConfigurationError{Subject: "subscribe", Reason: "at least one path is required"}
	}

	keys := make([]domain.StatePath, len(paths))
	values := make([]any, len(paths))
	for i, p := range paths {
		key, err := e.resolve(p)
		if err != nil {
			return nil, err
		}
		if values[i], err = e.committed(key); err != nil {
			return nil, err
		}
		keys[i] = key
	}

	generation := e.generation
	if err := cb(values); err != nil {
		return nil, fmt.Errorf("initial delivery: %w", err)
	}
	if e.store == nil || e.generation != generation {
		return nil, fmt.Errorf("%w: store replaced during initial delivery", domain.ErrLifecycle)
	}

	s := e.subs.add(cb, keys, originUser, fmt.Sprintf("subscriber#%d", e.subs.nextID+1))
	return func() { e.subs.remove(s) }, nil
}

// Subscribers returns how many subscriptions currently watch path.
func (e *Engine) Subscribers(path domain.StatePath) (int, error) {
	key, err := e.resolve(path)
	if err != nil {
		return 0, err
	}
	return e.subs.count(key), nil
}

// Subscriptions returns the number of live subscriptions, reactions included.
func (e *Engine) Subscriptions() int {
	return e.subs.size()
}
