package runtime

import (
	"errors"
	"time"

	"github.com/aretw0/rux/pkg/domain"
)

// maxDrain bounds the deferred dispatches one dispatch may run after its commit.
const maxDrain = 1000

type applyFunc func(*domain.Instance) (*domain.Instance, error)

type pendingDispatch struct {
	action string
	apply  applyFunc
}

// Dispatch runs a reducer against the root that owns its slice type and
// notifies subscribers of every changed field. On failure subscribers are
// re-notified with the old values and the store is left untouched.
// While the root is mid-commit the dispatch is queued and Dispatch returns nil;
// see dispatch.
func (e *Engine) Dispatch(r *domain.Reducer, payload ...any) error {
	if e.store == nil {
		return domain.ErrStoreNotCreated
	}
	if r == nil {
		return &domain.ConfigurationError{Subject: "dispatch", Reason: "nil reducer"}
	}
	owner := r.Owner()
	if owner == nil {
		return &domain.ConfigurationError{Subject: "reducer " + r.Name(), Reason: "not attached to a slice type"}
	}
	root, err := e.rootOf(owner.Name())
	if err != nil {
		return err
	}

	return e.dispatch(root, r.String(), func(inst *domain.Instance) (*domain.Instance, error) {
		next, err := r.Apply(inst, payload...)
		if err != nil {
			return nil, &domain.ReducerError{Slice: owner.Name(), Reducer: r.Name(), Err: err}
		}
		return next, nil
	})
}

// DispatchState replaces one field. Unknown paths fail before anything is
// notified; a value rejected by the field type follows the rollback path.
func (e *Engine) DispatchState(path domain.StatePath, value any) error {
	key, err := e.resolve(path)
	if err != nil {
		return err
	}
	return e.dispatch(key.Slice, "set "+path.String(), func(inst *domain.Instance) (*domain.Instance, error) {
		return inst.Update(domain.Assign(path, value))
	})
}

// ForceNotify delivers the committed value of every path to its subscribers as
// if it had changed. Nothing is committed. Every path is notified even when a
// callback fails; the failures are joined.
func (e *Engine) ForceNotify(paths ...domain.StatePath) error {
	if e.store == nil {
		return domain.ErrStoreNotCreated
	}
	keys := make([]domain.StatePath, 0, len(paths))
	for _, p := range paths {
		key, err := e.resolve(p)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	var errs []error
	for _, key := range keys {
		value, err := e.committed(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, e.notify(key, value, true, true))
	}
	return errors.Join(errs...)
}

// dispatch applies fn to root now, or queues it when root is mid-commit.
// Queued work runs right after the commit that blocked it, in FIFO order,
// and its errors are returned by the dispatch that drained it.
func (e *Engine) dispatch(root, action string, fn applyFunc) error {
	if e.committing[root] > 0 {
		e.pending[root] = append(e.pending[root], pendingDispatch{action: action, apply: fn})
		e.logger.Debug("dispatch deferred", "slice", root, "action", action)
		return nil
	}
	err := e.run(root, action, fn)
	return errors.Join(err, e.drain(root))
}

func (e *Engine) drain(root string) error {
	var errs []error
	for n := 0; e.store != nil && e.committing[root] == 0 && len(e.pending[root]) > 0; n++ {
		next := e.pending[root][0]
		if n == maxDrain {
			dropped := len(e.pending[root])
			e.pending[root] = nil
			e.logger.Warn("deferred dispatches dropped", "slice", root, "action", next.action, "dropped", dropped)
			errs = append(errs, &domain.ReducerError{Slice: root, Reducer: next.action, Err: domain.ErrDispatchLoop})
			break
		}
		e.pending[root] = e.pending[root][1:]
		errs = append(errs, e.run(root, next.action, next.apply))
	}
	return errors.Join(errs...)
}

func (e *Engine) run(root, action string, fn applyFunc) error {
	start := time.Now()
	prev := e.store[root]
	queued := len(e.pending[root])

	next, err := fn(prev)
	var changed []string
	if err == nil {
		changed, err = e.commit(root, prev, next, false)
	}
	if err == nil {
		e.logger.Debug("dispatch committed", "slice", root, "action", action, "changed", changed)
		if e.hooks.OnDispatch != nil {
			e.hooks.OnDispatch(&domain.DispatchEvent{
				EventBase: domain.NewEventBase(domain.EventDispatch),
				Slice:     root,
				Action:    action,
				Changed:   changed,
				Duration:  time.Since(start),
			})
		}
		return nil
	}

	// Work queued by the failed commit derived from values that were never
	// committed. Work queued by the rollback notification only re-reacts to
	// values already in the store, and is dropped too.
	e.pending[root] = e.pending[root][:queued]
	if _, rbErr := e.commit(root, prev, prev, true); rbErr != nil {
		e.logger.Warn("rollback notification failed", "slice", root, "action", action, "err", rbErr)
	}
	if e.pending != nil && len(e.pending[root]) > queued {
		e.logger.Debug("deferred dispatches dropped after rollback", "slice", root, "dropped", len(e.pending[root])-queued)
		e.pending[root] = e.pending[root][:queued]
	}
	e.logger.Warn("dispatch rolled back", "slice", root, "action", action, "err", err)
	if e.hooks.OnRollback != nil {
		e.hooks.OnRollback(&domain.DispatchEvent{
			EventBase: domain.NewEventBase(domain.EventRollback),
			Slice:     root,
			Action:    action,
			Duration:  time.Since(start),
			Err:       err,
		})
	}
	return err
}

// commit notifies the subscribers of every changed field of next (every field
// when force is set) and then stores next. A callback error stops the walk and
// leaves the store untouched, except on forced commits which notify every
// subscriber and join the errors.
func (e *Engine) commit(root string, prev, next *domain.Instance, force bool) ([]string, error) {
	e.committing[root]++
	defer func() { e.committing[root]-- }()

	changed := domain.ChangedFields(prev, next)
	fields := changed
	if force {
		fields = next.Fields()
	}

	var errs []error
	for _, field := range fields {
		value, err := next.Get(field)
		if err != nil {
			return changed, err
		}
		if err := e.notify(domain.StatePath{Slice: root, Field: field}, value, force, force); err != nil {
			if !force {
				return changed, err
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return changed, errors.Join(errs...)
	}
	e.store[root] = next
	return changed, nil
}

// notify calls every subscriber of key. The triggering path receives value;
// every other path is read from the committed store.
func (e *Engine) notify(key domain.StatePath, value any, forced, keepGoing bool) error {
	subs := e.subs.snapshot(key)
	if len(subs) == 0 {
		return nil
	}

	var errs []error
	delivered := 0
	for _, s := range subs {
		if !s.active {
			continue
		}
		values := make([]any, len(s.paths))
		for i, p := range s.paths {
			if p == key {
				values[i] = value
				continue
			}
			v, err := e.committed(p)
			if err != nil {
				return err
			}
			values[i] = v
		}
		delivered++
		if err := s.callback(values); err != nil {
			e.logger.Debug("subscriber failed", "path", key.String(), "subscriber", s.label, "err", err)
			if !keepGoing {
				return err
			}
			errs = append(errs, err)
		}
		if e.store == nil {
			break
		}
	}

	if e.hooks.OnNotify != nil {
		e.hooks.OnNotify(&domain.NotifyEvent{
			EventBase:   domain.NewEventBase(domain.EventNotify),
			Slice:       key.Slice,
			Field:       key.Field,
			Subscribers: delivered,
			Forced:      forced,
		})
	}
	return errors.Join(errs...)
}
