package domain

import (
	"errors"
	"fmt"
)

// Reducer is a pure function from a slice instance (and an optional payload)
// to a new instance of the same type. It is attached to its owning slice type
// by Catalog.Define.
type Reducer struct {
	owner        *SliceType
	name         string
	takesPayload bool
	apply        func(*Instance, any) (*Instance, error)
}

// NewReducer declares a reducer without payload.
func NewReducer(name string, fn func(*Instance) (*Instance, error)) *Reducer {
	r := &Reducer{name: name}
	if fn != nil {
		r.apply = func(inst *Instance, _ any) (*Instance, error) { return fn(inst) }
	}
	return r
}

// NewPayloadReducer declares a reducer taking one payload converted to P with As.
func NewPayloadReducer[P any](name string, fn func(*Instance, P) (*Instance, error)) *Reducer {
	r := &Reducer{name: name, takesPayload: true}
	if fn != nil {
		r.apply = func(inst *Instance, payload any) (*Instance, error) {
			p, err := As[P](payload)
			if err != nil {
				return nil, fmt.Errorf("payload: %w", err)
			}
			return fn(inst, p)
		}
	}
	return r
}

// Name returns the reducer name, unique within its owner.
func (r *Reducer) Name() string { return r.name }

// Owner returns the slice type that declared the reducer, or nil before Define.
func (r *Reducer) Owner() *SliceType { return r.owner }

// TakesPayload reports whether the reducer expects exactly one payload.
func (r *Reducer) TakesPayload() bool { return r.takesPayload }

func (r *Reducer) String() string {
	if r.owner == nil {
		return r.name
	}
	return r.owner.name + "." + r.name
}

// Apply runs the reducer. It may be called directly from another reducer;
// inst may be any instance whose type is the owner or one of its descendants.
func (r *Reducer) Apply(inst *Instance, payload ...any) (*Instance, error) {
	if err := checkTarget(r.owner, r.name, inst); err != nil {
		return nil, err
	}

	want := 0
	if r.takesPayload {
		want = 1
	}
	if len(payload) != want {
		return nil, fmt.Errorf("expects %d payload argument(s), got %d", want, len(payload))
	}

	var p any
	if want == 1 {
		p = payload[0]
	}
	out, err := r.apply(inst, p)
	if err != nil {
		return nil, err
	}
	if err := checkResult(inst, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtraReducer is a reaction: a reducer of its owning slice triggered when
// any of its dependency fields changes, possibly on another slice.
type ExtraReducer struct {
	owner      *SliceType
	name       string
	deps       []StatePath
	withValues bool
	apply      func(*Instance, []any) (*Instance, error)
}

// NewReaction declares a reaction that re-derives its slice without looking at
// the dependency values.
func NewReaction(name string, fn func(*Instance) (*Instance, error), deps ...StatePath) *ExtraReducer {
	r := &ExtraReducer{name: name, deps: deps}
	if fn != nil {
		r.apply = func(inst *Instance, _ []any) (*Instance, error) { return fn(inst) }
	}
	return r
}

// NewValuesReaction declares a reaction receiving the current value of every
// dependency, in declaration order.
func NewValuesReaction(name string, fn func(*Instance, []any) (*Instance, error), deps ...StatePath) *ExtraReducer {
	return &ExtraReducer{name: name, deps: deps, withValues: true, apply: fn}
}

// React1 declares a reaction on one typed dependency.
func React1[A any](name string, a Path[A], fn func(*Instance, A) (*Instance, error)) *ExtraReducer {
	if fn == nil {
		return NewValuesReaction(name, nil, a.StatePath)
	}
	return NewValuesReaction(name, func(inst *Instance, values []any) (*Instance, error) {
		va, err := As[A](values[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a, err)
		}
		return fn(inst, va)
	}, a.StatePath)
}

// React2 declares a reaction on two typed dependencies.
func React2[A, B any](name string, a Path[A], b Path[B], fn func(*Instance, A, B) (*Instance, error)) *ExtraReducer {
	if fn == nil {
		return NewValuesReaction(name, nil, a.StatePath, b.StatePath)
	}
	return NewValuesReaction(name, func(inst *Instance, values []any) (*Instance, error) {
		va, errA := As[A](values[0])
		vb, errB := As[B](values[1])
		if err := errors.Join(errA, errB); err != nil {
			return nil, err
		}
		return fn(inst, va, vb)
	}, a.StatePath, b.StatePath)
}

// React3 declares a reaction on three typed dependencies.
func React3[A, B, C any](name string, a Path[A], b Path[B], c Path[C], fn func(*Instance, A, B, C) (*Instance, error)) *ExtraReducer {
	if fn == nil {
		return NewValuesReaction(name, nil, a.StatePath, b.StatePath, c.StatePath)
	}
	return NewValuesReaction(name, func(inst *Instance, values []any) (*Instance, error) {
		va, errA := As[A](values[0])
		vb, errB := As[B](values[1])
		vc, errC := As[C](values[2])
		if err := errors.Join(errA, errB, errC); err != nil {
			return nil, err
		}
		return fn(inst, va, vb, vc)
	}, a.StatePath, b.StatePath, c.StatePath)
}

// Name returns the reaction name, unique within its owner.
func (r *ExtraReducer) Name() string { return r.name }

// Owner returns the declaring slice type, or nil before Define.
func (r *ExtraReducer) Owner() *SliceType { return r.owner }

// Deps returns the dependency paths in declaration order.
func (r *ExtraReducer) Deps() []StatePath {
	out := make([]StatePath, len(r.deps))
	copy(out, r.deps)
	return out
}

// WithValues reports whether the reaction consumes the dependency values.
func (r *ExtraReducer) WithValues() bool { return r.withValues }

func (r *ExtraReducer) String() string {
	if r.owner == nil {
		return r.name
	}
	return r.owner.name + "." + r.name
}

// Apply runs the reaction against inst with the current dependency values.
func (r *ExtraReducer) Apply(inst *Instance, values []any) (*Instance, error) {
	if err := checkTarget(r.owner, r.name, inst); err != nil {
		return nil, err
	}
	if r.withValues && len(values) != len(r.deps) {
		return nil, fmt.Errorf("expects %d dependency value(s), got %d", len(r.deps), len(values))
	}
	out, err := r.apply(inst, values)
	if err != nil {
		return nil, err
	}
	if err := checkResult(inst, out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkTarget(owner *SliceType, name string, inst *Instance) error {
	if owner == nil {
		return configErr(name, "not attached to a slice type")
	}
	if inst == nil {
		return fmt.Errorf("nil %s instance", owner.name)
	}
	if !inst.typ.IsA(owner.name) {
		return fmt.Errorf("instance of %s is not a %s", inst.typ.name, owner.name)
	}
	return nil
}

func checkResult(in, out *Instance) error {
	if out == nil {
		return errors.New("returned no instance")
	}
	if out.typ != in.typ {
		return fmt.Errorf("returned a %s instance, want %s", out.typ.name, in.typ.name)
	}
	return nil
}
