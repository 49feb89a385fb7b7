package rux

import (
	"github.com/aretw0/rux/pkg/domain"
)

// Get reads the value at p and converts it to T.
func Get[T any](e *Engine, p domain.Path[T]) (T, error) {
	var zero T
	v, err := e.GetState(p.StatePath)
	if err != nil {
		return zero, err
	}
	return domain.As[T](v)
}

// Set replaces the value at p.
func Set[T any](e *Engine, p domain.Path[T], value T) error {
	return e.DispatchState(p.StatePath, value)
}

// Subscribe1 subscribes fn to a single typed path.
func Subscribe1[A any](e *Engine, a domain.Path[A], fn func(A) error) (domain.Unsubscribe, error) {
	return e.Subscribe(func(values []any) error {
		va, err := domain.As[A](values[0])
		if err != nil {
			return err
		}
		return fn(va)
	}, a.StatePath)
}

// Subscribe2 subscribes fn to two typed paths.
func Subscribe2[A, B any](e *Engine, a domain.Path[A], b domain.Path[B], fn func(A, B) error) (domain.Unsubscribe, error) {
	return e.Subscribe(func(values []any) error {
		va, err := domain.As[A](values[0])
		if err != nil {
			return err
		}
		vb, err := domain.As[B](values[1])
		if err != nil {
			return err
		}
		return fn(va, vb)
	}, a.StatePath, b.StatePath)
}

// Subscribe3 subscribes fn to three typed paths.
func Subscribe3[A, B, C any](e *Engine, a domain.Path[A], b domain.Path[B], c domain.Path[C], fn func(A, B, C) error) (domain.Unsubscribe, error) {
	return e.Subscribe(func(values []any) error {
		va, err := domain.As[A](values[0])
		if err != nil {
			return err
		}
		vb, err := domain.As[B](values[1])
		if err != nil {
			return err
		}
		vc, err := domain.As[C](values[2])
		if err != nil {
			return err
		}
		return fn(va, vb, vc)
	}, a.StatePath, b.StatePath, c.StatePath)
}
