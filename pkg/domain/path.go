package domain

import (
	"fmt"
	"strings"
)

// StatePath addresses a field slot declared on a slice type.
// It is a plain comparable value: it does not reference an instance and is
// usable as a map key.
type StatePath struct {
	Slice string `json:"slice"`
	Field string `json:"field"`
}

// BuildPath creates a path from raw names without checking them against a catalog.
// Resolution happens when the path is used against a store.
func BuildPath(slice, field string) StatePath {
	return StatePath{Slice: slice, Field: field}
}

// ParsePath parses the "Slice.field" notation used by the CLI and HTTP adapters.
func ParsePath(s string) (StatePath, error) {
	slice, field, ok := strings.Cut(s, ".")
	if !ok || slice == "" || field == "" {
		return StatePath{}, fmt.Errorf("invalid path %q: expected Slice.field", s)
	}
	return StatePath{Slice: slice, Field: field}, nil
}

func (p StatePath) String() string {
	return p.Slice + "." + p.Field
}

// Path is a StatePath that also carries the Go type of the field value.
type Path[T any] struct {
	StatePath
}

// NewPath creates a typed path from raw names.
// It is meant for paths to a slice that is still being declared.
func NewPath[T any](slice, field string) Path[T] {
	return Path[T]{StatePath: BuildPath(slice, field)}
}

// PathOf resolves field on t into a typed path.
func PathOf[T any](t *SliceType, field string) (Path[T], error) {
	p, err := t.Path(field)
	if err != nil {
		return Path[T]{}, err
	}
	return Path[T]{StatePath: p}, nil
}

// MustPathOf is like PathOf but panics if field is not declared on t.
func MustPathOf[T any](t *SliceType, field string) Path[T] {
	p, err := PathOf[T](t, field)
	if err != nil {
		panic(err)
	}
	return p
}

// In reads the path's field from inst.
func (p Path[T]) In(inst *Instance) (T, error) {
	v, err := inst.Value(p.StatePath)
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](v)
}
