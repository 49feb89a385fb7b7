package domain

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/rux/pkg/schema"
)

// Instance is an immutable value of a slice type.
// Updates return a new instance; untouched field values are shared with the
// receiver, so values held in fields must be treated as read-only.
type Instance struct {
	typ    *SliceType
	values []any
}

// Assignment pairs a path with the value it receives in Update.
type Assignment struct {
	Path  StatePath
	Value any
}

// Assign is shorthand for an Assignment literal.
func Assign(path StatePath, value any) Assignment {
	return Assignment{Path: path, Value: value}
}

// Type returns the concrete slice type of the instance.
func (i *Instance) Type() *SliceType { return i.typ }

// SliceName returns the concrete slice type name.
func (i *Instance) SliceName() string { return i.typ.name }

// Get returns a field value by name.
func (i *Instance) Get(field string) (any, error) {
	idx, ok := i.typ.fieldIdx[field]
	if !ok {
		return nil, &NotFoundError{Kind: "field", Name: i.typ.name + "." + field}
	}
	return i.values[idx], nil
}

// Value reads the field addressed by path. The path may name the concrete type
// or any of its ancestors.
func (i *Instance) Value(path StatePath) (any, error) {
	if !i.typ.IsA(path.Slice) {
		return nil, &NotFoundError{Kind: "field", Name: path.String()}
	}
	return i.Get(path.Field)
}

// Set returns a copy with one field replaced.
func (i *Instance) Set(field string, value any) (*Instance, error) {
	return i.Update(Assign(StatePath{Slice: i.typ.name, Field: field}, value))
}

// Update returns a copy with the assigned fields replaced. Every value goes
// through the field type. The receiver is never modified, even on error.
func (i *Instance) Update(assignments ...Assignment) (*Instance, error) {
	next := &Instance{typ: i.typ, values: make([]any, len(i.values))}
	copy(next.values, i.values)

	for _, a := range assignments {
		if !i.typ.IsA(a.Path.Slice) {
			return nil, &NotFoundError{Kind: "field", Name: a.Path.String()}
		}
		idx, ok := i.typ.fieldIdx[a.Path.Field]
		if !ok {
			return nil, &NotFoundError{Kind: "field", Name: a.Path.String()}
		}
		v, err := schema.Coerce(i.typ.fields[idx].Type, a.Value)
		if err != nil {
			return nil, fmt.Errorf("slice %s: %w", i.typ.name,
				&schema.ValidationError{Key: a.Path.Field, Reason: err.Error(), Value: a.Value})
		}
		next.values[idx] = v
	}
	return next, nil
}

// Fields returns the field names in layout order.
func (i *Instance) Fields() []string {
	return i.typ.FieldNames()
}

// Map returns the field values keyed by name. The map is a fresh copy.
func (i *Instance) Map() map[string]any {
	out := make(map[string]any, len(i.values))
	for idx, f := range i.typ.fields {
		out[f.Name] = i.values[idx]
	}
	return out
}

// Equal reports whether other has the same concrete type and deeply equal values.
func (i *Instance) Equal(other *Instance) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.typ == other.typ && reflect.DeepEqual(i.values, other.values)
}

func (i *Instance) String() string {
	var sb strings.Builder
	sb.WriteString(i.typ.name)
	sb.WriteByte('{')
	for idx, f := range i.typ.fields {
		if idx > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", f.Name, i.values[idx])
	}
	sb.WriteByte('}')
	return sb.String()
}

// Get reads a field and converts it to T.
func Get[T any](inst *Instance, field string) (T, error) {
	v, err := inst.Get(field)
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](v)
}
