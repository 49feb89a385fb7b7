package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// listType validates lists whose elements all conform to elem.
type listType struct {
	elem Type
}

// Slice creates a list type for elements of the given type.
// Lists of scalars coerce to typed Go slices ([]int, []string, ...);
// everything else coerces to []any.
func Slice(elem Type) Type {
	return &listType{elem: elem}
}

func (t *listType) Name() string {
	return fmt.Sprintf("[%s]", t.elem.Name())
}

func (t *listType) Validate(value any) error {
	_, err := t.Coerce(value)
	return err
}

func (t *listType) Coerce(value any) (any, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("expected slice, got %T", value)
	}

	out := reflect.MakeSlice(t.sliceType(), rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, err := Coerce(t.elem, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if elem == nil {
			continue
		}
		out.Index(i).Set(reflect.ValueOf(elem))
	}
	return out.Interface(), nil
}

func (t *listType) goType() reflect.Type { return t.sliceType() }

func (t *listType) sliceType() reflect.Type {
	if typed, ok := t.elem.(goTyped); ok {
		return reflect.SliceOf(typed.goType())
	}
	return reflect.TypeOf([]any{})
}

// structType decodes maps into T and accepts T or *T values.
type structType[T any] struct {
	name string
}

// Struct creates a type backed by the Go struct T. Raw maps (as produced by
// JSON or YAML decoding) are decoded into T using its json tags.
func Struct[T any]() Type {
	var zero T
	name := reflect.TypeOf(zero).Name()
	if name == "" {
		name = "struct"
	}
	return &structType[T]{name: strings.ToLower(name)}
}

func (t *structType[T]) Name() string { return t.name }

func (t *structType[T]) Validate(value any) error {
	_, err := t.Coerce(value)
	return err
}

func (t *structType[T]) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case T:
		return v, nil
	case *T:
		if v == nil {
			return nil, fmt.Errorf("expected %s, got nil", t.name)
		}
		return *v, nil
	case map[string]any:
		var out T
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &out,
			TagName:          "json",
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(v); err != nil {
			return nil, fmt.Errorf("expected %s: %w", t.name, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected %s, got %T", t.name, value)
	}
}

func (t *structType[T]) goType() reflect.Type {
	var zero T
	return reflect.TypeOf(zero)
}
