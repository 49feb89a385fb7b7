package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Type defines the contract for field validation.
type Type interface {
	// Name returns the type name used in manifests and schema dumps (e.g. "int", "[float]").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

// Coercer is implemented by types that normalise raw values into a canonical
// Go representation. Values decoded from JSON or YAML (float64 for every number,
// []any for every list, map[string]any for every object) are turned back into
// the representation the slice was created with, so equality survives a
// dump/load round trip.
type Coercer interface {
	Coerce(value any) (any, error)
}

// Coerce validates value against t and returns its canonical representation.
func Coerce(t Type, value any) (any, error) {
	if c, ok := t.(Coercer); ok {
		return c.Coerce(value)
	}
	if err := t.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}

// goTyped exposes the Go type a scalar coerces into; Slice uses it to build typed slices.
type goTyped interface {
	goType() reflect.Type
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (t stringType) Validate(value any) error {
	_, err := t.Coerce(value)
	return err
}

func (stringType) Coerce(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", value)
	}
	return s, nil
}

func (stringType) goType() reflect.Type { return reflect.TypeOf("") }

type intType struct{}

func (intType) Name() string { return "int" }

func (t intType) Validate(value any) error {
	_, err := t.Coerce(value)
	return err
}

func (intType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int8, int16, int32, int64, uint8, uint16, uint32:
		return int(reflect.ValueOf(v).Convert(reflect.TypeOf(0)).Int()), nil
	case float32:
		return wholeNumber(float64(v))
	case float64:
		return wholeNumber(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return nil, fmt.Errorf("expected int, got %q", v.String())
			}
			return wholeNumber(f)
		}
		return int(i), nil
	default:
		return nil, fmt.Errorf("expected int, got %T", value)
	}
}

func (intType) goType() reflect.Type { return reflect.TypeOf(0) }

func wholeNumber(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("expected int, got float (not a whole number)")
	}
	return int(f), nil
}

type floatType struct{}

func (floatType) Name() string { return "float" }

func (t floatType) Validate(value any) error {
	_, err := t.Coerce(value)
	return err
}

func (floatType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32, int, int8, int16, int32, int64, uint8, uint16, uint32:
		return reflect.ValueOf(v).Convert(reflect.TypeOf(0.0)).Float(), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("expected float, got %q", v.String())
		}
		return f, nil
	default:
		return nil, fmt.Errorf("expected float, got %T", value)
	}
}

func (floatType) goType() reflect.Type { return reflect.TypeOf(0.0) }

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (t boolType) Validate(value any) error {
	_, err := t.Coerce(value)
	return err
}

func (boolType) Coerce(value any) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("expected bool, got %T", value)
	}
	return b, nil
}

func (boolType) goType() reflect.Type { return reflect.TypeOf(false) }

// anyType accepts every value, including nil.
type anyType struct{}

func (anyType) Name() string { return "any" }

func (anyType) Validate(any) error { return nil }

// customType applies a user-defined validation function.
type customType struct {
	name     string
	validate func(any) error
}

func (t *customType) Name() string { return t.name }

func (t *customType) Validate(value any) error {
	return t.validate(value)
}

// String creates a string type.
func String() Type { return stringType{} }

// Int creates an integer type. Whole floats and json.Number values coerce to int.
func Int() Type { return intType{} }

// Float creates a float type. Every numeric kind coerces to float64.
func Float() Type { return floatType{} }

// Bool creates a boolean type.
func Bool() Type { return boolType{} }

// Any creates a type that accepts every value unchanged.
func Any() Type { return anyType{} }

// Custom creates a type validated by a user-defined function.
func Custom(name string, validate func(any) error) Type {
	return &customType{name: name, validate: validate}
}
