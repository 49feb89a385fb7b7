package domain

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// As converts a stored or decoded value into T.
// Values already of type T are returned as is. Numbers convert across kinds and
// maps or lists decode into structs and typed slices, which covers values that
// went through JSON.
func As[T any](v any) (T, error) {
	var out T
	if t, ok := v.(T); ok {
		return t, nil
	}

	target := reflect.TypeOf(&out).Elem()
	if v == nil {
		switch target.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
			return out, nil
		}
		return out, fmt.Errorf("cannot use nil as %s", target)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "json",
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(v); err != nil {
		return out, fmt.Errorf("cannot use %T as %s: %w", v, target, err)
	}
	return out, nil
}
