// Package schema is the validation boundary for slice fields.
//
// Every slice field carries a Type. Types validate raw values and, when they
// implement Coercer, normalise them into a canonical Go representation:
//
//	schema.Int().Validate(3.0)           // ok, whole float
//	v, _ := schema.Coerce(schema.Int(), 3.0) // v == 3 (int)
//
// Types can be parsed from names, which is how manifests declare fields:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "exposure":  "float",
//	    "bit_depth": "int",
//	    "tags":      "[string]",
//	})
//
// Struct[T] backs a field with a Go struct; maps decoded from JSON or YAML are
// turned back into T through mapstructure.
package schema
