package schema

import "sort"

// Schema maps field names to their types.
type Schema map[string]Type

// Keys returns the field names in lexical order.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that data carries every schema field with a conforming value.
// Keys absent from the schema are ignored; use ValidateStrict to reject them.
func Validate(schema Schema, data map[string]any) error {
	return ValidateFields(schema, data, schema.Keys()...)
}

// ValidateStrict is Validate plus a failure for every key the schema does not declare.
func ValidateStrict(schema Schema, data map[string]any) error {
	var errs []error
	if err := Validate(schema, data); err != nil {
		errs = append(errs, ValidationErrors(err)...)
	}

	extra := make([]string, 0)
	for key := range data {
		if _, ok := schema[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		errs = append(errs, &ValidationError{Key: key, Reason: "not defined in schema"})
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ValidateFields validates only specific fields from data against the schema.
// Missing fields are treated as an error.
func ValidateFields(schema Schema, data map[string]any, fields ...string) error {
	var errs []error

	for _, fieldName := range fields {
		fieldType, exists := schema[fieldName]
		if !exists {
			errs = append(errs, &ValidationError{Key: fieldName, Reason: "not defined in schema"})
			continue
		}

		value, fieldExists := data[fieldName]
		if !fieldExists {
			errs = append(errs, &ValidationError{Key: fieldName, Reason: "required"})
			continue
		}

		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
