package domain

import "reflect"

// ChangedFields returns, in layout order, the fields of next whose value differs
// from prev by deep equality. A nil prev reports every field.
func ChangedFields(prev, next *Instance) []string {
	if next == nil {
		return nil
	}
	var out []string
	for idx, f := range next.typ.fields {
		if prev == nil || prev.typ != next.typ {
			out = append(out, f.Name)
			continue
		}
		if !reflect.DeepEqual(prev.values[idx], next.values[idx]) {
			out = append(out, f.Name)
		}
	}
	return out
}
