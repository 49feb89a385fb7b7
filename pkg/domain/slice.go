package domain

import (
	"fmt"
	"sort"

	"github.com/aretw0/rux/pkg/schema"
)

// SliceType is a named, ordered set of typed fields.
// It is created by Catalog.Define and immutable afterwards.
type SliceType struct {
	catalog *Catalog
	id      int
	name    string
	doc     string

	parents   []int
	ancestors []int

	own      []FieldDef
	fields   []FieldDef
	fieldIdx map[string]int

	reducers     map[string]*Reducer
	reducerOrder []string
	reactions    []*ExtraReducer
}

// Name returns the slice type name. It is also the store key of a root instance.
func (t *SliceType) Name() string { return t.name }

func (t *SliceType) String() string { return t.name }

// Doc returns the free-form documentation attached at definition.
func (t *SliceType) Doc() string { return t.doc }

// Catalog returns the catalog the type was defined in.
func (t *SliceType) Catalog() *Catalog { return t.catalog }

// Parents returns the direct parents in declaration order.
func (t *SliceType) Parents() []*SliceType {
	return t.lookupAll(t.parents)
}

// Ancestors returns every transitive parent, depth-first and left to right,
// each type once even under diamond inheritance.
func (t *SliceType) Ancestors() []*SliceType {
	return t.lookupAll(t.ancestors)
}

func (t *SliceType) lookupAll(ids []int) []*SliceType {
	out := make([]*SliceType, len(ids))
	for i, id := range ids {
		out[i] = t.catalog.types[id]
	}
	return out
}

// IsA reports whether name is t itself or one of its ancestors.
func (t *SliceType) IsA(name string) bool {
	if name == t.name {
		return true
	}
	for _, id := range t.ancestors {
		if t.catalog.types[id].name == name {
			return true
		}
	}
	return false
}

// Fields returns every field, inherited ones first.
func (t *SliceType) Fields() []FieldDef {
	out := make([]FieldDef, len(t.fields))
	copy(out, t.fields)
	return out
}

// FieldNames returns the field names in layout order.
func (t *SliceType) FieldNames() []string {
	out := make([]string, len(t.fields))
	for i, f := range t.fields {
		out[i] = f.Name
	}
	return out
}

// OwnFields returns the fields declared on t itself.
func (t *SliceType) OwnFields() []FieldDef {
	out := make([]FieldDef, len(t.own))
	copy(out, t.own)
	return out
}

// Field returns the definition of the named field.
func (t *SliceType) Field(name string) (FieldDef, bool) {
	i, ok := t.fieldIdx[name]
	if !ok {
		return FieldDef{}, false
	}
	return t.fields[i], true
}

// HasField reports whether the field is declared on t or inherited.
func (t *SliceType) HasField(name string) bool {
	_, ok := t.fieldIdx[name]
	return ok
}

// Path returns the handle of a declared or inherited field. The handle names
// the type that declares the field, so a field inherited from A yields the same
// path whether it is asked of A or of any subtype.
// Only fields are addressable; any other name yields a NotFoundError.
func (t *SliceType) Path(field string) (StatePath, error) {
	f, ok := t.Field(field)
	if !ok {
		return StatePath{}, &NotFoundError{Kind: "field", Name: t.name + "." + field}
	}
	return StatePath{Slice: f.owner, Field: field}, nil
}

// MustPath is like Path but panics on an unknown field.
// It is intended for package-level path declarations.
func (t *SliceType) MustPath(field string) StatePath {
	p, err := t.Path(field)
	if err != nil {
		panic(err)
	}
	return p
}

// Schema describes the fields for the validation layer.
func (t *SliceType) Schema() schema.Schema {
	s := make(schema.Schema, len(t.fields))
	for _, f := range t.fields {
		s[f.Name] = f.Type
	}
	return s
}

// Reducer finds a reducer declared on t or, failing that, on the nearest ancestor.
func (t *SliceType) Reducer(name string) (*Reducer, error) {
	if r, ok := t.reducers[name]; ok {
		return r, nil
	}
	for _, id := range t.ancestors {
		if r, ok := t.catalog.types[id].reducers[name]; ok {
			return r, nil
		}
	}
	return nil, &NotFoundError{Kind: "reducer", Name: t.name + "." + name}
}

// MustReducer is like Reducer but panics when name is unknown.
func (t *SliceType) MustReducer(name string) *Reducer {
	r, err := t.Reducer(name)
	if err != nil {
		panic(err)
	}
	return r
}

// Reducers returns the reducers declared on t in declaration order.
func (t *SliceType) Reducers() []*Reducer {
	out := make([]*Reducer, 0, len(t.reducerOrder))
	for _, name := range t.reducerOrder {
		out = append(out, t.reducers[name])
	}
	return out
}

// AllReducers returns every reducer reachable from t sorted by name.
// A reducer declared on t shadows an ancestor reducer of the same name.
func (t *SliceType) AllReducers() []*Reducer {
	seen := make(map[string]bool)
	var out []*Reducer
	collect := func(st *SliceType) {
		for _, r := range st.Reducers() {
			if !seen[r.name] {
				seen[r.name] = true
				out = append(out, r)
			}
		}
	}
	collect(t)
	for _, id := range t.ancestors {
		collect(t.catalog.types[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Reactions returns the reactions declared on t.
func (t *SliceType) Reactions() []*ExtraReducer {
	out := make([]*ExtraReducer, len(t.reactions))
	copy(out, t.reactions)
	return out
}

// New builds an instance from raw values. Missing fields take their default;
// a missing field without default, an unknown key or a non-conforming value fails.
func (t *SliceType) New(values map[string]any) (*Instance, error) {
	inst := &Instance{typ: t, values: make([]any, len(t.fields))}

	var errs []error
	for i, f := range t.fields {
		raw, ok := values[f.Name]
		if !ok {
			if !f.HasDefault {
				errs = append(errs, &schema.ValidationError{Key: f.Name, Reason: "required"})
				continue
			}
			inst.values[i] = f.Default
			continue
		}
		v, err := schema.Coerce(f.Type, raw)
		if err != nil {
			errs = append(errs, &schema.ValidationError{Key: f.Name, Reason: err.Error(), Value: raw})
			continue
		}
		inst.values[i] = v
	}

	unknown := make([]string, 0)
	for key := range values {
		if !t.HasField(key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		errs = append(errs, &schema.ValidationError{Key: key, Reason: "not a field of " + t.name})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("slice %s: %w", t.name, &schema.AggregateError{Errors: errs})
	}
	return inst, nil
}

// MustNew is like New but panics on error.
func (t *SliceType) MustNew(values map[string]any) *Instance {
	inst, err := t.New(values)
	if err != nil {
		panic(err)
	}
	return inst
}
