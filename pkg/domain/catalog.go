package domain

import (
	"github.com/aretw0/rux/pkg/schema"
)

// FieldDef declares one typed field of a slice.
type FieldDef struct {
	Name       string      `json:"name"`
	Type       schema.Type `json:"-"`
	Default    any         `json:"default,omitempty"`
	HasDefault bool        `json:"-"`
	Doc        string      `json:"doc,omitempty"`

	owner string
}

// Owner names the slice type that declares the field. Inherited fields keep
// the name of the ancestor they come from.
func (f FieldDef) Owner() string { return f.owner }

// SliceDef is the input to Catalog.Define.
type SliceDef struct {
	Name      string
	Parents   []*SliceType
	Fields    []FieldDef
	Reducers  []*Reducer
	Reactions []*ExtraReducer
	Doc       string
}

// DependencyEntry links a reaction to one of the fields it depends on.
// A reaction with N dependencies produces N entries.
type DependencyEntry struct {
	Declaring *SliceType
	Notifier  StatePath
	Reaction  *ExtraReducer
}

// Catalog is the declaration context for slice types.
// Types are stored in an arena and reference their parents by index.
// A Catalog is not safe for concurrent Define calls.
type Catalog struct {
	types  []*SliceType
	byName map[string]int
	deps   []DependencyEntry
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]int)}
}

// Lookup returns the slice type registered under name.
func (c *Catalog) Lookup(name string) (*SliceType, error) {
	id, ok := c.byName[name]
	if !ok {
		return nil, &NotFoundError{Kind: "slice", Name: name}
	}
	return c.types[id], nil
}

// Types returns every slice type in definition order.
func (c *Catalog) Types() []*SliceType {
	out := make([]*SliceType, len(c.types))
	copy(out, c.types)
	return out
}

// Dependencies returns the dependency table in declaration order.
func (c *Catalog) Dependencies() []DependencyEntry {
	out := make([]DependencyEntry, len(c.deps))
	copy(out, c.deps)
	return out
}

// Define validates def and adds it to the catalog.
// Nothing is registered when an error is returned.
func (c *Catalog) Define(def SliceDef) (*SliceType, error) {
	if def.Name == "" {
		return nil, configErr("slice", "name is required")
	}
	if _, exists := c.byName[def.Name]; exists {
		return nil, configErr("slice "+def.Name, "already defined")
	}

	t := &SliceType{
		catalog:   c,
		id:        len(c.types),
		name:      def.Name,
		doc:       def.Doc,
		fieldIdx:  make(map[string]int),
		reducers:  make(map[string]*Reducer),
		reactions: make([]*ExtraReducer, 0, len(def.Reactions)),
	}

	if err := t.linkParents(def.Parents); err != nil {
		return nil, err
	}
	if err := t.resolveFields(def.Fields); err != nil {
		return nil, err
	}
	if err := t.checkReducers(def.Reducers); err != nil {
		return nil, err
	}
	entries, err := c.checkReactions(t, def.Reactions)
	if err != nil {
		return nil, err
	}

	for _, r := range def.Reducers {
		r.owner = t
		t.reducers[r.name] = r
		t.reducerOrder = append(t.reducerOrder, r.name)
	}
	for _, r := range def.Reactions {
		r.owner = t
		t.reactions = append(t.reactions, r)
	}

	c.types = append(c.types, t)
	c.byName[t.name] = t.id
	c.deps = append(c.deps, entries...)
	return t, nil
}

func (t *SliceType) linkParents(parents []*SliceType) error {
	seen := make(map[int]bool, len(parents))
	for _, p := range parents {
		if p == nil {
			return configErr("slice "+t.name, "nil parent")
		}
		if p.catalog != t.catalog {
			return configErr("slice "+t.name, "parent %s belongs to another catalog", p.name)
		}
		if seen[p.id] {
			return configErr("slice "+t.name, "parent %s listed twice", p.name)
		}
		seen[p.id] = true
		t.parents = append(t.parents, p.id)
	}

	// Depth-first, left to right, each ancestor once.
	visited := make(map[int]bool)
	var walk func(ids []int)
	walk = func(ids []int) {
		for _, id := range ids {
			if visited[id] {
				continue
			}
			visited[id] = true
			t.ancestors = append(t.ancestors, id)
			walk(t.catalog.types[id].parents)
		}
	}
	walk(t.parents)
	return nil
}

// resolveFields lays out inherited fields first, in parent order, then own fields.
// A field reached through several parents appears once. Redeclaring an inherited
// field keeps its position and replaces its type, default and owner.
func (t *SliceType) resolveFields(own []FieldDef) error {
	for _, id := range t.parents {
		for _, f := range t.catalog.types[id].fields {
			if _, ok := t.fieldIdx[f.Name]; ok {
				continue
			}
			t.fieldIdx[f.Name] = len(t.fields)
			t.fields = append(t.fields, f)
		}
	}

	declared := make(map[string]bool, len(own))
	for _, f := range own {
		if f.Name == "" {
			return configErr("slice "+t.name, "field name is required")
		}
		if declared[f.Name] {
			return configErr("slice "+t.name, "field %s declared twice", f.Name)
		}
		declared[f.Name] = true

		if f.Type == nil {
			f.Type = schema.Any()
		}
		f.owner = t.name
		if f.HasDefault {
			v, err := schema.Coerce(f.Type, f.Default)
			if err != nil {
				return &ConfigurationError{Subject: "field " + t.name + "." + f.Name, Reason: "invalid default", Err: err}
			}
			f.Default = v
		}

		t.own = append(t.own, f)
		if i, ok := t.fieldIdx[f.Name]; ok {
			t.fields[i] = f
			continue
		}
		t.fieldIdx[f.Name] = len(t.fields)
		t.fields = append(t.fields, f)
	}
	return nil
}

func (t *SliceType) checkReducers(reducers []*Reducer) error {
	seen := make(map[string]bool, len(reducers))
	for _, r := range reducers {
		if r == nil || r.apply == nil {
			return configErr("slice "+t.name, "reducer without a function")
		}
		if r.name == "" {
			return configErr("slice "+t.name, "reducer name is required")
		}
		if r.owner != nil {
			return configErr("reducer "+r.name, "already declared on %s", r.owner.name)
		}
		if seen[r.name] {
			return configErr("slice "+t.name, "reducer %s declared twice", r.name)
		}
		if _, isField := t.fieldIdx[r.name]; isField {
			return configErr("slice "+t.name, "reducer %s shadows a field", r.name)
		}
		seen[r.name] = true
	}
	return nil
}

func (c *Catalog) checkReactions(t *SliceType, reactions []*ExtraReducer) ([]DependencyEntry, error) {
	var entries []DependencyEntry
	seen := make(map[string]bool, len(reactions))
	for _, r := range reactions {
		if r == nil {
			return nil, configErr("slice "+t.name, "nil reaction")
		}
		subject := "reaction " + t.name + "." + r.name
		if r.name == "" {
			return nil, configErr("slice "+t.name, "reaction name is required")
		}
		if r.owner != nil {
			return nil, configErr(subject, "already declared on %s", r.owner.name)
		}
		if seen[r.name] {
			return nil, configErr(subject, "declared twice")
		}
		seen[r.name] = true
		if r.apply == nil {
			return nil, configErr(subject, "function is required")
		}
		if len(r.deps) == 0 {
			return nil, configErr(subject, "at least one dependency is required")
		}

		for _, dep := range r.deps {
			notifier := t
			if dep.Slice != t.name {
				var err error
				if notifier, err = c.Lookup(dep.Slice); err != nil {
					return nil, &ConfigurationError{Subject: subject, Reason: "unknown dependency", Err: err}
				}
			}
			if !notifier.HasField(dep.Field) {
				return nil, &ConfigurationError{
					Subject: subject,
					Reason:  "unknown dependency",
					Err:     &NotFoundError{Kind: "field", Name: dep.String()},
				}
			}
			entries = append(entries, DependencyEntry{Declaring: t, Notifier: dep, Reaction: r})
		}
	}
	return entries, nil
}
