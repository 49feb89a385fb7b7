package manifest

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/dsl"
	"github.com/aretw0/rux/pkg/schema"
)

// Compiled is a manifest turned into slice types, ready for CreateStore.
type Compiled struct {
	Catalog *domain.Catalog
	// Roots are the store roots in creation order.
	Roots []*domain.SliceType
}

// Defaults builds one instance per root from field defaults.
func (c *Compiled) Defaults() ([]*domain.Instance, error) {
	out := make([]*domain.Instance, 0, len(c.Roots))
	var errs []error
	for _, root := range c.Roots {
		inst, err := root.New(nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, inst)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("default instances: %w", errors.Join(errs...))
	}
	return out, nil
}

// Compile declares every slice of the manifest in a fresh catalog.
// Slices are declared parents first; derive rules may reference any slice.
func (m *Manifest) Compile() (*Compiled, error) {
	order, err := m.declarationOrder()
	if err != nil {
		return nil, err
	}

	b := dsl.New()
	defined := make(map[string]*domain.SliceType, len(order))
	var errs []error
	for _, spec := range order {
		t, err := declare(b, spec, defined)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if t != nil {
			defined[spec.Name] = t
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to compile manifest: %w", errors.Join(errs...))
	}
	catalog, err := b.Build()
	if err != nil {
		return nil, err
	}

	roots, err := m.roots(catalog)
	if err != nil {
		return nil, err
	}
	return &Compiled{Catalog: catalog, Roots: roots}, nil
}

func declare(b *dsl.Builder, spec SliceSpec, defined map[string]*domain.SliceType) (*domain.SliceType, error) {
	s := b.Slice(spec.Name).Doc(spec.Doc)

	for _, name := range spec.Extends {
		parent, ok := defined[name]
		if !ok {
			return nil, &domain.ConfigurationError{
				Subject: "slice " + spec.Name,
				Reason:  "invalid parent",
				Err:     &domain.NotFoundError{Kind: "slice", Name: name},
			}
		}
		s.Extends(parent)
	}

	for _, f := range spec.Fields {
		typ, err := schema.ParseType(f.Type)
		if err != nil {
			return nil, &domain.ConfigurationError{Subject: "field " + spec.Name + "." + f.Name, Reason: "invalid type", Err: err}
		}
		var opts []dsl.FieldOption
		if f.HasDefault {
			opts = append(opts, dsl.Default(f.Default))
		}
		if f.Doc != "" {
			opts = append(opts, dsl.Describe(f.Doc))
		}
		s.Field(f.Name, typ, opts...)
	}

	for _, r := range spec.Reducers {
		reducer, err := reducerFromSpec(spec.Name, r)
		if err != nil {
			return nil, err
		}
		s.Reducer(reducer)
	}
	for _, d := range spec.Derive {
		reaction, err := deriveReaction(spec.Name, d)
		if err != nil {
			return nil, err
		}
		s.React(reaction)
	}

	// Define failures are collected by the builder.
	return s.Define(), nil
}

// declarationOrder sorts slices so each comes after its parents and after the
// slices its derive rules read. Document order breaks ties.
func (m *Manifest) declarationOrder() ([]SliceSpec, error) {
	index := make(map[string]int, len(m.Slices))
	for i, s := range m.Slices {
		if s.Name == "" {
			return nil, &domain.ConfigurationError{Subject: fmt.Sprintf("slices[%d]", i), Reason: "name is required"}
		}
		if _, dup := index[s.Name]; dup {
			return nil, &domain.ConfigurationError{Subject: "slice " + s.Name, Reason: "declared twice"}
		}
		index[s.Name] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(m.Slices))
	order := make([]SliceSpec, 0, len(m.Slices))

	var visit func(i int, chain []string) error
	visit = func(i int, chain []string) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return &domain.ConfigurationError{
				Subject: "slice " + m.Slices[i].Name,
				Reason:  fmt.Sprintf("dependency cycle: %v", append(chain, m.Slices[i].Name)),
			}
		}
		state[i] = visiting
		spec := m.Slices[i]
		for _, dep := range spec.requires() {
			j, ok := index[dep]
			if !ok || j == i {
				// Unknown names are reported by declare with a better message.
				continue
			}
			if err := visit(j, append(chain, spec.Name)); err != nil {
				return err
			}
		}
		state[i] = done
		order = append(order, spec)
		return nil
	}

	for i := range m.Slices {
		if err := visit(i, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s SliceSpec) requires() []string {
	out := slices.Clone(s.Extends)
	for _, d := range s.Derive {
		for _, raw := range d.From {
			if p, err := domain.ParsePath(raw); err == nil {
				out = append(out, p.Slice)
			}
		}
	}
	return out
}

func (m *Manifest) roots(catalog *domain.Catalog) ([]*domain.SliceType, error) {
	if len(m.Store) > 0 {
		out := make([]*domain.SliceType, 0, len(m.Store))
		for _, name := range m.Store {
			t, err := catalog.Lookup(name)
			if err != nil {
				return nil, &domain.ConfigurationError{Subject: "store", Reason: "unknown root", Err: err}
			}
			out = append(out, t)
		}
		return out, nil
	}

	extended := make(map[string]bool)
	for _, s := range m.Slices {
		for _, p := range s.Extends {
			extended[p] = true
		}
	}
	var out []*domain.SliceType
	for _, s := range m.Slices {
		if extended[s.Name] {
			continue
		}
		t, err := catalog.Lookup(s.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
