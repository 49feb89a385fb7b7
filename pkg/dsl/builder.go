package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/schema"
)

// Builder declares slice types into a catalog.
// Errors are collected and reported by Build, so declarations can be chained.
type Builder struct {
	catalog *domain.Catalog
	errs    []error
}

// New creates a builder over an empty catalog.
func New() *Builder {
	return &Builder{catalog: domain.NewCatalog()}
}

// Extend creates a builder that adds declarations to an existing catalog.
func Extend(catalog *domain.Catalog) *Builder {
	return &Builder{catalog: catalog}
}

// Slice starts the declaration of a slice type.
func (b *Builder) Slice(name string) *SliceBuilder {
	return &SliceBuilder{builder: b, def: domain.SliceDef{Name: name}}
}

// Catalog returns the catalog being built, including partially failed builds.
func (b *Builder) Catalog() *domain.Catalog {
	return b.catalog
}

// Build returns the catalog, or every declaration error joined.
func (b *Builder) Build() (*domain.Catalog, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("failed to build catalog: %w", errors.Join(b.errs...))
	}
	return b.catalog, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *domain.Catalog {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

// SliceBuilder accumulates one slice definition.
type SliceBuilder struct {
	builder *Builder
	def     domain.SliceDef
}

// Extends sets the parent slice types, in priority order.
func (s *SliceBuilder) Extends(parents ...*domain.SliceType) *SliceBuilder {
	s.def.Parents = append(s.def.Parents, parents...)
	return s
}

// Doc attaches documentation to the slice.
func (s *SliceBuilder) Doc(text string) *SliceBuilder {
	s.def.Doc = text
	return s
}

// FieldOption customises a field declaration.
type FieldOption func(*domain.FieldDef)

// Default sets the value used when an instance is built without the field.
func Default(v any) FieldOption {
	return func(f *domain.FieldDef) {
		f.Default = v
		f.HasDefault = true
	}
}

// Describe attaches documentation to the field.
func Describe(doc string) FieldOption {
	return func(f *domain.FieldDef) {
		f.Doc = doc
	}
}

// Field declares a typed field.
func (s *SliceBuilder) Field(name string, typ schema.Type, opts ...FieldOption) *SliceBuilder {
	f := domain.FieldDef{Name: name, Type: typ}
	for _, opt := range opts {
		opt(&f)
	}
	s.def.Fields = append(s.def.Fields, f)
	return s
}

// Reduce declares a reducer without payload.
func (s *SliceBuilder) Reduce(name string, fn func(*domain.Instance) (*domain.Instance, error)) *SliceBuilder {
	return s.Reducer(domain.NewReducer(name, fn))
}

// Reducer attaches a prepared reducer, typically built with Payload.
func (s *SliceBuilder) Reducer(r *domain.Reducer) *SliceBuilder {
	s.def.Reducers = append(s.def.Reducers, r)
	return s
}

// React attaches a reaction, typically built with On or domain.React1..3.
func (s *SliceBuilder) React(r *domain.ExtraReducer) *SliceBuilder {
	s.def.Reactions = append(s.def.Reactions, r)
	return s
}

// Path returns the path of a field of the slice being declared, for reactions
// that depend on their own slice. An inherited field is addressed through the
// parent that declares it.
func (s *SliceBuilder) Path(field string) domain.StatePath {
	for _, f := range s.def.Fields {
		if f.Name == field {
			return domain.BuildPath(s.def.Name, field)
		}
	}
	for _, parent := range s.def.Parents {
		if parent == nil {
			continue
		}
		if p, err := parent.Path(field); err == nil {
			return p
		}
	}
	return domain.BuildPath(s.def.Name, field)
}

// Define registers the slice. On error it returns nil and the error is
// reported by Build.
func (s *SliceBuilder) Define() *domain.SliceType {
	t, err := s.builder.catalog.Define(s.def)
	if err != nil {
		s.builder.errs = append(s.builder.errs, err)
		return nil
	}
	return t
}

// Payload declares a reducer taking one payload of type P.
func Payload[P any](name string, fn func(*domain.Instance, P) (*domain.Instance, error)) *domain.Reducer {
	return domain.NewPayloadReducer(name, fn)
}
