package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the root document.
type Manifest struct {
	Slices []SliceSpec `json:"slices" yaml:"slices" mapstructure:"slices"`
	// Store lists the root slices in creation order. When empty every slice
	// that no other slice extends becomes a root.
	Store []string `json:"store,omitempty" yaml:"store,omitempty" mapstructure:"store"`
}

// SliceSpec declares one slice type.
type SliceSpec struct {
	Name     string        `json:"name" yaml:"name" mapstructure:"name"`
	Extends  []string      `json:"extends,omitempty" yaml:"extends,omitempty" mapstructure:"extends"`
	Doc      string        `json:"doc,omitempty" yaml:"doc,omitempty" mapstructure:"doc"`
	Fields   Fields        `json:"fields,omitempty" yaml:"fields,omitempty" mapstructure:"-"`
	Derive   []DeriveSpec  `json:"derive,omitempty" yaml:"derive,omitempty" mapstructure:"derive"`
	Reducers []ReducerSpec `json:"reducers,omitempty" yaml:"reducers,omitempty" mapstructure:"reducers"`
}

// DeriveSpec declares a reaction: whenever a path in From changes, Expr is
// evaluated and its result stored in the Set field of the declaring slice.
// Lang selects the expression language: expr (default), cel or js.
type DeriveSpec struct {
	Name string   `json:"name" yaml:"name" mapstructure:"name"`
	From []string `json:"from" yaml:"from" mapstructure:"from"`
	Set  string   `json:"set" yaml:"set" mapstructure:"set"`
	Expr string   `json:"expr" yaml:"expr" mapstructure:"expr"`
	Lang string   `json:"lang,omitempty" yaml:"lang,omitempty" mapstructure:"lang"`
}

// ReducerSpec declares a reducer storing the result of Expr in the Set field.
// A reducer with a Payload type takes one payload, bound as "payload".
type ReducerSpec struct {
	Name    string `json:"name" yaml:"name" mapstructure:"name"`
	Payload string `json:"payload,omitempty" yaml:"payload,omitempty" mapstructure:"payload"`
	Set     string `json:"set" yaml:"set" mapstructure:"set"`
	Expr    string `json:"expr" yaml:"expr" mapstructure:"expr"`
	Lang    string `json:"lang,omitempty" yaml:"lang,omitempty" mapstructure:"lang"`
}

// Load parses a YAML manifest. Unknown keys are rejected.
func Load(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return &m, nil
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// LoadFile reads and parses a YAML manifest from disk.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Load(data)
}

// Marshal renders the manifest back to YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// Slice returns the spec with the given name.
func (m *Manifest) Slice(name string) (SliceSpec, bool) {
	for _, s := range m.Slices {
		if s.Name == name {
			return s, true
		}
	}
	return SliceSpec{}, false
}

// File is a manifest source backed by a YAML file on disk.
type File string

// LoadManifest reads the file on every call.
func (f File) LoadManifest(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(string(f))
}
