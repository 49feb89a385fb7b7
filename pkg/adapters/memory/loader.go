package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/rux/pkg/manifest"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.ManifestSource over raw YAML slice documents held in memory.
type Loader struct {
	slices map[string][]byte
	store  []string
}

// NewLoader creates a loader from YAML documents keyed by slice name.
// Each document is a single slice declaration without its name.
func NewLoader(data map[string]string, store ...string) *Loader {
	slices := make(map[string][]byte, len(data))
	for k, v := range data {
		slices[k] = []byte(v)
	}
	return &Loader{slices: slices, store: store}
}

// NewFromSlices creates a loader from already parsed declarations.
// This handles serialization automatically, which keeps tests short.
func NewFromSlices(specs ...manifest.SliceSpec) (*Loader, error) {
	data := make(map[string][]byte, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("slice missing name")
		}
		raw, err := yaml.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal slice %s: %w", s.Name, err)
		}
		data[s.Name] = raw
	}
	return &Loader{slices: data}, nil
}

// ListSlices returns every slice name, sorted.
func (l *Loader) ListSlices() []string {
	keys := make([]string, 0, len(l.slices))
	for k := range l.slices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadManifest decodes every document into a manifest. Slices are listed by name.
func (l *Loader) LoadManifest(ctx context.Context) (*manifest.Manifest, error) {
	m := &manifest.Manifest{Store: l.store}
	for _, name := range l.ListSlices() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var spec manifest.SliceSpec
		if err := yaml.Unmarshal(l.slices[name], &spec); err != nil {
			return nil, fmt.Errorf("failed to parse slice %s: %w", name, err)
		}
		if spec.Name == "" {
			spec.Name = name
		}
		if spec.Name != name {
			return nil, fmt.Errorf("slice %s declares name %q", name, spec.Name)
		}
		m.Slices = append(m.Slices, spec)
	}
	return m, nil
}
