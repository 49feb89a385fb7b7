package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/rux/pkg/manifest"
)

// Loader adapts a Loam repository to ports.ManifestSource.
// Every document in the repository declares one slice.
type Loader struct {
	Repo *loam.TypedRepository[SliceMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[SliceMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// LoadManifest reads every document and assembles a manifest. Slices and
// roots are ordered by name.
func (l *Loader) LoadManifest(ctx context.Context) (*manifest.Manifest, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	m := &manifest.Manifest{}
	for _, doc := range docs {
		name := doc.Data.Name
		if name == "" {
			name = trimExtension(filepath.Base(doc.ID))
		}
		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: slice '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		seen[name] = doc.ID

		fields, err := manifest.ParseFields(doc.Data.Fields)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		m.Slices = append(m.Slices, manifest.SliceSpec{
			Name:     name,
			Extends:  doc.Data.Extends,
			Doc:      strings.TrimSpace(doc.Content),
			Fields:   fields,
			Derive:   doc.Data.Derive,
			Reducers: doc.Data.Reducers,
		})
		if doc.Data.Root {
			m.Store = append(m.Store, name)
		}
	}

	sort.Slice(m.Slices, func(i, j int) bool { return m.Slices[i].Name < m.Slices[j].Name })
	sort.Strings(m.Store)
	return m, nil
}

// ListSlices returns the slice names declared in the repository.
func (l *Loader) ListSlices(ctx context.Context) ([]string, error) {
	m, err := l.LoadManifest(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.Slices))
	for _, s := range m.Slices {
		names = append(names, s.Name)
	}
	return names, nil
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}

// Watch reports the IDs of documents that change until ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// Open initializes a read-only Loam repository at dir and wraps it in a Loader.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath, loam.WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[SliceMetadata](repo)), nil
}
