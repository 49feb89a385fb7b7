package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/ports"
)

// Mask replaces redacted field values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks fields whose "Slice.field"
// path matches one of the patterns. Nested maps are masked by key.
//
// Masked snapshots are meant for export; a masked non-string field no longer
// passes LoadStore validation.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, id string, snapshot *domain.Snapshot) error {
	masked := &domain.Snapshot{
		ID:      snapshot.ID,
		SavedAt: snapshot.SavedAt,
		Slices:  make(map[string]map[string]any, len(snapshot.Slices)),
	}
	for slice, fields := range snapshot.Slices {
		out := deepCopyMap(fields)
		for field := range out {
			if m.matches(domain.BuildPath(slice, field).String()) {
				out[field] = Mask
			}
		}
		for _, v := range out {
			if sub, ok := v.(map[string]any); ok {
				maskMap(sub, m.patterns)
			}
		}
		masked.Slices[slice] = out
	}
	return m.next.Save(ctx, id, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, id string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, id)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) matches(s string) bool {
	for _, p := range m.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(sub)
		} else {
			out[k] = v
		}
	}
	return out
}

// maskMap masks nested map entries by key.
func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				break
			}
		}
		if sub, ok := v.(map[string]any); ok && m[k] != Mask {
			maskMap(sub, patterns)
		}
	}
}
