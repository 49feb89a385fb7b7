package domain

import "time"

// Snapshot is the persisted form of a store dump.
type Snapshot struct {
	ID      string                    `json:"id" yaml:"id"`
	Slices  map[string]map[string]any `json:"slices" yaml:"slices"`
	SavedAt time.Time                 `json:"saved_at" yaml:"saved_at"`
}

// Clone copies the snapshot down to the per-slice field maps.
// Field values themselves are shared.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{ID: s.ID, SavedAt: s.SavedAt, Slices: make(map[string]map[string]any, len(s.Slices))}
	for name, fields := range s.Slices {
		copied := make(map[string]any, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		out.Slices[name] = copied
	}
	return out
}
