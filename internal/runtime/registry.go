package runtime

import (
	"github.com/aretw0/rux/pkg/domain"
)

type origin int

const (
	originUser origin = iota
	originActivation
)

type subscription struct {
	id       uint64
	label    string
	origin   origin
	callback domain.Callback
	// paths are resolved to root names, in the order the callback expects them.
	paths  []domain.StatePath
	active bool
}

// registry indexes subscriptions by resolved (root, field).
type registry struct {
	nextID uint64
	byKey  map[domain.StatePath][]*subscription
	byID   map[uint64]*subscription
}

func newRegistry() *registry {
	r := &registry{}
	r.reset()
	return r
}

func (r *registry) reset() {
	for _, s := range r.byID {
		s.active = false
	}
	r.byKey = make(map[domain.StatePath][]*subscription)
	r.byID = make(map[uint64]*subscription)
}

func (r *registry) add(cb domain.Callback, paths []domain.StatePath, o origin, label string) *subscription {
	r.nextID++
	s := &subscription{
		id:       r.nextID,
		label:    label,
		origin:   o,
		callback: cb,
		paths:    paths,
		active:   true,
	}
	for _, key := range s.keys() {
		r.byKey[key] = append(r.byKey[key], s)
	}
	r.byID[s.id] = s
	return s
}

// remove deletes exactly the registrations of s. Removing twice is a no-op.
func (r *registry) remove(s *subscription) {
	if !s.active {
		return
	}
	s.active = false
	delete(r.byID, s.id)
	for _, key := range s.keys() {
		list := r.byKey[key]
		kept := list[:0:0]
		for _, other := range list {
			if other != s {
				kept = append(kept, other)
			}
		}
		if len(kept) == 0 {
			delete(r.byKey, key)
			continue
		}
		r.byKey[key] = kept
	}
}

func (r *registry) removeWhere(match func(*subscription) bool) int {
	var doomed []*subscription
	for _, s := range r.byID {
		if match(s) {
			doomed = append(doomed, s)
		}
	}
	for _, s := range doomed {
		r.remove(s)
	}
	return len(doomed)
}

// snapshot returns the subscriptions of key in registration order. The
// returned slice is detached from the registry, so callbacks may subscribe
// or unsubscribe while it is being walked.
func (r *registry) snapshot(key domain.StatePath) []*subscription {
	list := r.byKey[key]
	out := make([]*subscription, len(list))
	copy(out, list)
	return out
}

func (r *registry) count(key domain.StatePath) int {
	return len(r.byKey[key])
}

func (r *registry) size() int {
	return len(r.byID)
}

// keys returns the distinct paths of s.
func (s *subscription) keys() []domain.StatePath {
	seen := make(map[domain.StatePath]bool, len(s.paths))
	out := make([]domain.StatePath, 0, len(s.paths))
	for _, p := range s.paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
