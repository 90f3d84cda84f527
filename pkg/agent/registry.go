package agent

import (
	"fmt"
	"sync"
)

// Registry holds the agent catalog. Entries are immutable once registered.
type Registry struct {
	mu       sync.RWMutex
	profiles map[ID]Profile
	order    []ID
}

// NewRegistry builds a registry from profiles, keeping their order.
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[ID]Profile, len(profiles))}
	for _, p := range profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("agent: empty id")
		}
		if !p.Kind.Valid() {
			return nil, fmt.Errorf("%w: %q for %s", ErrInvalidKind, p.Kind, p.ID)
		}
		if _, ok := r.profiles[p.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, p.ID)
		}
		r.profiles[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	return r, nil
}

// DefaultRegistry returns a registry loaded with the built-in catalog.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Catalog()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get retrieves a profile by ID.
func (r *Registry) Get(id ID) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// List returns all profiles in registration order.
func (r *Registry) List() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.profiles[id])
	}
	return out
}

// First returns the first registered profile. It is the session default.
func (r *Registry) First() (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return Profile{}, false
	}
	return r.profiles[r.order[0]], true
}

// Count returns the number of profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
