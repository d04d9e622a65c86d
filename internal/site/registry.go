// Package site holds the in-memory site registry. Sites are seeded from
// configuration at startup; the gateway lists them and resolves routes
// between them, nothing more.
package site

import (
	"fmt"
	"sync"

	"fieldops-gateway/internal/geo"
	"fieldops-gateway/internal/model"
)

// Registry is a read-mostly site lookup.
type Registry struct {
	mu    sync.RWMutex
	sites map[string]model.Site
	order []string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sites: make(map[string]model.Site)}
}

// Add registers a site. Duplicate ids are rejected.
func (r *Registry) Add(s model.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sites[s.ID]; ok {
		return fmt.Errorf("%w: site id already exists", model.ErrBadRequest)
	}
	r.sites[s.ID] = s
	r.order = append(r.order, s.ID)
	return nil
}

// Get returns one site.
func (r *Registry) Get(id string) (model.Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sites[id]
	if !ok {
		return model.Site{}, fmt.Errorf("%w: site not found", model.ErrNotFound)
	}
	return s, nil
}

// List returns sites in registration order, optionally bbox-filtered.
func (r *Registry) List(bb *geo.BBox) []model.Site {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Site, 0, len(r.order))
	for _, id := range r.order {
		s := r.sites[id]
		if bb != nil && !bb.Contains(s.Lat, s.Lon) {
			continue
		}
		out = append(out, s)
	}
	return out
}
