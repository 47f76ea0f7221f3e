package resilience

import (
	"sort"
	"sync"
)

// Registry owns one breaker per operation class for the process
// lifetime. It replaces implicit module-level singletons: the
// composition root creates it once and passes it to adapters.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// Get returns the breaker registered under name, creating it from cfg
// on first use. Later calls ignore cfg so every caller of the same
// operation class shares one instance.
func (r *Registry) Get(name string, cfg BreakerConfig) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	cfg.Name = name
	b := NewBreaker(cfg)
	r.breakers[name] = b
	return b
}

// Lookup returns the breaker for name without creating one.
func (r *Registry) Lookup(name string) (*Breaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Snapshot returns diagnostic views of every breaker, sorted by name.
func (r *Registry) Snapshot() []BreakerSnapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	snaps := make([]BreakerSnapshot, 0, len(breakers))
	for _, b := range breakers {
		snaps = append(snaps, b.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}
