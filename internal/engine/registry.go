package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry manages registered compute backends by name.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Name()] = e
}

// Get returns the named engine. An unknown name yields an error listing the
// registered backends so a config typo is obvious from the message alone.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	if !ok {
		names := make([]string, 0, len(r.engines))
		for n := range r.engines {
			names = append(names, n)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("engine %q not found: no engines registered", name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("engine %q not found, registered: %s", name, strings.Join(names, ", "))
	}
	return e, nil
}

// List returns registered engine names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
