package scheduler

import "sync"

// MaxInstances is the number of instance keys a registry can hand out.
// Keys run from 1 to MaxInstances; 0 marks an invalid handle.
const MaxInstances = 31

// Registry maps small integer keys to live scheduler instances so that a
// handle can be routed back to the instance that issued it.
//
// Registration is safe for concurrent use. Routing a call through the
// registry does not make the target instance goroutine-safe: the instance
// must still only be driven and mutated from its own goroutine.
type Registry struct {
	mu        sync.Mutex
	instances [MaxInstances + 1]*Scheduler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used when New is not given
// WithRegistry.
func Default() *Registry {
	return defaultRegistry
}

// register claims the lowest free key for s.
func (r *Registry) register(s *Scheduler) (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := 1; key <= MaxInstances; key++ {
		if r.instances[key] == nil {
			r.instances[key] = s
			return uint8(key), nil
		}
	}
	return 0, ErrInstancesExhausted
}

// release frees key if it is still held by s.
func (r *Registry) release(key uint8, s *Scheduler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int(key) <= MaxInstances && r.instances[key] == s {
		r.instances[key] = nil
	}
}

// Lookup returns the instance registered under key.
func (r *Registry) Lookup(key uint8) (*Scheduler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key == 0 || int(key) > MaxInstances || r.instances[key] == nil {
		return nil, false
	}
	return r.instances[key], true
}

// Kill routes h to the instance that issued it.
func (r *Registry) Kill(h Handle) bool {
	s, ok := r.Lookup(h.Key())
	if !ok {
		return false
	}
	return s.Kill(h)
}

// Len returns the number of registered instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.instances {
		if s != nil {
			n++
		}
	}
	return n
}
