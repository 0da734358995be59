package monitor

import (
	"slices"
	"sync"
)

// Registry is the set of root PIDs being tracked, in registration order.
// It is the only state shared between the listener and the sampler; every
// method holds the mutex for the duration of the slice operation only.
type Registry struct {
	mu   sync.Mutex
	pids []int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds pid if absent. Non-positive PIDs are ignored.
// It reports whether the registry changed.
func (r *Registry) Register(pid int) bool {
	if pid <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.pids, pid) {
		return false
	}
	r.pids = append(r.pids, pid)
	return true
}

// Unregister removes pid if present. It reports whether the registry changed.
func (r *Registry) Unregister(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.pids, pid)
	if i < 0 {
		return false
	}
	r.pids = slices.Delete(r.pids, i, i+1)
	return true
}

// Snapshot returns a copy of the current membership.
func (r *Registry) Snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.pids)
}

// Len returns the number of registered PIDs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pids)
}
