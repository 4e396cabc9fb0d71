package registry

import (
	"sync"

	"inkwell/internal/mission"
)

// Registry is an insertion-ordered map of live missions keyed by id.
// Iteration order is maintained explicitly rather than relying on map
// behavior so admission stays FIFO-ish across retries.
type Registry struct {
	mu       sync.RWMutex
	missions map[int64]*mission.Mission
	order    []int64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{missions: make(map[int64]*mission.Mission)}
}

// Put inserts a mission at the tail of the admission order. Re-inserting an
// existing id replaces the stored mission without duplicating its slot.
func (r *Registry) Put(m *mission.Mission) {
	if m == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.missions[m.ID()]; !ok {
		r.order = append(r.order, m.ID())
	}
	r.missions[m.ID()] = m
}

// Get returns the mission stored under id, or nil.
func (r *Registry) Get(id int64) *mission.Mission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.missions[id]
}

// CompareAndRemove deletes id only while it still maps to expected. This
// guards the race where a completion handler for a stale attempt tries to
// remove a mission that a retry already replaced.
func (r *Registry) CompareAndRemove(id int64, expected *mission.Mission) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.missions[id]
	if !ok || stored != expected {
		return false
	}
	delete(r.missions, id)
	r.removeFromOrderLocked(id)
	return true
}

// Requeue moves id to the tail of the admission order, used when a retried
// mission must wait behind already-pending work.
func (r *Registry) Requeue(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.missions[id]; !ok {
		return
	}
	r.removeFromOrderLocked(id)
	r.order = append(r.order, id)
}

// Values returns the live missions in admission order.
func (r *Registry) Values() []*mission.Mission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*mission.Mission, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.missions[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of live missions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.missions)
}

func (r *Registry) removeFromOrderLocked(id int64) {
	for i, candidate := range r.order {
		if candidate == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
