// Package state owns the per-session bookkeeping: the publisher and
// subscriber registries plus the stream maps the orchestrator mutates.
package state

import (
	"sync"

	"github.com/NooksApp/accelerator-core/internal/domain"
)

// Count reports registry sizes per kind.
type Count struct {
	Camera int `json:"camera"`
	Screen int `json:"screen"`
	Total  int `json:"total"`
}

// View is a point-in-time copy of one registry. Callers must not use it to
// mutate tracked handles structurally; mutation goes through the Session
// operations so the stream map stays consistent.
type View[T any] struct {
	Camera map[string]T `json:"camera"`
	Screen map[string]T `json:"screen"`
	Count  Count        `json:"count"`
}

// Registry tracks active media handles keyed by handle id, one collection
// per kind. Duplicate ids overwrite; re-subscription to the same stream is
// expected to replace the tracked handle.
type Registry[T any] struct {
	mu     sync.RWMutex
	camera map[string]T
	screen map[string]T
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		camera: make(map[string]T),
		screen: make(map[string]T),
	}
}

func (r *Registry[T]) slot(kind domain.Kind) map[string]T {
	if kind.Slot() == domain.KindScreen {
		return r.screen
	}
	return r.camera
}

func (r *Registry[T]) Add(kind domain.Kind, id string, handle T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slot(kind)[id] = handle
}

func (r *Registry[T]) Remove(kind domain.Kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slot(kind), id)
}

func (r *Registry[T]) Get(kind domain.Kind, id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.slot(kind)[id]
	return h, ok
}

// Lookup searches both kinds for the id.
func (r *Registry[T]) Lookup(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.camera[id]; ok {
		return h, true
	}
	h, ok := r.screen[id]
	return h, ok
}

func (r *Registry[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.camera = make(map[string]T)
	r.screen = make(map[string]T)
}

func (r *Registry[T]) Count() Count {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Count{
		Camera: len(r.camera),
		Screen: len(r.screen),
		Total:  len(r.camera) + len(r.screen),
	}
}

func (r *Registry[T]) Snapshot() View[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v := View[T]{
		Camera: make(map[string]T, len(r.camera)),
		Screen: make(map[string]T, len(r.screen)),
	}
	for id, h := range r.camera {
		v.Camera[id] = h
	}
	for id, h := range r.screen {
		v.Screen[id] = h
	}
	v.Count = Count{Camera: len(r.camera), Screen: len(r.screen), Total: len(r.camera) + len(r.screen)}
	return v
}
