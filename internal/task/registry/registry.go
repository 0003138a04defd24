// Package registry keeps a lookup table of live jobs for introspection.
//
// The engine never consults the registry on its firing path; it only adds a
// job when scheduled and removes it when disposed.
package registry

import (
	"slices"
	"sync"
)

// Named is anything with a friendly name.
type Named interface {
	comparable
	FriendlyName() string
}

// Registry is a concurrency-safe, insertion-ordered set of T compared by identity.
// Create one per process and inject it.
type Registry[T Named] struct {
	mu    sync.RWMutex
	items []T
}

// New returns an empty registry.
func New[T Named]() *Registry[T] {
	return &Registry[T]{}
}

// Add returns false without mutation if item is already present.
func (r *Registry[T]) Add(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.items, item) {
		return false
	}
	r.items = append(r.items, item)
	return true
}

// Remove reports whether item was present.
func (r *Registry[T]) Remove(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.items, item)
	if i < 0 {
		return false
	}
	r.items = slices.Delete(r.items, i, i+1)
	return true
}

// All returns a copy in insertion order.
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.items)
}

// Find returns every item pred accepts, in insertion order.
func (r *Registry[T]) Find(pred func(T) bool) []T {
	if pred == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []T
	for _, it := range r.items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// FindByName returns the first item whose FriendlyName equals name.
func (r *Registry[T]) FindByName(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, it := range r.items {
		if it.FriendlyName() == name {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
