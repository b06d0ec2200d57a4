package task

import (
	"sort"
	"sync"
	"time"
)

// Registry maps task name to definition. It is independent of execution:
// adding or removing a definition never starts or stops work by itself (the
// scheduler engine watches the registry through its own entry points).
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: map[string]Definition{}}
}

// Put upserts a definition by name and reports whether it replaced an
// existing one. The caller is expected to Validate first.
func (r *Registry) Put(def Definition) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.defs[def.Name]
	r.defs[def.Name] = def
	return replaced
}

// Remove deletes a definition and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.defs[name]
	delete(r.defs, name)
	return ok
}

func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Names returns all task names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetLastRun records the completion time of the most recent run. Reports
// false if the task no longer exists (e.g. removed while running).
func (r *Registry) SetLastRun(name string, t time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[name]
	if !ok {
		return false
	}
	def.LastRun = t
	r.defs[name] = def
	return true
}
