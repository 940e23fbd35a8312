package task

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps task types to factories. Lookups happen at execution
// time, in whichever process runs the node.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a task type twice is an error.
func (r *Registry) Register(taskType string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[taskType]; exists {
		return fmt.Errorf("task type %q already registered", taskType)
	}
	r.factories[taskType] = f
	return nil
}

// MustRegister is Register that panics on error, for init-time wiring.
func (r *Registry) MustRegister(taskType string, f Factory) {
	if err := r.Register(taskType, f); err != nil {
		panic(err)
	}
}

// Lookup retrieves a factory by task type.
func (r *Registry) Lookup(taskType string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[taskType]
	return f, ok
}

// Names returns sorted task types.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
