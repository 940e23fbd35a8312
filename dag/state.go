package dag

import (
	"sync"

	"github.com/kbukum/taskflow/task"
)

// State is a thread-safe store of node results, shared by reference
// between the nodes of one execution.
type State struct {
	mu   sync.RWMutex
	data map[string]task.Outputs
}

// NewState creates a new empty State.
func NewState() *State {
	return &State{data: make(map[string]task.Outputs)}
}

// Get retrieves the result of a node. Returns false if it has none yet.
func (s *State) Get(nodeID string) (task.Outputs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[nodeID]
	return v, ok
}

// Set stores the result of a node.
func (s *State) Set(nodeID string, out task.Outputs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[nodeID] = out
}

// Len returns the number of stored results.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// upstream returns the results of sources, in order.
func (s *State) upstream(sources []string) ([]task.Outputs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Outputs, len(sources))
	for i, src := range sources {
		v, ok := s.data[src]
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
