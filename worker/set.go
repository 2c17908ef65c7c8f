package worker

import (
	"sort"
	"sync"

	"github.com/hupe1980/taskmesh/core"
)

// Set is the roster of registered worker personalities. Each entry pairs a
// core.Worker implementation with the WorkerConfig defining its personality;
// several configs may share one implementation. It satisfies the executor's
// WorkerProvider contract and is safe for concurrent use.
type Set struct {
	mu      sync.RWMutex
	entries map[string]setEntry
}

type setEntry struct {
	worker core.Worker
	config core.WorkerConfig
}

// NewSet creates an empty worker set.
func NewSet() *Set {
	return &Set{entries: make(map[string]setEntry)}
}

// Register adds or replaces a worker under its config id.
func (s *Set) Register(config core.WorkerConfig, w core.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[config.ID] = setEntry{worker: w, config: config}
}

// Lookup resolves a worker id to its implementation and configuration.
func (s *Set) Lookup(id string) (core.Worker, core.WorkerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, core.WorkerConfig{}, false
	}
	return e.worker, e.config, true
}

// IDs returns the registered worker ids, sorted.
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Config returns the configuration registered under id.
func (s *Set) Config(id string) (core.WorkerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e.config, ok
}
