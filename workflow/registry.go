package workflow

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/hupe1980/taskmesh/core"
)

// ErrNotFound is returned for operations against an unknown workflow id.
var ErrNotFound = fmt.Errorf("workflow not found")

const shardCount = 16

// Registry is the injected, concurrency-safe store that exclusively owns
// Workflow lifecycle. It is a sharded map with per-shard locking; no global
// lock spans all keys. Callers only ever receive deep copies, and status
// transitions are validated against the monotonic lifecycle. The per-id
// execute guard enforces the single-writer invariant for execution.
type Registry struct {
	shards [shardCount]registryShard
}

type registryShard struct {
	mu        sync.RWMutex
	workflows map[string]*core.Workflow
	executing map[string]bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].workflows = make(map[string]*core.Workflow)
		r.shards[i].executing = make(map[string]bool)
	}
	return r
}

func (r *Registry) shard(id string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &r.shards[h.Sum32()%shardCount]
}

// Put stages a workflow, storing a private copy.
func (r *Registry) Put(wf *core.Workflow) {
	s := r.shard(wf.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = wf.Clone()
}

// Get returns a copy of the workflow or ErrNotFound. An unknown id is an
// explicit not-found result, never a panic.
func (r *Registry) Get(id string) (*core.Workflow, error) {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return wf.Clone(), nil
}

// List returns copies of all stored workflows sorted by creation time,
// newest first.
func (r *Registry) List() []*core.Workflow {
	var out []*core.Workflow
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, wf := range s.workflows {
			out = append(out, wf.Clone())
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// UpdateStatus transitions the workflow status, enforcing monotonicity.
func (r *Registry) UpdateStatus(id string, next core.WorkflowStatus) error {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return ErrNotFound
	}
	if !wf.Status.CanTransition(next) {
		return fmt.Errorf("invalid status transition %s -> %s for %s", wf.Status, next, id)
	}
	wf.Status = next
	return nil
}

// UpdateTaskStatus sets the status of one task within the workflow.
func (r *Registry) UpdateTaskStatus(id, taskID string, status core.TaskStatus) error {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return ErrNotFound
	}
	for i := range wf.Tasks {
		if wf.Tasks[i].ID == taskID {
			wf.Tasks[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("task %s not found in workflow %s", taskID, id)
}

// AppendResult records a task result on the workflow.
func (r *Registry) AppendResult(id string, result core.TaskResult) error {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return ErrNotFound
	}
	wf.Results = append(wf.Results, result)
	return nil
}

// TryBeginExecute acquires the per-id execute guard. It returns false when
// another execution already owns the workflow; duplicate execute calls must
// treat that as an idempotent no-op.
func (r *Registry) TryBeginExecute(id string) bool {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return false
	}
	if s.executing[id] {
		return false
	}
	s.executing[id] = true
	return true
}

// EndExecute releases the per-id execute guard.
func (r *Registry) EndExecute(id string) {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.executing, id)
}
