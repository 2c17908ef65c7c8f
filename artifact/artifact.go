package artifact

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/taskmesh/core"
)

// Artifact is one validated task output together with its provenance and any
// findings the validator raised (and fixed) on the way in.
type Artifact struct {
	ID             string                   `json:"id"`
	WorkflowID     string                   `json:"workflow_id"`
	TaskID         string                   `json:"task_id"`
	WorkerID       string                   `json:"worker_id"`
	Content        string                   `json:"content"`
	Findings       []core.ValidationFinding `json:"findings,omitempty"`
	RequiresReview bool                     `json:"requires_review"`
	CreatedAt      time.Time                `json:"created_at"`
}

// Writer persists accepted artifacts.
type Writer interface {
	Write(ctx context.Context, a Artifact) error
}

// Store extends Writer with retrieval by id and per-workflow listing.
type Store interface {
	Writer
	Get(ctx context.Context, id string) (Artifact, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]Artifact, error)
}

// InMemoryWriter is a trivial in-process Store useful for tests, examples and
// single-process prototypes. It keeps all artifacts in maps guarded by an
// RWMutex; data is copied on write and read to avoid accidental external
// mutation. It does not enforce retention limits or eviction.
type InMemoryWriter struct {
	mu         sync.RWMutex
	byID       map[string]Artifact
	byWorkflow map[string][]string // workflowID -> artifact ids, write order
}

// NewInMemoryWriter returns an empty in-memory artifact store.
func NewInMemoryWriter() *InMemoryWriter {
	return &InMemoryWriter{
		byID:       make(map[string]Artifact),
		byWorkflow: make(map[string][]string),
	}
}

// Write stores (or overwrites) the artifact under its id.
func (s *InMemoryWriter) Write(_ context.Context, a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[a.ID]; !exists {
		s.byWorkflow[a.WorkflowID] = append(s.byWorkflow[a.WorkflowID], a.ID)
	}
	s.byID[a.ID] = cloneArtifact(a)
	return nil
}

// Get returns a copy of the stored artifact or ErrNotFound.
func (s *InMemoryWriter) Get(_ context.Context, id string) (Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return Artifact{}, ErrNotFound
	}
	return cloneArtifact(a), nil
}

// ListByWorkflow returns copies of all artifacts recorded for the workflow,
// in write order.
func (s *InMemoryWriter) ListByWorkflow(_ context.Context, workflowID string) ([]Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byWorkflow[workflowID]
	out := make([]Artifact, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneArtifact(s.byID[id]))
	}
	return out, nil
}

func cloneArtifact(a Artifact) Artifact {
	cp := a
	cp.Findings = append([]core.ValidationFinding(nil), a.Findings...)
	return cp
}

var _ Store = (*InMemoryWriter)(nil)
