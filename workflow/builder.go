// Package workflow turns parsed coordination intents into staged workflows
// and executes them: a builder deriving priority and duration from source
// text, a concurrency-safe registry owning workflow lifecycle, and a state
// machine executor that walks the task DAG layer by layer, dispatching tasks
// to workers through the streaming protocol and gating every produced
// artifact through the safety validator.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/intent"
)

// BuilderOptions configure workflow construction.
type BuilderOptions struct {
	// BaseDuration is the fixed part of the duration estimate.
	BaseDuration time.Duration
	// PerWorkerDuration is added per assigned worker.
	PerWorkerDuration time.Duration
}

// Builder constructs staged workflows from intents.
type Builder struct {
	base      time.Duration
	perWorker time.Duration
}

// NewBuilder creates a Builder. Defaults: base 20 minutes, 5 minutes per worker.
func NewBuilder(optFns ...func(o *BuilderOptions)) *Builder {
	opts := BuilderOptions{
		BaseDuration:      20 * time.Minute,
		PerWorkerDuration: 5 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Builder{base: opts.BaseDuration, perWorker: opts.PerWorkerDuration}
}

// Build turns an intent into a staged workflow. Tasks are independent by
// default (no dependency edges are inferred from text); callers may add
// explicit edges before staging and the executor honors them.
func (b *Builder) Build(in intent.Intent, sourceText string) *core.Workflow {
	description := ""
	if len(in.TaskDescriptions) > 0 {
		description = in.TaskDescriptions[0]
	}

	id := NewWorkflowID()
	tasks := make([]core.Task, len(in.Workers))
	for i, workerID := range in.Workers {
		tasks[i] = core.Task{
			ID:             fmt.Sprintf("%s_task_%d", id, i+1),
			AssignedWorker: workerID,
			Description:    description,
			Status:         core.TaskPending,
		}
	}

	return &core.Workflow{
		ID:                id,
		Title:             in.Title,
		Description:       description,
		Workers:           append([]string(nil), in.Workers...),
		Tasks:             tasks,
		Priority:          derivePriority(sourceText),
		EstimatedDuration: b.base + b.perWorker*time.Duration(len(in.Workers)),
		CreatedAt:         time.Now().UTC(),
		Status:            core.WorkflowStaged,
	}
}

// NewWorkflowID produces a collision-resistant workflow id: millisecond
// timestamp plus a random suffix.
func NewWorkflowID() string {
	return fmt.Sprintf("wf_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// derivePriority scans the source text for urgency keywords. First match in
// descending severity wins; the default is medium.
func derivePriority(text string) core.Priority {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "critical", "urgent", "emergency"):
		return core.PriorityCritical
	case containsAny(lower, "important", "asap", "high priority"):
		return core.PriorityHigh
	case containsAny(lower, "low priority", "when possible"):
		return core.PriorityLow
	default:
		return core.PriorityMedium
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
