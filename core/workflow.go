package core

import "time"

// Priority classifies the urgency of a workflow, derived from its source text.
type Priority string

const (
	// PriorityLow marks work explicitly deferred by the requester.
	PriorityLow Priority = "low"
	// PriorityMedium is the default when no urgency keyword is present.
	PriorityMedium Priority = "medium"
	// PriorityHigh marks important or time-sensitive work.
	PriorityHigh Priority = "high"
	// PriorityCritical marks emergencies.
	PriorityCritical Priority = "critical"
)

// WorkflowStatus tracks the lifecycle of a workflow. Transitions are
// monotonic: staged -> executing -> {completed | failed}. There is no
// backward transition and terminal states are never left.
type WorkflowStatus string

const (
	// WorkflowStaged means the workflow has been built but not executed.
	WorkflowStaged WorkflowStatus = "staged"
	// WorkflowExecuting means the executor currently owns the workflow.
	WorkflowExecuting WorkflowStatus = "executing"
	// WorkflowCompleted means at least one task succeeded.
	WorkflowCompleted WorkflowStatus = "completed"
	// WorkflowFailed means no task succeeded.
	WorkflowFailed WorkflowStatus = "failed"
)

// CanTransition reports whether moving from s to next preserves the
// monotonic lifecycle invariant.
func (s WorkflowStatus) CanTransition(next WorkflowStatus) bool {
	switch s {
	case WorkflowStaged:
		return next == WorkflowExecuting
	case WorkflowExecuting:
		return next == WorkflowCompleted || next == WorkflowFailed
	default:
		return false
	}
}

// TaskStatus tracks the lifecycle of a single task.
type TaskStatus string

const (
	// TaskPending means the task has not started yet.
	TaskPending TaskStatus = "pending"
	// TaskRunning means the task's worker invocation is in flight.
	TaskRunning TaskStatus = "running"
	// TaskSucceeded means the invocation completed and its artifact (if any)
	// passed validation.
	TaskSucceeded TaskStatus = "succeeded"
	// TaskFailed covers invocation errors, timeouts, cancellation and
	// unresolved critical validation findings.
	TaskFailed TaskStatus = "failed"
	// TaskSkipped means a dependency failed or execution was cancelled
	// before the task started.
	TaskSkipped TaskStatus = "skipped"
)

// Task is a single unit of work assigned to one worker. Dependencies
// reference sibling task ids within the same workflow and must form a DAG.
type Task struct {
	ID             string     `json:"id"`
	AssignedWorker string     `json:"assigned_worker"`
	Description    string     `json:"description"`
	Dependencies   []string   `json:"dependencies,omitempty"`
	Status         TaskStatus `json:"status"`
	Deliverables   []string   `json:"deliverables,omitempty"`
}

// FailureReason distinguishes the ways a task can end up failed.
type FailureReason string

const (
	// FailureNone is set on successful results.
	FailureNone FailureReason = ""
	// FailureInvocation covers backend / network errors from the worker.
	FailureInvocation FailureReason = "invocation_error"
	// FailureTimeout is set when the inactivity window elapsed with no event.
	FailureTimeout FailureReason = "timeout"
	// FailureCancelled is set when the consumer disconnected or the context
	// was cancelled while the task was in flight.
	FailureCancelled FailureReason = "cancelled"
	// FailureValidation is set when a critical validation finding could not
	// be resolved and the artifact was routed to manual review.
	FailureValidation FailureReason = "validation_unresolved"
)

// TaskResult records the outcome of one task execution.
type TaskResult struct {
	TaskID   string              `json:"task_id"`
	WorkerID string              `json:"worker_id"`
	Status   TaskStatus          `json:"status"`
	Output   string              `json:"output,omitempty"`
	Findings []ValidationFinding `json:"findings,omitempty"`
	Reason   FailureReason       `json:"reason,omitempty"`
	Error    string              `json:"error,omitempty"`
	Duration time.Duration       `json:"duration"`
}

// Workflow bundles a set of tasks assigned across at least two workers.
// The workflow registry exclusively owns Workflow lifecycle; callers always
// receive deep copies (see Clone).
type Workflow struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Workers           []string       `json:"workers"`
	Tasks             []Task         `json:"tasks"`
	Priority          Priority       `json:"priority"`
	EstimatedDuration time.Duration  `json:"estimated_duration"`
	CreatedAt         time.Time      `json:"created_at"`
	Status            WorkflowStatus `json:"status"`
	Results           []TaskResult   `json:"results,omitempty"`
}

// Clone returns a deep copy safe for independent mutation.
func (w *Workflow) Clone() *Workflow {
	cp := *w
	cp.Workers = append([]string(nil), w.Workers...)
	cp.Tasks = make([]Task, len(w.Tasks))
	for i, t := range w.Tasks {
		cp.Tasks[i] = t
		cp.Tasks[i].Dependencies = append([]string(nil), t.Dependencies...)
		cp.Tasks[i].Deliverables = append([]string(nil), t.Deliverables...)
	}
	cp.Results = make([]TaskResult, len(w.Results))
	for i, r := range w.Results {
		cp.Results[i] = r
		cp.Results[i].Findings = append([]ValidationFinding(nil), r.Findings...)
	}
	return &cp
}

// Task returns the task with the given id, or false if absent.
func (w *Workflow) Task(id string) (Task, bool) {
	for _, t := range w.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
