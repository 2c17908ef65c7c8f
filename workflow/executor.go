package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/taskmesh/artifact"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/stream"
	"github.com/hupe1980/taskmesh/validate"
)

// WorkerProvider resolves worker ids to their implementation and
// configuration. worker.Set is the standard implementation.
type WorkerProvider interface {
	Lookup(id string) (core.Worker, core.WorkerConfig, bool)
	IDs() []string
}

// ExecutorOptions configure the Executor.
type ExecutorOptions struct {
	// InactivityTimeout fails a task that produced no event for this long.
	InactivityTimeout time.Duration
	// Validator gates every produced artifact.
	Validator *validate.Validator
	// Memory persists the running conversation/task trace.
	Memory *memory.Service
	// Artifacts receives accepted (fixed) artifacts.
	Artifacts artifact.Writer
	// Logger receives execution diagnostics.
	Logger logging.Logger
}

// Result is the outcome of one Execute call.
type Result struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Status  core.WorkflowStatus `json:"status"`
	Results []core.TaskResult   `json:"results,omitempty"`
}

// Executor walks a workflow's task DAG: tasks are partitioned into
// dependency layers, tasks within a layer run concurrently, and a task only
// starts once all its dependencies succeeded. One task's failure is isolated;
// siblings and independent downstream tasks proceed. The workflow completes
// when at least one task succeeded (partial success counts as workflow
// success), otherwise it fails.
type Executor struct {
	registry   *Registry
	workers    WorkerProvider
	validator  *validate.Validator
	mem        *memory.Service
	artifacts  artifact.Writer
	inactivity time.Duration
	logger     logging.Logger
}

// NewExecutor constructs an Executor bound to a registry and worker set.
// Defaults: 2 minute inactivity window, default validator, in-memory
// everything else.
func NewExecutor(registry *Registry, workers WorkerProvider, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		InactivityTimeout: 2 * time.Minute,
		Validator:         validate.New(),
		Memory:            memory.New(),
		Artifacts:         artifact.NewInMemoryWriter(),
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{
		registry:   registry,
		workers:    workers,
		validator:  opts.Validator,
		mem:        opts.Memory,
		artifacts:  opts.Artifacts,
		inactivity: opts.InactivityTimeout,
		logger:     opts.Logger,
	}
}

// Execute runs the workflow, streaming every task's events to sink.
// Duplicate or concurrent calls for the same id are idempotent no-ops
// reporting the current state; the single-writer-per-id invariant is never
// violated.
func (e *Executor) Execute(ctx context.Context, workflowID string, sink stream.Sink) Result {
	if _, err := e.registry.Get(workflowID); err != nil {
		return Result{Success: false, Message: "workflow not found", Status: ""}
	}

	if !e.registry.TryBeginExecute(workflowID) {
		return e.currentState(workflowID, "execution already in progress")
	}
	defer e.registry.EndExecute(workflowID)

	// Re-read under the guard: a duplicate that raced a finished run must see
	// the terminal status here, not a stale staged copy.
	wf, err := e.registry.Get(workflowID)
	if err != nil {
		return Result{Success: false, Message: "workflow not found", Status: ""}
	}
	if wf.Status != core.WorkflowStaged {
		return e.currentState(workflowID, "workflow already executed")
	}

	if err := e.registry.UpdateStatus(workflowID, core.WorkflowExecuting); err != nil {
		return e.currentState(workflowID, err.Error())
	}

	layers, err := topoLayers(wf.Tasks)
	if err != nil {
		e.logger.Error("workflow %s has an invalid task graph: %v", workflowID, err)
		_ = e.registry.UpdateStatus(workflowID, core.WorkflowFailed)
		return e.currentState(workflowID, fmt.Sprintf("invalid task graph: %v", err))
	}

	var (
		mu           sync.Mutex
		results      []core.TaskResult
		taskOutcome  = make(map[string]core.TaskStatus, len(wf.Tasks))
		consumerGone atomic.Bool
	)
	record := func(res core.TaskResult) {
		mu.Lock()
		results = append(results, res)
		taskOutcome[res.TaskID] = res.Status
		mu.Unlock()
		_ = e.registry.UpdateTaskStatus(workflowID, res.TaskID, res.Status)
		_ = e.registry.AppendResult(workflowID, res)
	}

	for _, layer := range layers {
		cancelled := consumerGone.Load() || ctx.Err() != nil
		var wg sync.WaitGroup
		for _, task := range layer {
			if cancelled {
				record(core.TaskResult{
					TaskID:   task.ID,
					WorkerID: task.AssignedWorker,
					Status:   core.TaskSkipped,
					Reason:   core.FailureCancelled,
				})
				continue
			}
			if !e.depsSucceeded(task, taskOutcome, &mu) {
				record(core.TaskResult{
					TaskID:   task.ID,
					WorkerID: task.AssignedWorker,
					Status:   core.TaskSkipped,
					Error:    "dependency did not succeed",
				})
				continue
			}
			wg.Add(1)
			go func(t core.Task) {
				defer wg.Done()
				res, gone := e.runTask(ctx, workflowID, t, sink)
				if gone {
					consumerGone.Store(true)
				}
				record(res)
			}(task)
		}
		wg.Wait()
	}

	succeeded := 0
	for _, res := range results {
		if res.Status == core.TaskSucceeded {
			succeeded++
		}
	}

	final := core.WorkflowFailed
	if succeeded > 0 {
		final = core.WorkflowCompleted
	}
	_ = e.registry.UpdateStatus(workflowID, final)

	msg := fmt.Sprintf("%d/%d workers succeeded", succeeded, len(wf.Tasks))
	e.logger.Info("workflow %s finished status=%s %s", workflowID, final, msg)
	return Result{
		Success: final == core.WorkflowCompleted,
		Message: msg,
		Status:  final,
		Results: results,
	}
}

func (e *Executor) depsSucceeded(task core.Task, outcome map[string]core.TaskStatus, mu *sync.Mutex) bool {
	mu.Lock()
	defer mu.Unlock()
	for _, dep := range task.Dependencies {
		if outcome[dep] != core.TaskSucceeded {
			return false
		}
	}
	return true
}

func (e *Executor) currentState(workflowID, msg string) Result {
	wf, err := e.registry.Get(workflowID)
	if err != nil {
		return Result{Success: false, Message: msg}
	}
	return Result{
		Success: wf.Status == core.WorkflowCompleted,
		Message: msg,
		Status:  wf.Status,
		Results: wf.Results,
	}
}

// runTask dispatches one task to its worker and consumes the event stream.
// The second return value reports that the downstream consumer disconnected
// (a failed safe write); the executor stops dispatching further tasks for
// this workflow when it is set.
func (e *Executor) runTask(
	ctx context.Context,
	workflowID string,
	task core.Task,
	sink stream.Sink,
) (core.TaskResult, bool) {
	start := time.Now()
	res := core.TaskResult{TaskID: task.ID, WorkerID: task.AssignedWorker}
	fail := func(reason core.FailureReason, msg string) (core.TaskResult, bool) {
		res.Status = core.TaskFailed
		res.Reason = reason
		res.Error = msg
		res.Duration = time.Since(start)
		e.logger.Warn("task %s failed reason=%s: %s", task.ID, reason, msg)
		return res, false
	}

	_ = e.registry.UpdateTaskStatus(workflowID, task.ID, core.TaskRunning)

	w, cfg, ok := e.workers.Lookup(task.AssignedWorker)
	if !ok {
		return fail(core.FailureInvocation, fmt.Sprintf("unknown worker %q", task.AssignedWorker))
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := w.Invoke(taskCtx, task, e.history(ctx, workflowID), cfg)
	if err != nil {
		return fail(core.FailureInvocation, err.Error())
	}

	em := stream.NewEmitter(sink)
	timer := time.NewTimer(e.inactivity)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return fail(core.FailureCancelled, "execution cancelled")
		case <-timer.C:
			cancel()
			return fail(core.FailureTimeout, fmt.Sprintf("no event for %s", e.inactivity))
		case ev, open := <-events:
			if !open {
				return fail(core.FailureInvocation, "event stream closed without terminal event")
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(e.inactivity)

			if !em.Emit(ev) && em.Closed() {
				cancel()
				res, _ := fail(core.FailureCancelled, "consumer disconnected")
				return res, true
			}

			switch ev.Type {
			case core.EventError:
				return fail(core.FailureInvocation, ev.Message)
			case core.EventCompletion:
				return e.accept(ctx, workflowID, task, ev.Summary, start)
			}
		}
	}
}

// accept gates the produced artifact through the validator, persists the
// task trace and records the accepted artifact. Unresolved critical findings
// fail the task; auto-fixed findings are surfaced as warnings alongside the
// accepted output.
func (e *Executor) accept(
	ctx context.Context,
	workflowID string,
	task core.Task,
	output string,
	start time.Time,
) (core.TaskResult, bool) {
	res := core.TaskResult{TaskID: task.ID, WorkerID: task.AssignedWorker}

	vres := e.validator.Validate(output)
	res.Findings = vres.Findings
	if vres.RequiresReview {
		res.Status = core.TaskFailed
		res.Reason = core.FailureValidation
		res.Error = "critical validation finding requires manual review"
		res.Duration = time.Since(start)
		e.logger.Warn("task %s artifact flagged for manual review", task.ID)
		return res, false
	}

	if vres.FixedContent != "" {
		if err := e.artifacts.Write(ctx, artifact.Artifact{
			ID:             core.NewID(),
			WorkflowID:     workflowID,
			TaskID:         task.ID,
			WorkerID:       task.AssignedWorker,
			Content:        vres.FixedContent,
			Findings:       vres.Findings,
			RequiresReview: false,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			e.logger.Warn("artifact write failed for task %s: %v", task.ID, err)
		}
	}

	e.appendTrace(ctx, workflowID, task, vres.FixedContent)

	res.Status = core.TaskSucceeded
	res.Output = vres.FixedContent
	res.Duration = time.Since(start)
	return res, false
}

// history reconstructs the conversation context for a worker invocation from
// the persisted workflow trace.
func (e *Executor) history(ctx context.Context, workflowID string) []core.Message {
	trace, ok := e.mem.Get(ctx, traceKey(workflowID))
	if !ok || trace == "" {
		return nil
	}
	return []core.Message{{Role: "user", Text: "Progress so far:\n" + trace}}
}

// appendTrace persists the running conversation/task trace through the
// memory service, tagged for bulk invalidation by task and worker.
func (e *Executor) appendTrace(ctx context.Context, workflowID string, task core.Task, output string) {
	trace, _ := e.mem.Get(ctx, traceKey(workflowID))
	line := fmt.Sprintf("[%s] %s", task.AssignedWorker, firstLine(output))
	if trace != "" {
		trace += "\n"
	}
	e.mem.Set(ctx, traceKey(workflowID), trace+line, 0,
		memory.WithTaskID(task.ID), memory.WithAgentID(task.AssignedWorker))
}

func traceKey(workflowID string) string { return "workflow:" + workflowID + ":trace" }

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
