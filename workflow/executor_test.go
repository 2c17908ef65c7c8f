package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/artifact"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/stream"
	"github.com/hupe1980/taskmesh/worker"
)

// workerFunc adapts a function to core.Worker for scripted test workers.
type workerFunc func(ctx context.Context, task core.Task, history []core.Message, config core.WorkerConfig) (<-chan core.StreamEvent, error)

func (f workerFunc) Invoke(ctx context.Context, task core.Task, history []core.Message, config core.WorkerConfig) (<-chan core.StreamEvent, error) {
	return f(ctx, task, history, config)
}

// scripted emits a start event followed by the given terminal event.
func scripted(terminal func(taskID, workerID string) core.StreamEvent) workerFunc {
	return func(_ context.Context, task core.Task, _ []core.Message, config core.WorkerConfig) (<-chan core.StreamEvent, error) {
		out := make(chan core.StreamEvent, 2)
		out <- core.NewStartEvent(task.ID, config.ID)
		out <- terminal(task.ID, config.ID)
		close(out)
		return out, nil
	}
}

func completing(summary string) workerFunc {
	return scripted(func(taskID, workerID string) core.StreamEvent {
		return core.NewCompletionEvent(taskID, workerID, summary)
	})
}

func erroring(msg string) workerFunc {
	return scripted(func(taskID, workerID string) core.StreamEvent {
		return core.NewErrorEvent(taskID, workerID, msg)
	})
}

func registerAll(set *worker.Set, workers map[string]core.Worker) {
	for id, w := range workers {
		set.Register(core.WorkerConfig{ID: id}, w)
	}
}

func stageWorkflow(r *Registry, id string, tasks []core.Task) {
	workers := make([]string, 0, len(tasks))
	for _, t := range tasks {
		workers = append(workers, t.AssignedWorker)
	}
	r.Put(&core.Workflow{
		ID:        id,
		Workers:   workers,
		Tasks:     tasks,
		Status:    core.WorkflowStaged,
		CreatedAt: time.Now().UTC(),
	})
}

func drain(sink *stream.ChannelSink) []core.StreamEvent {
	sink.Close()
	var events []core.StreamEvent
	for ev := range sink.Events() {
		events = append(events, ev)
	}
	return events
}

func resultFor(results []core.TaskResult, taskID string) (core.TaskResult, bool) {
	for _, r := range results {
		if r.TaskID == taskID {
			return r, true
		}
	}
	return core.TaskResult{}, false
}

func TestExecutePartialSuccess(t *testing.T) {
	registry := NewRegistry()
	stageWorkflow(registry, "wf_1", []core.Task{
		{ID: "t1", AssignedWorker: "aria", Description: "part one", Status: core.TaskPending},
		{ID: "t2", AssignedWorker: "zara", Description: "part two", Status: core.TaskPending},
		{ID: "t3", AssignedWorker: "kai", Description: "part three", Status: core.TaskPending},
	})

	set := worker.NewSet()
	registerAll(set, map[string]core.Worker{
		"aria": completing("part one done"),
		"zara": erroring("backend unavailable"),
		"kai":  completing("part three done"),
	})

	exec := NewExecutor(registry, set)
	sink := stream.NewChannelSink(64)

	res := exec.Execute(context.Background(), "wf_1", sink)

	assert.True(t, res.Success, "one failed worker must not fail the workflow")
	assert.Equal(t, "2/3 workers succeeded", res.Message)
	assert.Equal(t, core.WorkflowCompleted, res.Status)
	require.Len(t, res.Results, 3)

	failed, ok := resultFor(res.Results, "t2")
	require.True(t, ok)
	assert.Equal(t, core.TaskFailed, failed.Status)
	assert.Equal(t, core.FailureInvocation, failed.Reason)
	assert.Equal(t, "backend unavailable", failed.Error)

	wf, err := registry.Get("wf_1")
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowCompleted, wf.Status)

	terminals := 0
	for _, ev := range drain(sink) {
		if ev.IsTerminal() {
			terminals++
		}
	}
	assert.Equal(t, 3, terminals, "exactly one terminal event per task")
}

func TestExecuteDependencySkip(t *testing.T) {
	registry := NewRegistry()
	stageWorkflow(registry, "wf_1", []core.Task{
		{ID: "t1", AssignedWorker: "aria", Status: core.TaskPending},
		{ID: "t2", AssignedWorker: "zara", Dependencies: []string{"t1"}, Status: core.TaskPending},
	})

	set := worker.NewSet()
	registerAll(set, map[string]core.Worker{
		"aria": erroring("boom"),
		"zara": completing("never runs"),
	})

	exec := NewExecutor(registry, set)
	sink := stream.NewChannelSink(64)

	res := exec.Execute(context.Background(), "wf_1", sink)

	assert.False(t, res.Success)
	assert.Equal(t, "0/2 workers succeeded", res.Message)
	assert.Equal(t, core.WorkflowFailed, res.Status)

	skipped, ok := resultFor(res.Results, "t2")
	require.True(t, ok)
	assert.Equal(t, core.TaskSkipped, skipped.Status)

	wf, err := registry.Get("wf_1")
	require.NoError(t, err)
	task, ok := wf.Task("t2")
	require.True(t, ok)
	assert.Equal(t, core.TaskSkipped, task.Status)
}

func TestExecuteDuplicateIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	stageWorkflow(registry, "wf_1", []core.Task{
		{ID: "t1", AssignedWorker: "aria", Status: core.TaskPending},
	})

	set := worker.NewSet()
	registerAll(set, map[string]core.Worker{"aria": completing("done")})
	exec := NewExecutor(registry, set)

	first := exec.Execute(context.Background(), "wf_1", stream.NewChannelSink(16))
	require.True(t, first.Success)

	second := exec.Execute(context.Background(), "wf_1", stream.NewChannelSink(16))
	assert.True(t, second.Success, "duplicate execute reports the completed state")
	assert.Equal(t, core.WorkflowCompleted, second.Status)
	assert.Equal(t, "workflow already executed", second.Message)
	require.Len(t, second.Results, 1, "results are not duplicated")
}

func TestExecuteConcurrentDuplicatesStayIdempotent(t *testing.T) {
	registry := NewRegistry()
	stageWorkflow(registry, "wf_1", []core.Task{
		{ID: "t1", AssignedWorker: "aria", Status: core.TaskPending},
	})

	slow := workerFunc(func(_ context.Context, task core.Task, _ []core.Message, config core.WorkerConfig) (<-chan core.StreamEvent, error) {
		out := make(chan core.StreamEvent, 2)
		go func() {
			defer close(out)
			out <- core.NewStartEvent(task.ID, config.ID)
			time.Sleep(5 * time.Millisecond)
			out <- core.NewCompletionEvent(task.ID, config.ID, "done")
		}()
		return out, nil
	})

	set := worker.NewSet()
	registerAll(set, map[string]core.Worker{"aria": slow})
	exec := NewExecutor(registry, set)

	const callers = 16
	results := make([]Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = exec.Execute(context.Background(), "wf_1", stream.NewChannelSink(16))
		}()
	}
	wg.Wait()

	// exactly one caller runs the workflow; every other caller gets one of
	// the two idempotent replies and never a status-transition error
	ran := 0
	for _, res := range results {
		switch res.Message {
		case "1/1 workers succeeded":
			ran++
		case "execution already in progress", "workflow already executed":
		default:
			t.Fatalf("unexpected duplicate-execute message %q", res.Message)
		}
	}
	assert.Equal(t, 1, ran)

	wf, err := registry.Get("wf_1")
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowCompleted, wf.Status)
	require.Len(t, wf.Results, 1, "the workflow ran exactly once")
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	exec := NewExecutor(NewRegistry(), worker.NewSet())
	res := exec.Execute(context.Background(), "ghost", stream.NewChannelSink(1))
	assert.False(t, res.Success)
	assert.Equal(t, "workflow not found", res.Message)
}

func TestExecuteValidatorGate(t *testing.T) {
	registry := NewRegistry()
	stageWorkflow(registry, "wf_1", []core.Task{
		{ID: "t1", AssignedWorker: "aria", Status: core.TaskPending},
		{ID: "t2", AssignedWorker: "zara", Status: core.TaskPending},
	})

	set := worker.NewSet()
	registerAll(set, map[string]core.Worker{
		// auto-fixable finding: accepted with the fix applied
		"aria": completing("call useUser() to load the profile"),
		// critical finding with no safe rewrite: routed to manual review
		"zara": completing("then run eval(payload) on the server"),
	})

	store := artifact.NewInMemoryWriter()
	exec := NewExecutor(registry, set, func(o *ExecutorOptions) {
		o.Artifacts = store
	})

	res := exec.Execute(context.Background(), "wf_1", stream.NewChannelSink(64))

	fixed, ok := resultFor(res.Results, "t1")
	require.True(t, ok)
	assert.Equal(t, core.TaskSucceeded, fixed.Status)
	assert.Contains(t, fixed.Output, "useAuth()")
	assert.NotContains(t, fixed.Output, "useUser()")
	require.NotEmpty(t, fixed.Findings)
	assert.True(t, fixed.Findings[0].AutoFixApplied)

	blocked, ok := resultFor(res.Results, "t2")
	require.True(t, ok)
	assert.Equal(t, core.TaskFailed, blocked.Status)
	assert.Equal(t, core.FailureValidation, blocked.Reason)

	arts, err := store.ListByWorkflow(context.Background(), "wf_1")
	require.NoError(t, err)
	require.Len(t, arts, 1, "only the accepted artifact is recorded")
	assert.Contains(t, arts[0].Content, "useAuth()")
}

func TestExecuteTraceFlowsToDownstreamTasks(t *testing.T) {
	registry := NewRegistry()
	stageWorkflow(registry, "wf_1", []core.Task{
		{ID: "t1", AssignedWorker: "aria", Status: core.TaskPending},
		{ID: "t2", AssignedWorker: "zara", Dependencies: []string{"t1"}, Status: core.TaskPending},
	})

	var (
		mu   sync.Mutex
		seen []core.Message
	)
	capture := workerFunc(func(_ context.Context, task core.Task, history []core.Message, config core.WorkerConfig) (<-chan core.StreamEvent, error) {
		mu.Lock()
		seen = append([]core.Message(nil), history...)
		mu.Unlock()
		out := make(chan core.StreamEvent, 2)
		out <- core.NewStartEvent(task.ID, config.ID)
		out <- core.NewCompletionEvent(task.ID, config.ID, "zara done")
		close(out)
		return out, nil
	})

	set := worker.NewSet()
	registerAll(set, map[string]core.Worker{
		"aria": completing("schema migrated"),
		"zara": capture,
	})

	mem := memory.New()
	exec := NewExecutor(registry, set, func(o *ExecutorOptions) {
		o.Memory = mem
	})

	res := exec.Execute(context.Background(), "wf_1", stream.NewChannelSink(64))
	require.True(t, res.Success)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1, "downstream task receives the workflow trace")
	assert.Contains(t, seen[0].Text, "[aria] schema migrated")
}

func TestExecuteConsumerDisconnect(t *testing.T) {
	registry := NewRegistry()
	stageWorkflow(registry, "wf_1", []core.Task{
		{ID: "t1", AssignedWorker: "aria", Status: core.TaskPending},
		{ID: "t2", AssignedWorker: "zara", Dependencies: []string{"t1"}, Status: core.TaskPending},
	})

	set := worker.NewSet()
	registerAll(set, map[string]core.Worker{
		"aria": completing("never delivered"),
		"zara": completing("never runs"),
	})

	exec := NewExecutor(registry, set)
	sink := stream.NewChannelSink(16)
	sink.Close() // consumer gone before execution starts

	res := exec.Execute(context.Background(), "wf_1", sink)

	assert.False(t, res.Success)
	assert.Equal(t, core.WorkflowFailed, res.Status)

	inflight, ok := resultFor(res.Results, "t1")
	require.True(t, ok)
	assert.Equal(t, core.TaskFailed, inflight.Status)
	assert.Equal(t, core.FailureCancelled, inflight.Reason)

	skipped, ok := resultFor(res.Results, "t2")
	require.True(t, ok)
	assert.Equal(t, core.TaskSkipped, skipped.Status)
	assert.Equal(t, core.FailureCancelled, skipped.Reason)
}

func TestExecuteInactivityTimeout(t *testing.T) {
	registry := NewRegistry()
	stageWorkflow(registry, "wf_1", []core.Task{
		{ID: "t1", AssignedWorker: "aria", Status: core.TaskPending},
	})

	silent := workerFunc(func(ctx context.Context, _ core.Task, _ []core.Message, _ core.WorkerConfig) (<-chan core.StreamEvent, error) {
		out := make(chan core.StreamEvent)
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out, nil
	})

	set := worker.NewSet()
	registerAll(set, map[string]core.Worker{"aria": silent})

	exec := NewExecutor(registry, set, func(o *ExecutorOptions) {
		o.InactivityTimeout = 30 * time.Millisecond
	})

	res := exec.Execute(context.Background(), "wf_1", stream.NewChannelSink(16))

	assert.False(t, res.Success)
	timedOut, ok := resultFor(res.Results, "t1")
	require.True(t, ok)
	assert.Equal(t, core.TaskFailed, timedOut.Status)
	assert.Equal(t, core.FailureTimeout, timedOut.Reason)
}

func TestExecuteCancelledContext(t *testing.T) {
	registry := NewRegistry()
	stageWorkflow(registry, "wf_1", []core.Task{
		{ID: "t1", AssignedWorker: "aria", Status: core.TaskPending},
	})

	set := worker.NewSet()
	registerAll(set, map[string]core.Worker{"aria": completing("never runs")})

	exec := NewExecutor(registry, set)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := exec.Execute(ctx, "wf_1", stream.NewChannelSink(16))

	assert.False(t, res.Success)
	assert.Equal(t, core.WorkflowFailed, res.Status)
	skipped, ok := resultFor(res.Results, "t1")
	require.True(t, ok)
	assert.Equal(t, core.TaskSkipped, skipped.Status)
}
