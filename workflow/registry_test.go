package workflow

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
)

func stagedWorkflow(id string) *core.Workflow {
	return &core.Workflow{
		ID:      id,
		Workers: []string{"aria", "zara"},
		Tasks: []core.Task{
			{ID: id + "_task_1", AssignedWorker: "aria", Status: core.TaskPending},
			{ID: id + "_task_2", AssignedWorker: "zara", Status: core.TaskPending},
		},
		Status:    core.WorkflowStaged,
		CreatedAt: time.Now().UTC(),
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Put(stagedWorkflow("wf_1"))

	got, err := r.Get("wf_1")
	require.NoError(t, err)

	// mutations of the copy must not leak into the store
	got.Title = "mutated"
	got.Tasks[0].Status = core.TaskFailed

	again, err := r.Get("wf_1")
	require.NoError(t, err)
	assert.Empty(t, again.Title)
	assert.Equal(t, core.TaskPending, again.Tasks[0].Status)
}

func TestRegistryNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.UpdateStatus("ghost", core.WorkflowExecuting), ErrNotFound)
	assert.False(t, r.TryBeginExecute("ghost"))
}

func TestRegistryStatusMonotonic(t *testing.T) {
	r := NewRegistry()
	r.Put(stagedWorkflow("wf_1"))

	// staged may not jump straight to a terminal state
	require.Error(t, r.UpdateStatus("wf_1", core.WorkflowCompleted))

	require.NoError(t, r.UpdateStatus("wf_1", core.WorkflowExecuting))
	require.NoError(t, r.UpdateStatus("wf_1", core.WorkflowCompleted))

	// terminal states are never left
	require.Error(t, r.UpdateStatus("wf_1", core.WorkflowExecuting))
	require.Error(t, r.UpdateStatus("wf_1", core.WorkflowFailed))
}

func TestRegistryExecuteGuard(t *testing.T) {
	r := NewRegistry()
	r.Put(stagedWorkflow("wf_1"))

	require.True(t, r.TryBeginExecute("wf_1"))
	assert.False(t, r.TryBeginExecute("wf_1"), "second acquisition must fail")

	r.EndExecute("wf_1")
	assert.True(t, r.TryBeginExecute("wf_1"))
}

func TestRegistryExecuteGuardConcurrent(t *testing.T) {
	r := NewRegistry()
	r.Put(stagedWorkflow("wf_1"))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryBeginExecute("wf_1") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins, "exactly one goroutine may own execution")
}

func TestRegistryListNewestFirst(t *testing.T) {
	r := NewRegistry()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		wf := stagedWorkflow(fmt.Sprintf("wf_%d", i))
		wf.CreatedAt = base.Add(time.Duration(i) * time.Second)
		r.Put(wf)
	}

	got := r.List()
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].CreatedAt.After(got[i].CreatedAt))
	}
}

func TestRegistryTaskUpdatesAndResults(t *testing.T) {
	r := NewRegistry()
	r.Put(stagedWorkflow("wf_1"))

	require.NoError(t, r.UpdateTaskStatus("wf_1", "wf_1_task_1", core.TaskRunning))
	require.Error(t, r.UpdateTaskStatus("wf_1", "ghost_task", core.TaskRunning))

	require.NoError(t, r.AppendResult("wf_1", core.TaskResult{
		TaskID: "wf_1_task_1", WorkerID: "aria", Status: core.TaskSucceeded,
	}))

	wf, err := r.Get("wf_1")
	require.NoError(t, err)
	assert.Equal(t, core.TaskRunning, wf.Tasks[0].Status)
	require.Len(t, wf.Results, 1)
	assert.Equal(t, core.TaskSucceeded, wf.Results[0].Status)
}
