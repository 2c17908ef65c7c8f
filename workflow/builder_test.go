package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/intent"
)

func TestBuildStagesOneTaskPerWorker(t *testing.T) {
	in := intent.Intent{
		HasIntent:        true,
		Confidence:       0.95,
		Workers:          []string{"aria", "zara"},
		TaskDescriptions: []string{"redesign the dashboard"},
		Title:            "Dashboard Redesign",
	}

	wf := NewBuilder().Build(in, "I'll coordinate Aria and Zara to redesign the dashboard")

	assert.True(t, strings.HasPrefix(wf.ID, "wf_"))
	assert.Equal(t, "Dashboard Redesign", wf.Title)
	assert.Equal(t, core.WorkflowStaged, wf.Status)
	assert.Equal(t, core.PriorityMedium, wf.Priority)
	assert.Equal(t, 30*time.Minute, wf.EstimatedDuration)

	require.Len(t, wf.Tasks, 2)
	for i, task := range wf.Tasks {
		assert.Equal(t, in.Workers[i], task.AssignedWorker)
		assert.Equal(t, "redesign the dashboard", task.Description)
		assert.Equal(t, core.TaskPending, task.Status)
		assert.True(t, strings.HasPrefix(task.ID, wf.ID+"_task_"))
		assert.Empty(t, task.Dependencies, "tasks are independent by default")
	}
}

func TestDerivePriority(t *testing.T) {
	tests := []struct {
		text string
		want core.Priority
	}{
		{"this is URGENT, get aria and zara on it", core.PriorityCritical},
		{"important: fix the search index asap", core.PriorityHigh},
		{"low priority cleanup when possible", core.PriorityLow},
		{"coordinate aria and zara to tidy the docs", core.PriorityMedium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, derivePriority(tt.text), tt.text)
	}
}

func TestNewWorkflowIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewWorkflowID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
