package artifact

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/taskmesh/core"
)

func TestInMemoryWriterIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryWriter()

	a := Artifact{
		ID:         "art_1",
		WorkflowID: "wf_1",
		TaskID:     "wf_1_task_1",
		WorkerID:   "aria",
		Content:    "report",
		Findings:   []core.ValidationFinding{{RuleID: "use-user", Severity: core.SeverityHigh, AutoFixApplied: true}},
	}
	if err := store.Write(ctx, a); err != nil {
		t.Fatalf("write: %v", err)
	}

	// mutate the caller's findings slice after write
	a.Findings[0].RuleID = "mutated"

	got, err := store.Get(ctx, "art_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Findings[0].RuleID != "use-user" {
		t.Fatalf("expected stored findings to be isolated, got %q", got.Findings[0].RuleID)
	}

	// mutate the returned copy
	got.Findings[0].RuleID = "also-mutated"
	got2, _ := store.Get(ctx, "art_1")
	if got2.Findings[0].RuleID != "use-user" {
		t.Fatalf("expected isolation, got %q", got2.Findings[0].RuleID)
	}
}

func TestInMemoryWriterListByWorkflow(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryWriter()

	for i := 1; i <= 3; i++ {
		err := store.Write(ctx, Artifact{
			ID:         fmt.Sprintf("art_%d", i),
			WorkflowID: "wf_1",
			Content:    fmt.Sprintf("output %d", i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Write(ctx, Artifact{ID: "art_other", WorkflowID: "wf_2"}); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListByWorkflow(ctx, "wf_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(got))
	}
	// write order is preserved
	if got[0].ID != "art_1" || got[2].ID != "art_3" {
		t.Fatalf("unexpected order: %v", []string{got[0].ID, got[1].ID, got[2].ID})
	}

	if _, err := store.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryWriterConcurrency(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryWriter()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("art_%d", i%10)
			if err := store.Write(ctx, Artifact{ID: id, WorkflowID: "wf_1"}); err != nil {
				t.Errorf("write err: %v", err)
			}
			_, _ = store.ListByWorkflow(ctx, "wf_1")
		}()
	}
	wg.Wait()

	got, err := store.ListByWorkflow(ctx, "wf_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 artifacts, got %d", len(got))
	}
}
