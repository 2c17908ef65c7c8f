// Package engine is the public façade of taskmesh. It wires the intent
// parser, workflow builder, registry and executor behind two operations:
// Analyze stages a workflow from coordination language, Execute runs a staged
// workflow and streams its events. Embedders construct one Engine per worker
// roster and share it freely; all methods are safe for concurrent use.
package engine

import (
	"context"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/intent"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/stream"
	"github.com/hupe1980/taskmesh/worker"
	"github.com/hupe1980/taskmesh/workflow"
)

// WorkflowAnalysis is the outcome of one Analyze call. When HasWorkflow is
// false the remaining fields are zero values; a negative analysis is a normal
// result, not an error.
type WorkflowAnalysis struct {
	HasWorkflow bool           `json:"has_workflow"`
	Confidence  float64        `json:"confidence"`
	Workflow    *core.Workflow `json:"workflow,omitempty"`
	Patterns    []string       `json:"patterns,omitempty"`
}

// Options configure the Engine.
type Options struct {
	// CoordinatorID designates the single worker allowed to stage workflows.
	CoordinatorID string
	// Registry overrides the workflow store.
	Registry *workflow.Registry
	// Builder overrides workflow construction.
	Builder *workflow.Builder
	// ExecutorOptions are forwarded to the executor.
	ExecutorOptions []func(o *workflow.ExecutorOptions)
	// Logger receives engine diagnostics.
	Logger logging.Logger
}

// Engine wires the orchestration pipeline end to end.
type Engine struct {
	coordinatorID string
	workers       *worker.Set
	registry      *workflow.Registry
	builder       *workflow.Builder
	executor      *workflow.Executor
	logger        logging.Logger
}

// New constructs an Engine over a worker roster. Defaults: coordinator id
// "coordinator", fresh registry, default builder and executor.
func New(workers *worker.Set, optFns ...func(o *Options)) *Engine {
	opts := Options{
		CoordinatorID: "coordinator",
		Registry:      workflow.NewRegistry(),
		Builder:       workflow.NewBuilder(),
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		coordinatorID: opts.CoordinatorID,
		workers:       workers,
		registry:      opts.Registry,
		builder:       opts.Builder,
		executor:      workflow.NewExecutor(opts.Registry, workers, opts.ExecutorOptions...),
		logger:        opts.Logger,
	}
}

// Analyze scans text for coordination intent and, when the caller is the
// designated coordinator and at least two known workers are named, builds and
// stages a workflow. Any other combination is a negative analysis.
func (e *Engine) Analyze(text, callerWorkerID string) (WorkflowAnalysis, error) {
	if callerWorkerID != e.coordinatorID {
		return WorkflowAnalysis{}, nil
	}

	in := intent.Analyze(text, e.workers.IDs())
	if !in.HasIntent {
		return WorkflowAnalysis{}, nil
	}

	wf := e.builder.Build(in, text)
	e.registry.Put(wf)
	e.logger.Info("staged workflow %s workers=%v priority=%s", wf.ID, wf.Workers, wf.Priority)

	return WorkflowAnalysis{
		HasWorkflow: true,
		Confidence:  in.Confidence,
		Workflow:    wf.Clone(),
		Patterns:    append([]string(nil), in.Patterns...),
	}, nil
}

// Execute runs a staged workflow, streaming events to sink. Duplicate calls
// are idempotent; the result message summarizes the outcome as
// "N/M workers succeeded".
func (e *Engine) Execute(ctx context.Context, workflowID string, sink stream.Sink) workflow.Result {
	return e.executor.Execute(ctx, workflowID, sink)
}

// Workflow returns a copy of the stored workflow or workflow.ErrNotFound.
func (e *Engine) Workflow(id string) (*core.Workflow, error) {
	return e.registry.Get(id)
}

// Workflows returns copies of all stored workflows, newest first.
func (e *Engine) Workflows() []*core.Workflow {
	return e.registry.List()
}
