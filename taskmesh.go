// Package taskmesh provides a high-level façade over the orchestration
// engine: coordination-intent analysis, workflow staging and streaming
// execution across a roster of configured workers. Most applications interact
// with this package by:
//  1. Creating a TaskMesh via New() (optionally overriding default in-memory services)
//  2. Registering worker personalities (a completion backend plus a WorkerConfig)
//  3. Calling Analyze to stage workflows and Execute / ExecuteStream to run them
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable memory store,
// a persistent artifact writer and a structured logger.
package taskmesh

import (
	"context"
	"time"

	"github.com/hupe1980/taskmesh/artifact"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/memory"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/stream"
	"github.com/hupe1980/taskmesh/tool"
	"github.com/hupe1980/taskmesh/validate"
	"github.com/hupe1980/taskmesh/worker"
	"github.com/hupe1980/taskmesh/workflow"
)

// Options configures the TaskMesh instance.
type Options struct {
	// CoordinatorID designates the worker allowed to stage workflows.
	CoordinatorID string

	// InactivityTimeout fails a task that produced no event for this long.
	InactivityTimeout time.Duration

	// Validator gates every produced artifact (defaults to the standard
	// rule table).
	Validator *validate.Validator

	// Memory is the shared conversation/task memory (defaults to an
	// in-memory bounded cache without a durable tier).
	Memory *memory.Service

	// Artifacts receives accepted artifacts (defaults to in-memory).
	Artifacts artifact.Writer

	// Tools is the shared tool registry workers draw from.
	Tools *tool.Registry

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// TaskMesh is the high-level façade aggregating the engine and its services.
type TaskMesh struct {
	workers *worker.Set
	tools   *tool.Registry
	engine  *engine.Engine
	logger  logging.Logger
}

// New creates a TaskMesh instance with optional overrides. Any unset service
// defaults to an in-memory implementation.
func New(optFns ...func(o *Options)) *TaskMesh {
	opts := Options{
		CoordinatorID:     "coordinator",
		InactivityTimeout: 2 * time.Minute,
		Validator:         validate.New(),
		Memory:            memory.New(),
		Artifacts:         artifact.NewInMemoryWriter(),
		Tools:             tool.NewRegistry(),
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	workers := worker.NewSet()
	eng := engine.New(workers, func(o *engine.Options) {
		o.CoordinatorID = opts.CoordinatorID
		o.Logger = opts.Logger
		o.ExecutorOptions = []func(o *workflow.ExecutorOptions){
			func(eo *workflow.ExecutorOptions) {
				eo.InactivityTimeout = opts.InactivityTimeout
				eo.Validator = opts.Validator
				eo.Memory = opts.Memory
				eo.Artifacts = opts.Artifacts
				eo.Logger = opts.Logger
			},
		}
	})

	return &TaskMesh{
		workers: workers,
		tools:   opts.Tools,
		engine:  eng,
		logger:  opts.Logger,
	}
}

// RegisterWorker adds a worker personality backed by the given completion
// backend. The personality is pure configuration; every worker runs through
// the same execution path.
func (t *TaskMesh) RegisterWorker(config core.WorkerConfig, backend model.Model) {
	t.workers.Register(config, worker.New(backend, t.tools, func(o *worker.Options) {
		o.Logger = t.logger
	}))
}

// Tools exposes the shared tool registry for registration.
func (t *TaskMesh) Tools() *tool.Registry { return t.tools }

// Analyze scans text for coordination intent and stages a workflow when the
// caller is the coordinator and at least two known workers are named.
func (t *TaskMesh) Analyze(text, callerWorkerID string) (engine.WorkflowAnalysis, error) {
	return t.engine.Analyze(text, callerWorkerID)
}

// ExecuteStream runs a staged workflow, streaming events to sink.
func (t *TaskMesh) ExecuteStream(ctx context.Context, workflowID string, sink stream.Sink) workflow.Result {
	return t.engine.Execute(ctx, workflowID, sink)
}

// Execute runs a staged workflow synchronously and returns the aggregate
// result together with the buffered event sequence.
func (t *TaskMesh) Execute(ctx context.Context, workflowID string) (workflow.Result, []core.StreamEvent) {
	sink := stream.NewChannelSink(256)
	done := make(chan workflow.Result, 1)
	go func() {
		done <- t.engine.Execute(ctx, workflowID, sink)
		sink.Close()
	}()

	var events []core.StreamEvent
	for ev := range sink.Events() {
		events = append(events, ev)
	}
	return <-done, events
}

// Workflow returns a copy of a stored workflow or workflow.ErrNotFound.
func (t *TaskMesh) Workflow(id string) (*core.Workflow, error) {
	return t.engine.Workflow(id)
}

// Workflows returns copies of all stored workflows, newest first.
func (t *TaskMesh) Workflows() []*core.Workflow {
	return t.engine.Workflows()
}
