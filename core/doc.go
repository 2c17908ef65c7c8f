// Package core defines the shared domain types and contracts of TaskMesh:
// streamed events, workflows and tasks, worker configuration, validation
// findings and the Worker interface every pluggable execution backend
// implements. Higher level packages (intent, workflow, worker, stream,
// validate, memory, engine) depend on core; core depends on nothing but the
// standard library and the id generator.
package core
