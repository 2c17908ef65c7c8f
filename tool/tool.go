// Package tool implements the function calling subsystem that lets workers
// invoke structured capabilities (APIs, computations, lookups) during a task.
// Tools are registered centrally; each worker's allowed set is part of its
// WorkerConfig and is enforced by the worker runtime, not by this package.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool defines a callable capability exposed to workers.
//
// Implementations should provide clear, descriptive names (snake_case
// recommended), define a proper JSON schema for parameters, handle errors
// gracefully and be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description is provided to the completion backend so it understands
	// when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]interface{}

	// Call executes the tool with arguments parsed from JSON.
	Call(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Error represents errors that occur during tool execution.
type Error struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewError creates a new tool Error.
func NewError(tool, message string) *Error {
	return &Error{Tool: tool, Message: message}
}

// Func adapts a plain function into a Tool.
type Func struct {
	name        string
	description string
	parameters  map[string]interface{}
	fn          func(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// NewFunc builds a Tool from a function plus metadata.
func NewFunc(
	name, description string,
	parameters map[string]interface{},
	fn func(ctx context.Context, args map[string]interface{}) (interface{}, error),
) *Func {
	if parameters == nil {
		parameters = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return &Func{name: name, description: description, parameters: parameters, fn: fn}
}

// Name returns the tool identifier.
func (f *Func) Name() string { return f.name }

// Description returns the tool description.
func (f *Func) Description() string { return f.description }

// Parameters returns the JSON schema for the tool arguments.
func (f *Func) Parameters() map[string]interface{} { return f.parameters }

// Call invokes the wrapped function.
func (f *Func) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return f.fn(ctx, args)
}

// Registry holds the tools available to the worker runtime. Safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named tool or false.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subset returns the registered tools whose names appear in allowed,
// preserving the order of allowed. Unknown names are skipped.
func (r *Registry) Subset(allowed []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(allowed))
	for _, name := range allowed {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}
