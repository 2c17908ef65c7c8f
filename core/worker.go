package core

import "context"

// Capability enumerates what a configured worker is allowed to do during an
// invocation. Concrete worker "personalities" are pure configuration plugged
// into one execution path, never distinct types.
type Capability string

const (
	// CapReceiveTask allows the worker to accept task dispatches.
	CapReceiveTask Capability = "receive-task"
	// CapStreamText allows the worker to emit text_delta events.
	CapStreamText Capability = "stream-text"
	// CapRequestTool allows the worker to invoke tools from its allowed set.
	CapRequestTool Capability = "request-tool"
	// CapTerminate allows the worker to end its own stream. Always granted
	// in practice; listed so capability sets are explicit.
	CapTerminate Capability = "terminate"
)

// WorkerConfig describes a worker personality as data: a behavior template
// rendered into the backend system prompt, the tools the worker may request
// and its capability set.
type WorkerConfig struct {
	ID           string       `json:"id"`
	Template     string       `json:"template"`
	AllowedTools []string     `json:"allowed_tools,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// Has reports whether the config grants the given capability. An empty
// capability set grants everything, matching the default personality shape.
func (c WorkerConfig) Has(cap Capability) bool {
	if len(c.Capabilities) == 0 {
		return true
	}
	for _, have := range c.Capabilities {
		if have == cap {
			return true
		}
	}
	return false
}

// AllowsTool reports whether the named tool is in the allowed set.
func (c WorkerConfig) AllowsTool(name string) bool {
	for _, t := range c.AllowedTools {
		if t == name {
			return true
		}
	}
	return false
}

// Message is one unit of conversation history handed to a worker invocation.
type Message struct {
	Role string `json:"role"` // "user", "assistant", "system", "tool"
	Text string `json:"text"`
}

// Worker is the uniform abstraction every pluggable execution backend
// implements: accept a task, emit a sequence of stream events on the returned
// channel, terminate exactly once. The channel is closed after the terminal
// event. Implementations must stop emitting when ctx is cancelled.
type Worker interface {
	Invoke(ctx context.Context, task Task, history []Message, config WorkerConfig) (<-chan StreamEvent, error)
}
