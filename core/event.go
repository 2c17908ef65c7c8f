package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the StreamEvent tagged union. The vocabulary is
// part of the wire contract consumed by downstream clients and must not be
// renamed.
type EventType string

const (
	// EventStart opens a task invocation stream.
	EventStart EventType = "start"
	// EventTextDelta carries an incremental fragment of generated text.
	EventTextDelta EventType = "text_delta"
	// EventToolStart announces that a tool invocation has begun.
	EventToolStart EventType = "tool_start"
	// EventToolComplete carries the result of a finished tool invocation.
	EventToolComplete EventType = "tool_complete"
	// EventToolError reports a failed tool invocation. Non-terminal; the
	// worker may continue after a tool failure.
	EventToolError EventType = "tool_error"
	// EventError terminates the stream with a failure message.
	EventError EventType = "error"
	// EventCompletion terminates the stream successfully with a summary.
	EventCompletion EventType = "completion"
)

// StreamEvent is the unit of incremental output pushed from a worker
// invocation to a consumer. After emission it should be treated as immutable.
//
// Contract (enforced by stream.Emitter at the transport boundary):
//   - events for one invocation are delivered in emission order
//   - exactly one terminal event (completion or error) is emitted
//   - no event follows the terminal event
type StreamEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	WorkerID  string    `json:"worker_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Result    string    `json:"result,omitempty"`
	Message   string    `json:"message,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewID generates a unique identifier for events and other correlation ids.
func NewID() string { return uuid.NewString() }

func newEvent(t EventType, taskID, workerID string) StreamEvent {
	return StreamEvent{
		ID:        NewID(),
		Type:      t,
		TaskID:    taskID,
		WorkerID:  workerID,
		Timestamp: time.Now().UTC(),
	}
}

// NewStartEvent opens the event stream for a task invocation.
func NewStartEvent(taskID, workerID string) StreamEvent {
	return newEvent(EventStart, taskID, workerID)
}

// NewTextDeltaEvent carries an incremental text fragment.
func NewTextDeltaEvent(taskID, workerID, content string) StreamEvent {
	e := newEvent(EventTextDelta, taskID, workerID)
	e.Content = content
	return e
}

// NewToolStartEvent announces the start of a named tool invocation.
func NewToolStartEvent(taskID, workerID, tool string) StreamEvent {
	e := newEvent(EventToolStart, taskID, workerID)
	e.Tool = tool
	return e
}

// NewToolCompleteEvent records the result of a finished tool invocation.
func NewToolCompleteEvent(taskID, workerID, tool, result string) StreamEvent {
	e := newEvent(EventToolComplete, taskID, workerID)
	e.Tool = tool
	e.Result = result
	return e
}

// NewToolErrorEvent records a failed tool invocation.
func NewToolErrorEvent(taskID, workerID, tool string) StreamEvent {
	e := newEvent(EventToolError, taskID, workerID)
	e.Tool = tool
	return e
}

// NewErrorEvent terminates a stream with a failure message.
func NewErrorEvent(taskID, workerID, message string) StreamEvent {
	e := newEvent(EventError, taskID, workerID)
	e.Message = message
	return e
}

// NewCompletionEvent terminates a stream successfully with a summary.
func NewCompletionEvent(taskID, workerID, summary string) StreamEvent {
	e := newEvent(EventCompletion, taskID, workerID)
	e.Summary = summary
	return e
}

// IsTerminal reports whether this event closes its invocation stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventCompletion || e.Type == EventError
}
