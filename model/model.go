package model

import (
	"context"
	"fmt"
)

// ToolCall represents a function call request surfaced by a completion
// backend. Unified across vendors so the worker runtime does not need
// per-provider branching.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string of arguments
}

// ToolDefinition declaratively exposes a callable function to the backend.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Message is one turn of conversation passed to the backend.
type Message struct {
	Role string `json:"role"` // "user", "assistant", "tool"
	Text string `json:"text"`
	// ToolCallID links a tool-role message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolCalls carries the calls issued by an assistant turn.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Request captures the normalized backend input produced by the worker runtime.
type Request struct {
	System   string           `json:"system"`
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Stream   bool             `json:"stream,omitempty"`
}

// Response is a (partial or final) chunk emitted by a backend. Partial
// responses carry incremental text; the final response carries the full
// accumulated text plus any tool calls.
type Response struct {
	Partial      bool       `json:"partial"`
	Text         string     `json:"text"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", etc.
}

// Info contains metadata about a backend implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the opaque completion backend collaborator consumed per worker
// invocation. The response channel is closed after the final response; the
// error channel carries at most one terminal error then closes.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the backend implementation.
	Info() Info
}

// Mock is a lightweight in-memory Model useful for tests. It streams its
// canned completion rune by rune when Stream is set, and can script a single
// round of tool calls before the final text.
type Mock struct {
	info      Info
	responses map[string]string
	toolCalls map[string][]ToolCall
	failWith  error
}

// NewMock constructs a Mock with tool support enabled.
func NewMock(name string) *Mock {
	return &Mock{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]string),
		toolCalls: make(map[string][]ToolCall),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *Mock) AddResponse(prompt, response string) { m.responses[prompt] = response }

// AddToolCalls scripts tool calls to be issued when prompt is the last user
// input and no tool responses are present yet.
func (m *Mock) AddToolCalls(prompt string, calls ...ToolCall) { m.toolCalls[prompt] = calls }

// FailWith makes every Generate call fail with err.
func (m *Mock) FailWith(err error) { m.failWith = err }

// Generate implements Model.
func (m *Mock) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if m.failWith != nil {
			errCh <- m.failWith
			return
		}
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}

		prompt, sawToolResponse := lastUserPrompt(req.Messages)
		if calls, ok := m.toolCalls[prompt]; ok && !sawToolResponse {
			respCh <- Response{ToolCalls: calls, FinishReason: "tool_calls"}
			return
		}

		full := m.responses[prompt]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", prompt)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		respCh <- Response{Text: full, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *Mock) Info() Info { return m.info }

func lastUserPrompt(messages []Message) (prompt string, sawToolResponse bool) {
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			prompt = msg.Text
		case "tool":
			sawToolResponse = true
		}
	}
	return prompt, sawToolResponse
}
