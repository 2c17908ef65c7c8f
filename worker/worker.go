// Package worker contains the uniform execution path every worker
// personality runs through. A Configured worker pairs an opaque completion
// backend with a WorkerConfig; personalities differ only by configuration,
// never by type. Each invocation emits an ordered event stream that
// terminates with exactly one completion or error event.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/tool"
)

// Options configure a Configured worker.
type Options struct {
	// MaxRounds caps backend round-trips (tool call cycles) per invocation.
	MaxRounds int
	// EventBuffer sets the channel buffering for emitted events.
	EventBuffer int
	// Logger receives invocation diagnostics.
	Logger logging.Logger
}

// Configured is the single execution path behind the core.Worker interface.
type Configured struct {
	backend   model.Model
	tools     *tool.Registry
	maxRounds int
	buffer    int
	logger    logging.Logger
}

// New builds a Configured worker around a completion backend and a tool
// registry. Defaults: 8 rounds, 64 event buffer, NoOp logger.
func New(backend model.Model, tools *tool.Registry, optFns ...func(o *Options)) *Configured {
	opts := Options{MaxRounds: 8, EventBuffer: 64, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if tools == nil {
		tools = tool.NewRegistry()
	}
	return &Configured{
		backend:   backend,
		tools:     tools,
		maxRounds: opts.MaxRounds,
		buffer:    opts.EventBuffer,
		logger:    opts.Logger,
	}
}

// Invoke implements core.Worker. The returned channel carries events in
// issuance order and is closed after the single terminal event.
func (w *Configured) Invoke(
	ctx context.Context,
	task core.Task,
	history []core.Message,
	config core.WorkerConfig,
) (<-chan core.StreamEvent, error) {
	if !config.Has(core.CapReceiveTask) {
		return nil, fmt.Errorf("worker %s cannot receive tasks", config.ID)
	}

	out := make(chan core.StreamEvent, w.buffer)
	go func() {
		defer close(out)
		w.run(ctx, task, history, config, out)
	}()
	return out, nil
}

// emit delivers the event, preferring delivery while buffer space remains but
// never blocking past cancellation. Returns false when the invocation context
// is done and the event was dropped; emission must stop at that point.
func emit(ctx context.Context, out chan<- core.StreamEvent, ev core.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	default:
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// run drives the backend round-trip loop. All emissions happen from this
// single goroutine, so ordering and the one-terminal-event guarantee hold by
// construction.
func (w *Configured) run(
	ctx context.Context,
	task core.Task,
	history []core.Message,
	config core.WorkerConfig,
	out chan<- core.StreamEvent,
) {
	if !emit(ctx, out, core.NewStartEvent(task.ID, config.ID)) {
		return
	}

	messages := make([]model.Message, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, model.Message{Role: msg.Role, Text: msg.Text})
	}
	messages = append(messages, model.Message{Role: "user", Text: task.Description})

	var toolDefs []model.ToolDefinition
	if config.Has(core.CapRequestTool) {
		for _, t := range w.tools.Subset(config.AllowedTools) {
			toolDefs = append(toolDefs, model.ToolDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			})
		}
	}

	streaming := config.Has(core.CapStreamText)

	for round := 0; round < w.maxRounds; round++ {
		req := model.Request{
			System:   renderTemplate(config, task),
			Messages: messages,
			Tools:    toolDefs,
			Stream:   streaming,
		}

		final, err := w.consume(ctx, req, task, config, streaming, out)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			emit(ctx, out, core.NewErrorEvent(task.ID, config.ID, err.Error()))
			return
		}

		if len(final.ToolCalls) == 0 {
			emit(ctx, out, core.NewCompletionEvent(task.ID, config.ID, final.Text))
			return
		}

		messages = append(messages, model.Message{Role: "assistant", Text: final.Text, ToolCalls: final.ToolCalls})
		for _, call := range final.ToolCalls {
			messages = append(messages, w.executeToolCall(ctx, task, config, call, out))
		}
	}

	emit(ctx, out, core.NewErrorEvent(task.ID, config.ID, "tool round limit exceeded"))
}

// consume drains one backend generation, relaying text deltas, and returns
// the final response.
func (w *Configured) consume(
	ctx context.Context,
	req model.Request,
	task core.Task,
	config core.WorkerConfig,
	streaming bool,
	out chan<- core.StreamEvent,
) (model.Response, error) {
	respCh, errCh := w.backend.Generate(ctx, req)
	var final model.Response
	for {
		select {
		case <-ctx.Done():
			return model.Response{}, ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return model.Response{}, fmt.Errorf("backend error: %w", err)
			}
			errCh = nil
		case resp, ok := <-respCh:
			if !ok {
				return final, nil
			}
			if resp.Partial {
				if streaming && resp.Text != "" {
					if !emit(ctx, out, core.NewTextDeltaEvent(task.ID, config.ID, resp.Text)) {
						return model.Response{}, ctx.Err()
					}
				}
				continue
			}
			final = resp
		}
	}
}

// executeToolCall runs one requested tool, emitting tool_start /
// tool_complete / tool_error, and returns the tool-role message carrying the
// result back to the backend.
func (w *Configured) executeToolCall(
	ctx context.Context,
	task core.Task,
	config core.WorkerConfig,
	call model.ToolCall,
	out chan<- core.StreamEvent,
) model.Message {
	reply := model.Message{Role: "tool", ToolCallID: call.ID}

	if !config.AllowsTool(call.Name) {
		emit(ctx, out, core.NewToolErrorEvent(task.ID, config.ID, call.Name))
		reply.Text = fmt.Sprintf("tool %q is not in this worker's allowed set", call.Name)
		return reply
	}
	t, ok := w.tools.Get(call.Name)
	if !ok {
		emit(ctx, out, core.NewToolErrorEvent(task.ID, config.ID, call.Name))
		reply.Text = fmt.Sprintf("tool %q is not registered", call.Name)
		return reply
	}

	var args map[string]interface{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			emit(ctx, out, core.NewToolErrorEvent(task.ID, config.ID, call.Name))
			reply.Text = fmt.Sprintf("invalid tool arguments: %v", err)
			return reply
		}
	}

	emit(ctx, out, core.NewToolStartEvent(task.ID, config.ID, call.Name))
	start := time.Now()
	result, err := t.Call(ctx, args)
	if err != nil {
		w.logger.Warn("tool %s failed for worker %s: %v", call.Name, config.ID, err)
		emit(ctx, out, core.NewToolErrorEvent(task.ID, config.ID, call.Name))
		reply.Text = fmt.Sprintf("tool error: %v", err)
		return reply
	}
	w.logger.Debug("tool %s completed in %s", call.Name, time.Since(start))

	text := stringifyResult(result)
	emit(ctx, out, core.NewToolCompleteEvent(task.ID, config.ID, call.Name, text))
	reply.Text = text
	return reply
}

// renderTemplate expands the personality template into the backend system
// prompt. Supported placeholders: {worker}, {task}.
func renderTemplate(config core.WorkerConfig, task core.Task) string {
	s := config.Template
	s = strings.ReplaceAll(s, "{worker}", config.ID)
	s = strings.ReplaceAll(s, "{task}", task.Description)
	return s
}

func stringifyResult(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
