// Package stream implements the push channel carrying StreamEvents from
// worker invocations to consumers. Every write is a "safe write": when the
// consumer has disconnected the write reports failure instead of panicking,
// and emitters stop scheduling further writes. The package also enforces the
// terminal-event invariant at the transport boundary: one terminal event per
// invocation, nothing after it.
package stream

import (
	"sync"

	"github.com/hupe1980/taskmesh/core"
)

// Sink is a one-way, push-based event channel. Write returns false when the
// downstream consumer is gone; it must never panic. Close is idempotent.
type Sink interface {
	Write(core.StreamEvent) bool
	Close()
}

// ChannelSink delivers events over an in-process Go channel. It is the
// default transport for tests and embedded use.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan core.StreamEvent
	closed bool
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan core.StreamEvent, buffer)}
}

// Events exposes the receive side of the sink.
func (s *ChannelSink) Events() <-chan core.StreamEvent { return s.ch }

// Write delivers the event unless the sink is closed. A full buffer blocks;
// use an adequate buffer or drain promptly.
func (s *ChannelSink) Write(e core.StreamEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.ch <- e
	return true
}

// Close marks the sink closed and closes the underlying channel.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Emitter serializes writes for a single task invocation and enforces the
// protocol invariants: events are forwarded in issuance order, exactly one
// terminal event passes through, and nothing is forwarded after it. Once a
// safe write fails the emitter considers the consumer gone and drops all
// further events.
type Emitter struct {
	mu         sync.Mutex
	sink       Sink
	terminated bool
	closed     bool
}

// NewEmitter wraps a sink for one task invocation.
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

// Emit forwards the event, honoring the terminal-event invariant. It returns
// false when the event was suppressed or the consumer is gone.
func (e *Emitter) Emit(ev core.StreamEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminated || e.closed {
		return false
	}
	if !e.sink.Write(ev) {
		e.closed = true
		return false
	}
	if ev.IsTerminal() {
		e.terminated = true
	}
	return true
}

// Closed reports whether a safe write has failed, i.e. the consumer
// disconnected. The executor uses this as its only cancellation signal from
// the transport layer.
func (e *Emitter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Terminated reports whether the terminal event has been emitted.
func (e *Emitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}
