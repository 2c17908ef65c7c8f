package stream

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/hupe1980/taskmesh/core"
)

// NDJSONSink writes newline-delimited JSON events to an io.Writer, flushing
// after every event when the writer supports http.Flusher. It is the HTTP
// transport for the streaming channel: one JSON object per line, event
// vocabulary as defined in core.
type NDJSONSink struct {
	mu     sync.Mutex
	w      io.Writer
	enc    *json.Encoder
	closed bool
}

// NewNDJSONSink wraps the writer. Pass an http.ResponseWriter (or any writer
// implementing http.Flusher) to get per-event flushing.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{w: w, enc: json.NewEncoder(w)}
}

// Write encodes the event followed by a newline. A write error marks the
// sink closed; subsequent writes return false without touching the writer.
func (s *NDJSONSink) Write(e core.StreamEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if err := s.enc.Encode(e); err != nil {
		s.closed = true
		return false
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return true
}

// Close marks the sink closed. The underlying writer's lifecycle belongs to
// the caller (the HTTP server closes the response).
func (s *NDJSONSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
