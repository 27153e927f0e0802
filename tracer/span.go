// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"sync"
	"time"

	"github.com/tracekit/tracescope"
)

var _ tracescope.Span = (*span)(nil)

// span represents a locally-started computation. Callers must call Finish
// when a span is complete; finishing removes the span from the tracer's
// registry, after which the span context can no longer be resolved to a
// live handle.
type span struct {
	mu sync.RWMutex

	// name is the name of the operation being measured. Some examples
	// might be "http.handler", "fileserver.upload" or "video.decompress".
	name string

	start    time.Time
	duration time.Duration
	meta     map[string]interface{}
	finished bool

	context  tracescope.SpanContext
	parentID uint64 // 0 for a trace-local root span

	tracer *Tracer
}

// Context yields the SpanContext for this Span. Note that the return
// value of Context() is still valid after a call to Finish().
func (s *span) Context() tracescope.SpanContext { return s.context }

// ParentID returns the span identifier of the span's direct parent, or 0
// when the span started a new trace.
func (s *span) ParentID() uint64 { return s.parentID }

// Name returns the operation name.
func (s *span) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// SetTag adds a tag to the span. Tags set after Finish are discarded.
func (s *span) SetTag(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	if s.meta == nil {
		s.meta = make(map[string]interface{}, 1)
	}
	s.meta[key] = value
}

// Tag returns the value set for key, or nil.
func (s *span) Tag(key string) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta[key]
}

// StartTime returns the span's start time.
func (s *span) StartTime() time.Time { return s.start }

// Duration returns the measured duration. It is zero until Finish is called.
func (s *span) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

// IsRecording reports whether the span is live: started locally and not
// yet finished.
func (s *span) IsRecording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.finished
}

// Finish closes the span and evicts it from the registry. Only the first
// call has an effect.
func (s *span) Finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.duration = s.tracer.clock.Now().Sub(s.start)
	s.mu.Unlock()
	s.tracer.registry.Unregister(s.context)
}
