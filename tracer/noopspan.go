// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import "github.com/tracekit/tracescope"

// noopSpan is the handle returned when there is nothing to trace: it
// records nothing and carries no span context worth propagating.
type noopSpan struct{}

var _ tracescope.Span = noopSpan{}

func (noopSpan) Context() tracescope.SpanContext { return tracescope.SpanContext{} }
func (noopSpan) SetTag(_ string, _ interface{})  {}
func (noopSpan) Finish()                         {}
func (noopSpan) IsRecording() bool               { return false }

// remoteSpan represents a span known about only through propagation: its
// context was extracted from a carrier, so no live handle exists in this
// process. It records nothing, but keeps the span context flowing so that
// the distributed parts of the trace stay connected when the context is
// injected further downstream.
type remoteSpan struct {
	sctx tracescope.SpanContext
}

var _ tracescope.Span = remoteSpan{}

func (r remoteSpan) Context() tracescope.SpanContext { return r.sctx }
func (remoteSpan) SetTag(_ string, _ interface{})    {}
func (remoteSpan) Finish()                           {}
func (remoteSpan) IsRecording() bool                 { return false }
