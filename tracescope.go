// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package tracescope holds the shared types used by the scope manager and
// the tracer facade. It contains no behaviour of its own: implementations
// live in the scope and tracer packages.
package tracescope

import "encoding/hex"

// TraceIDZero is the hex encoding of an absent 128-bit trace identifier.
const TraceIDZero = "00000000000000000000000000000000"

// FlagSampled is the only trace flag currently defined. It marks a span
// context whose trace has been selected for recording upstream.
const FlagSampled = 0x1

var emptyTraceID [16]byte

// SpanContext identifies a span for propagation and lookup purposes. It is
// an immutable value type: two SpanContexts are equal iff their trace
// identifier, span identifier and flags are all equal, so it is usable as
// a map key.
type SpanContext struct {
	traceID [16]byte // big endian, i.e. <upper><lower>
	spanID  uint64
	flags   byte
}

// NewSpanContext assembles a SpanContext from its raw parts. No validation
// is performed; see Valid.
func NewSpanContext(traceID [16]byte, spanID uint64, flags byte) SpanContext {
	return SpanContext{traceID: traceID, spanID: spanID, flags: flags}
}

// Valid reports whether c can identify a span, which requires both a
// non-zero trace identifier and a non-zero span identifier.
func (c SpanContext) Valid() bool {
	return c.traceID != emptyTraceID && c.spanID != 0
}

// TraceID returns the hex-encoded 128-bit trace identifier. The zero value
// renders as TraceIDZero.
func (c SpanContext) TraceID() string {
	return hex.EncodeToString(c.traceID[:])
}

// TraceIDBytes returns the raw 128-bit trace identifier.
func (c SpanContext) TraceIDBytes() [16]byte { return c.traceID }

// SpanID returns the span identifier.
func (c SpanContext) SpanID() uint64 { return c.spanID }

// Flags returns the raw trace flags.
func (c SpanContext) Flags() byte { return c.flags }

// Sampled reports whether the sampled flag is set.
func (c SpanContext) Sampled() bool { return c.flags&FlagSampled != 0 }

// Span is a handle to a span. Live spans are produced by the tracer's span
// builder and record until finished. Handles obtained for remotely joined
// span contexts never record but still expose the SpanContext they carry,
// so that propagation keeps working across a process that only forwards
// the trace.
type Span interface {
	// Context returns the span's SpanContext. It remains valid after
	// Finish has been called.
	Context() SpanContext

	// SetTag attaches a key/value pair to the span. It is a no-op on
	// non-recording handles.
	SetTag(key string, value interface{})

	// Finish closes the span. Only the first call has an effect.
	Finish()

	// IsRecording reports whether the handle belongs to a live,
	// locally-started span that has not yet finished.
	IsRecording() bool
}

// Logger implementations are able to log given messages, according to
// their underlying configuration.
type Logger interface {
	// Log prints the given message.
	Log(msg string)
}
