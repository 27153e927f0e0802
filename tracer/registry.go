// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"sync"

	"github.com/tracekit/tracescope"
)

// SpanRegistry resolves a SpanContext to the live span handle it
// identifies. Only locally-started spans are resolvable; span contexts
// joined from a carrier have no local handle and Lookup reports them as
// not found, which is a normal result rather than an error.
//
// Implementations must be safe for concurrent use.
type SpanRegistry interface {
	// Register makes the span resolvable under its SpanContext.
	Register(span tracescope.Span)

	// Unregister removes the entry for the given SpanContext, if any.
	Unregister(ctx tracescope.SpanContext)

	// Lookup returns the live handle registered under ctx.
	Lookup(ctx tracescope.SpanContext) (tracescope.Span, bool)
}

// registry is the default in-memory SpanRegistry, populated by span start
// and evicted by span finish.
type registry struct {
	mu    sync.RWMutex
	spans map[tracescope.SpanContext]tracescope.Span
}

var _ SpanRegistry = (*registry)(nil)

func newRegistry() *registry {
	return &registry{spans: make(map[tracescope.SpanContext]tracescope.Span)}
}

func (r *registry) Register(span tracescope.Span) {
	if span == nil || !span.Context().Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans[span.Context()] = span
}

func (r *registry) Unregister(ctx tracescope.SpanContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.spans, ctx)
}

func (r *registry) Lookup(ctx tracescope.SpanContext) (tracescope.Span, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.spans[ctx]
	return s, ok
}
