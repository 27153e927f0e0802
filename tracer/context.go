// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"context"

	"github.com/tracekit/tracescope"
	"github.com/tracekit/tracescope/scope"
)

// ContextWithSpan returns a copy of the given context which includes the
// span s as the active span marker.
func ContextWithSpan(ctx context.Context, s tracescope.Span) context.Context {
	return scope.ContextWithSpan(ctx, s)
}

// SpanFromContext returns the span contained in the given context. A
// second return value indicates if a span was found in the context.
func SpanFromContext(ctx context.Context) (tracescope.Span, bool) {
	return scope.SpanFromContext(ctx)
}

// StartSpanFromContext returns a new span with the given operation name
// and options, together with a context marking it active. If a span is
// found in the context, it will be used as the parent of the resulting
// span. If the ChildOf option is passed, it will only be used as the
// parent if there is no span found in ctx.
func (t *Tracer) StartSpanFromContext(ctx context.Context, operationName string, opts ...StartSpanOption) (tracescope.Span, context.Context) {
	// copy opts in case the caller reuses the slice in parallel
	// we will add at most 1 item
	optsLocal := make([]StartSpanOption, len(opts), len(opts)+1)
	copy(optsLocal, opts)
	if ctx == nil {
		// default to context.Background() to avoid panics on Go >= 1.15
		ctx = context.Background()
	} else if s, ok := scope.SpanFromContext(ctx); ok {
		optsLocal = append(optsLocal, ChildOf(s.Context()))
	}
	s := t.StartSpan(ctx, operationName, optsLocal...)
	return s, scope.ContextWithSpan(ctx, s)
}
