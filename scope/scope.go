// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package scope tracks the ambient tracing state of a task: which span, if
// any, is currently in progress. The state is modelled as a closed variant
// (Root, Span or Noop) held in a per-task Cell, with a Manager providing
// guarded enter/restore operations on top.
package scope

import (
	"context"

	"github.com/tracekit/tracescope"
)

// Kind discriminates the Scope variants.
type Kind int32

const (
	// KindRoot is the clean baseline: no span in progress.
	KindRoot Kind = iota
	// KindSpan means a span handle has been installed as current.
	KindSpan
	// KindNoop suppresses tracing: span installation inside it has no
	// effect until the enclosing noop scope exits.
	KindNoop
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindSpan:
		return "span"
	case KindNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// Scope is an immutable description of a task's current tracing state.
// The zero value is not meaningful; scopes are produced by a Manager.
type Scope struct {
	kind Kind
	ctx  context.Context
	span tracescope.Span
	sc   tracescope.SpanContext
}

// Kind returns the variant of the scope.
func (s Scope) Kind() Kind { return s.kind }

// Context returns the context carried by the scope: the baseline for a
// root scope, the baseline extended with the installed span for a span
// scope. Noop scopes carry no context and return nil.
func (s Scope) Context() context.Context { return s.ctx }

// Span returns the installed span handle, or nil unless Kind is KindSpan.
func (s Scope) Span() tracescope.Span { return s.span }

// SpanContext returns the installed span's SpanContext. It is the zero
// value unless Kind is KindSpan.
func (s Scope) SpanContext() tracescope.SpanContext { return s.sc }

type activeSpanKey struct{}

// ContextWithSpan returns a copy of the given context which includes the
// span s as the active span marker.
func ContextWithSpan(ctx context.Context, s tracescope.Span) context.Context {
	return context.WithValue(ctx, activeSpanKey{}, s)
}

// SpanFromContext returns the span marked active in the given context. A
// second return value indicates if one was found.
func SpanFromContext(ctx context.Context) (tracescope.Span, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(activeSpanKey{}).(tracescope.Span)
	return s, ok && s != nil
}
