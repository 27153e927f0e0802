// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

// Package tracer exposes the tracing facade: span creation, resolution of
// the span currently in progress, scoped suppression and re-rooting, and
// joining/propagating trace context across process boundaries through
// text map carriers.
//
// The facade keeps no global state of its own. The ambient "current span"
// bookkeeping is delegated to the scope package, which isolates it per
// task; span handles for remotely-joined contexts are synthesized on
// demand and never recorded.
package tracer

import (
	"context"
	"errors"

	"github.com/zoobzio/clockz"

	"github.com/tracekit/tracescope"
	"github.com/tracekit/tracescope/internal/log"
	"github.com/tracekit/tracescope/scope"
)

// Tracer resolves and manipulates the span currently in progress for the
// calling task. It composes the scope manager with a span registry and a
// propagator; the registry distinguishes locally-started spans, which
// resolve to live handles, from span contexts merely known about through
// remote propagation.
type Tracer struct {
	manager    *scope.Manager
	registry   SpanRegistry
	propagator Propagator
	clock      clockz.Clock
}

// New creates a Tracer with the given set of options.
func New(opts ...Option) *Tracer {
	c := newConfig(opts...)
	return &Tracer{
		manager:    scope.NewManager(c.base),
		registry:   c.registry,
		propagator: c.propagator,
		clock:      c.clock,
	}
}

// Manager returns the tracer's scope manager.
func (t *Tracer) Manager() *scope.Manager { return t.manager }

// Bind returns a copy of ctx bound to a fresh scope cell at root. It marks
// the entry point of a task; the body-style scope operations call it
// implicitly when needed.
func (t *Tracer) Bind(ctx context.Context) context.Context {
	return t.manager.Bind(ctx)
}

// Fork returns a copy of ctx for a task about to be spawned: the new
// task's scope cell starts from the calling task's current scope, and
// scope mutation on either side stays invisible to the other.
func (t *Tracer) Fork(ctx context.Context) context.Context {
	return t.manager.Fork(ctx)
}

// CurrentScope returns the calling task's current scope.
func (t *Tracer) CurrentScope(ctx context.Context) scope.Scope {
	return t.manager.Current(ctx)
}

// CurrentSpanContext returns the SpanContext of the span currently in
// progress for the calling task. The second return value is false when
// the current scope is root (no span installed), noop (tracing
// suppressed), or carries a span context that cannot identify a span.
func (t *Tracer) CurrentSpanContext(ctx context.Context) (tracescope.SpanContext, bool) {
	cur := t.manager.Current(ctx)
	if cur.Kind() != scope.KindSpan {
		return tracescope.SpanContext{}, false
	}
	sc := cur.SpanContext()
	if !sc.Valid() {
		return tracescope.SpanContext{}, false
	}
	return sc, true
}

// CurrentSpan returns a handle for the span currently in progress. When
// the span was started locally the live handle is returned. When the
// current span context arrived through remote propagation and has no
// local handle, a propagating-only handle is returned: it records
// nothing, but Propagate keeps re-injecting its context. With no span in
// progress at all, a pure no-op handle is returned.
//
// CurrentSpan never fails: a lookup racing a concurrent Finish simply
// degrades to the propagating-only handle.
func (t *Tracer) CurrentSpan(ctx context.Context) tracescope.Span {
	sc, ok := t.CurrentSpanContext(ctx)
	if !ok {
		return noopSpan{}
	}
	if s, ok := t.registry.Lookup(sc); ok {
		return s
	}
	return remoteSpan{sctx: sc}
}

// StartSpan starts a new span with the given operation name. Parent
// linkage is read from the calling task's current scope unless the
// ChildOf option overrides it: under a span scope the new span continues
// the same trace, under root it begins a new one. Under a noop scope
// nothing is started and a no-op handle is returned.
//
// The started span is registered until finished, making it resolvable by
// CurrentSpan once installed with Activate.
func (t *Tracer) StartSpan(ctx context.Context, operationName string, opts ...StartSpanOption) tracescope.Span {
	cur := t.manager.Current(ctx)
	if cur.Kind() == scope.KindNoop {
		return noopSpan{}
	}
	var cfg StartSpanConfig
	for _, fn := range opts {
		fn(&cfg)
	}
	var parent tracescope.SpanContext
	if cfg.Parent != nil {
		parent = *cfg.Parent
	} else if cur.Kind() == scope.KindSpan {
		parent = cur.SpanContext()
	}
	var sctx tracescope.SpanContext
	var parentID uint64
	if parent.Valid() {
		sctx = tracescope.NewSpanContext(parent.TraceIDBytes(), randSpanID(), parent.Flags())
		parentID = parent.SpanID()
	} else {
		sctx = tracescope.NewSpanContext(randTraceID(), randSpanID(), tracescope.FlagSampled)
	}
	start := cfg.StartTime
	if start.IsZero() {
		start = t.clock.Now()
	}
	s := &span{
		name:     operationName,
		start:    start,
		meta:     cfg.Tags,
		context:  sctx,
		parentID: parentID,
		tracer:   t,
	}
	t.registry.Register(s)
	if log.DebugEnabled() {
		log.Debug("Started span: trace %s, span %d, parent %d", sctx.TraceID(), sctx.SpanID(), parentID)
	}
	return s
}

// Activate installs span as the calling task's current span and returns a
// restore function to be deferred. The pre-entry scope is put back on
// every exit path. Under a noop scope activation has no effect.
func (t *Tracer) Activate(ctx context.Context, span tracescope.Span) (restore func()) {
	return t.manager.Enter(ctx, span)
}

// ChildScope runs body with the current scope replaced, for its duration,
// by one installing parent as the active span context. No registry
// resolution takes place: the handle installed is propagating-only. Noop
// suppression is sticky, as with any span installation.
func (t *Tracer) ChildScope(ctx context.Context, parent tracescope.SpanContext, body func(context.Context) error) error {
	ctx = t.manager.Ensure(ctx)
	restore := t.manager.Enter(ctx, remoteSpan{sctx: parent})
	defer restore()
	return body(ctx)
}

// RootScope runs body with the clean baseline scope installed, unless
// tracing is currently suppressed, in which case suppression stays in
// force for the duration of body.
func (t *Tracer) RootScope(ctx context.Context, body func(context.Context) error) error {
	ctx = t.manager.Ensure(ctx)
	restore := t.manager.EnterRoot(ctx)
	defer restore()
	return body(ctx)
}

// NoopScope runs body with tracing unconditionally suppressed: spans
// started inside record nothing and CurrentSpanContext reports no span.
// Use it around sub-computations that must not be traced, such as an
// exporter's own network calls.
func (t *Tracer) NoopScope(ctx context.Context, body func(context.Context) error) error {
	ctx = t.manager.Ensure(ctx)
	restore := t.manager.EnterNoop(ctx)
	defer restore()
	return body(ctx)
}

// JoinOrRoot extracts a span context from the carrier and runs body with
// it installed as current. Extraction always starts from the clean
// baseline, never from whatever happens to be currently active, so
// ambient local state cannot leak into a freshly joined remote trace.
// When the carrier yields nothing, or cannot be parsed, the behavior
// degrades to RootScope; a malformed carrier never fails the caller.
func (t *Tracer) JoinOrRoot(ctx context.Context, carrier interface{}, body func(context.Context) error) error {
	sc, err := t.propagator.Extract(carrier)
	if err != nil || !sc.Valid() {
		if err != nil && !errors.Is(err, ErrSpanContextNotFound) {
			log.Debug("discarding span context from carrier: %v", err)
		}
		return t.RootScope(ctx, body)
	}
	ctx = t.manager.Ensure(ctx)
	restore := t.manager.Join(ctx, remoteSpan{sctx: sc})
	defer restore()
	return body(ctx)
}

// Propagate injects the calling task's current span context into the
// carrier. It is a pure read: the current scope is never mutated, and
// calling it twice in a row produces identical carrier mutations. With no
// valid span context in progress the carrier is left untouched and nil is
// returned.
func (t *Tracer) Propagate(ctx context.Context, carrier interface{}) error {
	sc, ok := t.CurrentSpanContext(ctx)
	if !ok {
		return nil
	}
	return t.propagator.Inject(sc, carrier)
}

// Extract returns the span context encoded in the carrier, if any.
func (t *Tracer) Extract(carrier interface{}) (tracescope.SpanContext, error) {
	return t.propagator.Extract(carrier)
}
