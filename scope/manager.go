// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package scope

import (
	"context"

	"github.com/tracekit/tracescope"
)

// Manager reads and replaces the calling task's current Scope with
// guaranteed restoration. The baseline (root) scope is fixed at
// construction and never changes, so it needs no synchronization; all
// mutable state lives in per-task cells.
type Manager struct {
	root Scope
}

// NewManager returns a manager whose root scope carries base as the clean
// baseline context. A nil base defaults to context.Background().
func NewManager(base context.Context) *Manager {
	if base == nil {
		base = context.Background()
	}
	return &Manager{root: Scope{kind: KindRoot, ctx: base}}
}

// Root returns the immutable baseline scope.
func (m *Manager) Root() Scope { return m.root }

// Bind returns a copy of ctx carrying a fresh cell initialized to the root
// scope. It marks the entry point of a task.
func (m *Manager) Bind(ctx context.Context) context.Context {
	return ContextWithCell(ctx, NewCell(m.root))
}

// Ensure returns ctx unchanged when it already carries a cell, and
// otherwise binds a fresh one at root.
func (m *Manager) Ensure(ctx context.Context) context.Context {
	if _, ok := CellFromContext(ctx); ok {
		return ctx
	}
	return m.Bind(ctx)
}

// Fork returns a copy of ctx carrying a new cell seeded with the calling
// task's current scope. Pass the returned context to a spawned goroutine:
// scope mutation in either task stays invisible to the other.
func (m *Manager) Fork(ctx context.Context) context.Context {
	if c, ok := CellFromContext(ctx); ok {
		return ContextWithCell(ctx, c.Fork())
	}
	return m.Bind(ctx)
}

// Current returns the calling task's current scope. A context with no
// bound cell reads as root.
func (m *Manager) Current(ctx context.Context) Scope {
	if c, ok := CellFromContext(ctx); ok {
		return c.Current()
	}
	return m.root
}

// CurrentContext returns the context carried by the current scope,
// falling back to the baseline for scopes that carry none.
func (m *Manager) CurrentContext(ctx context.Context) context.Context {
	if c := m.Current(ctx).Context(); c != nil {
		return c
	}
	return m.root.ctx
}

// Enter installs span as the current span for the calling task and
// returns a restore function which must be invoked, typically through
// defer, when the scoped work exits. Restoration puts back the exact
// value saved at entry on every exit path, including panics.
//
// If the current scope is Noop the installation has no effect: tracing
// stays suppressed until the noop scope itself exits.
func (m *Manager) Enter(ctx context.Context, span tracescope.Span) (restore func()) {
	return m.swap(ctx, func(cur Scope) Scope {
		return m.combine(cur, cur.Context(), span)
	})
}

// Join installs span over the clean baseline rather than over the current
// scope, so that ambient local state cannot leak into the installed
// context. It is used when adopting a span context extracted from a
// carrier. Noop suppression still applies.
func (m *Manager) Join(ctx context.Context, span tracescope.Span) (restore func()) {
	return m.swap(ctx, func(cur Scope) Scope {
		return m.combine(cur, m.root.ctx, span)
	})
}

// EnterRoot installs the baseline scope, unless the current scope is Noop,
// in which case suppression stays in force and Noop is installed again.
func (m *Manager) EnterRoot(ctx context.Context) (restore func()) {
	return m.swap(ctx, func(cur Scope) Scope {
		if cur.kind == KindNoop {
			return Scope{kind: KindNoop}
		}
		return m.root
	})
}

// EnterNoop unconditionally suppresses tracing for the duration of the
// scope, regardless of the prior state.
func (m *Manager) EnterNoop(ctx context.Context) (restore func()) {
	return m.swap(ctx, func(Scope) Scope {
		return Scope{kind: KindNoop}
	})
}

// combine derives the scope that results from installing span while cur is
// current. base is the context the new span scope chains onto.
func (m *Manager) combine(cur Scope, base context.Context, span tracescope.Span) Scope {
	if cur.kind == KindNoop {
		return Scope{kind: KindNoop}
	}
	if base == nil {
		base = m.root.ctx
	}
	return Scope{
		kind: KindSpan,
		ctx:  ContextWithSpan(base, span),
		span: span,
		sc:   span.Context(),
	}
}

// swap replaces the current scope with next(current) and returns the
// restore function. The saved value is captured at entry; restore never
// re-reads the cell, so a sibling fork mutating its own cell in the
// meantime cannot corrupt restoration. On a context with no bound cell
// there is nothing to mutate and both swap and restore are no-ops.
func (m *Manager) swap(ctx context.Context, next func(Scope) Scope) (restore func()) {
	c, ok := CellFromContext(ctx)
	if !ok {
		return func() {}
	}
	saved := c.Replace(next(c.Current()))
	return func() { c.Replace(saved) }
}
