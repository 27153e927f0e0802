// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/tracekit/tracescope"
	"github.com/tracekit/tracescope/scope"
)

func TestCurrentSpanContext(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	t.Run("root", func(t *testing.T) {
		_, ok := tr.CurrentSpanContext(ctx)
		assert.False(t, ok)
	})

	t.Run("noop", func(t *testing.T) {
		err := tr.NoopScope(ctx, func(ctx context.Context) error {
			_, ok := tr.CurrentSpanContext(ctx)
			assert.False(t, ok)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("span", func(t *testing.T) {
		s := tr.StartSpan(ctx, "web.request")
		defer s.Finish()
		restore := tr.Activate(ctx, s)
		defer restore()

		sc, ok := tr.CurrentSpanContext(ctx)
		require.True(t, ok)
		assert.True(t, sc.Valid())
		assert.Equal(t, s.Context(), sc)
	})

	t.Run("invalid span context", func(t *testing.T) {
		restore := tr.Activate(ctx, remoteSpan{})
		defer restore()
		_, ok := tr.CurrentSpanContext(ctx)
		assert.False(t, ok)
	})
}

func TestCurrentSpan(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	t.Run("no span", func(t *testing.T) {
		s := tr.CurrentSpan(ctx)
		assert.False(t, s.IsRecording())
		assert.False(t, s.Context().Valid())
	})

	t.Run("registered resolves live", func(t *testing.T) {
		started := tr.StartSpan(ctx, "web.request")
		defer started.Finish()
		restore := tr.Activate(ctx, started)
		defer restore()

		got := tr.CurrentSpan(ctx)
		assert.Equal(t, started, got)
		assert.True(t, got.IsRecording())
	})
}

func TestCurrentSpanPropagatingOnly(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	// a valid span context that was never locally started
	sc := tracescope.NewSpanContext(traceIDFromUint64(0xabc), 0xdef, tracescope.FlagSampled)
	restore := tr.Activate(ctx, remoteSpan{sctx: sc})
	defer restore()

	got := tr.CurrentSpan(ctx)
	assert.False(t, got.IsRecording())
	assert.Equal(t, sc, got.Context())
}

func TestChildScope(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	parent := tracescope.NewSpanContext(traceIDFromUint64(0xabc), 0xdef, tracescope.FlagSampled)
	err := tr.ChildScope(ctx, parent, func(ctx context.Context) error {
		sc, ok := tr.CurrentSpanContext(ctx)
		require.True(t, ok)
		assert.Equal(t, parent, sc)
		// no live handle: the installed span is propagating-only
		assert.False(t, tr.CurrentSpan(ctx).IsRecording())
		return nil
	})
	require.NoError(t, err)

	_, ok := tr.CurrentSpanContext(ctx)
	assert.False(t, ok)
}

func TestRootScope(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	s := tr.StartSpan(ctx, "web.request")
	defer s.Finish()
	restore := tr.Activate(ctx, s)
	defer restore()

	err := tr.RootScope(ctx, func(ctx context.Context) error {
		_, ok := tr.CurrentSpanContext(ctx)
		assert.False(t, ok)
		assert.Equal(t, scope.KindRoot, tr.CurrentScope(ctx).Kind())
		return nil
	})
	require.NoError(t, err)

	// the span scope is back after the body exits
	sc, ok := tr.CurrentSpanContext(ctx)
	require.True(t, ok)
	assert.Equal(t, s.Context(), sc)
}

func TestNoopScopeSticky(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	err := tr.NoopScope(ctx, func(ctx context.Context) error {
		// installing a span under noop yields noop again
		s := tr.StartSpan(ctx, "suppressed")
		restore := tr.Activate(ctx, s)
		defer restore()
		assert.Equal(t, scope.KindNoop, tr.CurrentScope(ctx).Kind())

		// re-rooting does not lift suppression either
		return tr.RootScope(ctx, func(ctx context.Context) error {
			assert.Equal(t, scope.KindNoop, tr.CurrentScope(ctx).Kind())
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, scope.KindRoot, tr.CurrentScope(ctx).Kind())
}

func TestScopeBodyError(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())
	boom := errors.New("boom")

	err := tr.NoopScope(ctx, func(ctx context.Context) error {
		return boom
	})
	assert.Equal(t, boom, err)
	// the failed body still restored the scope
	assert.Equal(t, scope.KindRoot, tr.CurrentScope(ctx).Kind())
}

func TestJoinOrRoot(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	t.Run("valid carrier", func(t *testing.T) {
		carrier := TextMapCarrier(map[string]string{
			"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		})
		err := tr.JoinOrRoot(ctx, carrier, func(ctx context.Context) error {
			sc, ok := tr.CurrentSpanContext(ctx)
			require.True(t, ok)
			assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID())
			assert.Equal(t, uint64(0x00f067aa0ba902b7), sc.SpanID())
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("empty carrier degrades to root", func(t *testing.T) {
		err := tr.JoinOrRoot(ctx, TextMapCarrier(map[string]string{}), func(ctx context.Context) error {
			assert.Equal(t, scope.KindRoot, tr.CurrentScope(ctx).Kind())
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("malformed carrier degrades to root", func(t *testing.T) {
		carrier := TextMapCarrier(map[string]string{"traceparent": "garbage"})
		err := tr.JoinOrRoot(ctx, carrier, func(ctx context.Context) error {
			assert.Equal(t, scope.KindRoot, tr.CurrentScope(ctx).Kind())
			return nil
		})
		require.NoError(t, err)
	})
}

// Joining always extracts from the clean baseline: running it after first
// entering an unrelated span scope installs the same context as running it
// on a fresh tracer.
func TestJoinOrRootBaselineIsolation(t *testing.T) {
	carrier := TextMapCarrier(map[string]string{
		"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	})

	joined := func(tr *Tracer, ctx context.Context) (sc tracescope.SpanContext, marker tracescope.Span) {
		err := tr.JoinOrRoot(ctx, carrier, func(ctx context.Context) error {
			sc, _ = tr.CurrentSpanContext(ctx)
			marker, _ = scope.SpanFromContext(tr.Manager().CurrentContext(ctx))
			return nil
		})
		require.NoError(t, err)
		return sc, marker
	}

	fresh := New()
	wantSC, wantMarker := joined(fresh, fresh.Bind(context.Background()))

	dirty := New()
	ctx := dirty.Bind(context.Background())
	local := dirty.StartSpan(ctx, "unrelated")
	defer local.Finish()
	restore := dirty.Activate(ctx, local)
	defer restore()
	gotSC, gotMarker := joined(dirty, ctx)

	assert.Equal(t, wantSC, gotSC)
	assert.Equal(t, wantMarker, gotMarker)
}

func TestPropagate(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	t.Run("no span leaves carrier untouched", func(t *testing.T) {
		carrier := TextMapCarrier(map[string]string{})
		require.NoError(t, tr.Propagate(ctx, carrier))
		assert.Empty(t, carrier)
	})

	t.Run("pure read", func(t *testing.T) {
		s := tr.StartSpan(ctx, "web.request")
		defer s.Finish()
		restore := tr.Activate(ctx, s)
		defer restore()

		before := tr.CurrentScope(ctx)
		first := TextMapCarrier(map[string]string{})
		second := TextMapCarrier(map[string]string{})
		require.NoError(t, tr.Propagate(ctx, first))
		require.NoError(t, tr.Propagate(ctx, second))

		assert.Equal(t, first, second)
		assert.Equal(t, before, tr.CurrentScope(ctx))
	})
}

// Local round trip: start a span, activate it, resolve it live through the
// registry, then exit and observe the baseline again.
func TestEndToEndLocalSpan(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	handleA := tr.StartSpan(ctx, "op.a")
	defer handleA.Finish()

	restore := tr.Activate(ctx, handleA)
	cur := tr.CurrentScope(ctx)
	require.Equal(t, scope.KindSpan, cur.Kind())
	assert.Equal(t, handleA, cur.Span())
	assert.Equal(t, handleA.Context(), cur.SpanContext())

	marker, ok := scope.SpanFromContext(cur.Context())
	require.True(t, ok)
	assert.Equal(t, handleA, marker)

	assert.Equal(t, handleA, tr.CurrentSpan(ctx))

	restore()
	assert.Equal(t, scope.KindRoot, tr.CurrentScope(ctx).Kind())
}

// Remote round trip: join a W3C carrier, observe a propagating-only
// handle, and re-inject the same identifiers into a second carrier.
func TestEndToEndRemoteJoin(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	carrier := TextMapCarrier(map[string]string{
		"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	})
	err := tr.JoinOrRoot(ctx, carrier, func(ctx context.Context) error {
		s := tr.CurrentSpan(ctx)
		assert.False(t, s.IsRecording())
		assert.True(t, s.Context().Valid())

		carrier2 := TextMapCarrier(map[string]string{})
		require.NoError(t, tr.Propagate(ctx, carrier2))
		assert.Equal(t, carrier["traceparent"], carrier2["traceparent"])
		return nil
	})
	require.NoError(t, err)
}

// Two tasks forked from the same scope never see each other's mutations.
func TestForkIsolation(t *testing.T) {
	tr := New()
	ctx := tr.Bind(context.Background())

	s := tr.StartSpan(ctx, "parent")
	defer s.Finish()
	restore := tr.Activate(ctx, s)
	defer restore()

	ctxA := tr.Fork(ctx)
	ctxB := tr.Fork(ctx)

	var g errgroup.Group
	g.Go(func() error {
		a := tr.StartSpan(ctxA, "task.a")
		defer a.Finish()
		restore := tr.Activate(ctxA, a)
		defer restore()
		if got := tr.CurrentSpan(ctxA); got != a {
			return errors.New("task A sees a foreign span")
		}
		return nil
	})
	g.Go(func() error {
		return tr.NoopScope(ctxB, func(ctxB context.Context) error {
			if tr.CurrentScope(ctxB).Kind() != scope.KindNoop {
				return errors.New("task B lost suppression")
			}
			return nil
		})
	})
	require.NoError(t, g.Wait())

	// after both finish, parent and children all read the fork-time value
	assert.Equal(t, s, tr.CurrentSpan(ctx))
	assert.Equal(t, s, tr.CurrentSpan(ctxA))
	assert.Equal(t, s, tr.CurrentSpan(ctxB))
}

func TestWithBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "v")
	tr := New(WithBaseContext(base))

	err := tr.RootScope(context.Background(), func(ctx context.Context) error {
		got := tr.Manager().CurrentContext(ctx)
		assert.Equal(t, "v", got.Value(key{}))
		return nil
	})
	require.NoError(t, err)
}

func TestWithRegistry(t *testing.T) {
	reg := newRegistry()
	tr := New(WithRegistry(reg))
	ctx := tr.Bind(context.Background())

	s := tr.StartSpan(ctx, "web.request")
	defer s.Finish()
	_, ok := reg.Lookup(s.Context())
	assert.True(t, ok)
}
