// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellReplace(t *testing.T) {
	m := NewManager(context.Background())
	c := NewCell(m.Root())

	next := m.combine(m.Root(), m.Root().Context(), newTestSpan(1))
	prev := c.Replace(next)
	assert.Equal(t, KindRoot, prev.Kind())
	assert.Equal(t, KindSpan, c.Current().Kind())

	c.Replace(prev)
	assert.Equal(t, KindRoot, c.Current().Kind())
}

func TestCellForkIsolation(t *testing.T) {
	m := NewManager(context.Background())
	parent := NewCell(m.Root())
	parent.Replace(m.combine(m.Root(), m.Root().Context(), newTestSpan(7)))

	child := parent.Fork()
	require.Equal(t, parent.Current(), child.Current())

	// mutating the child is invisible to the parent and vice versa
	child.Replace(Scope{kind: KindNoop})
	assert.Equal(t, KindSpan, parent.Current().Kind())

	parent.Replace(m.root)
	assert.Equal(t, KindNoop, child.Current().Kind())
}

func TestCellFromContext(t *testing.T) {
	_, ok := CellFromContext(context.Background())
	assert.False(t, ok)

	_, ok = CellFromContext(nil)
	assert.False(t, ok)

	c := NewCell(Scope{kind: KindRoot})
	got, ok := CellFromContext(ContextWithCell(context.Background(), c))
	require.True(t, ok)
	assert.Same(t, c, got)
}
