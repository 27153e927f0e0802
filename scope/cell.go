// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package scope

import "context"

// Cell holds the current Scope of a single task. A cell is exclusively
// owned by the task it was created for; it is reached through the task's
// context and mutated without locking. Isolation between tasks comes from
// forking, which snapshots the current value into a brand-new cell, never
// from sharing: two tasks must not hold the same cell.
type Cell struct {
	current Scope
}

// NewCell returns a cell initialized to the given scope.
func NewCell(s Scope) *Cell {
	return &Cell{current: s}
}

// Current returns the scope held by the cell.
func (c *Cell) Current() Scope { return c.current }

// Replace installs s as the cell's scope and returns the previous value.
func (c *Cell) Replace(s Scope) Scope {
	prev := c.current
	c.current = s
	return prev
}

// Fork returns a new cell seeded with the cell's current scope. Later
// mutation of either cell is invisible to the other.
func (c *Cell) Fork() *Cell {
	return &Cell{current: c.current}
}

type cellKey struct{}

// ContextWithCell returns a copy of the given context carrying the cell.
func ContextWithCell(ctx context.Context, c *Cell) context.Context {
	return context.WithValue(ctx, cellKey{}, c)
}

// CellFromContext returns the cell bound to the given context, if any.
func CellFromContext(ctx context.Context) (*Cell, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(cellKey{}).(*Cell)
	return c, ok && c != nil
}
