// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tracekit/tracescope"
)

// testSpan is a minimal span handle for exercising the scope machinery.
type testSpan struct {
	sc tracescope.SpanContext
}

func (s testSpan) Context() tracescope.SpanContext { return s.sc }
func (testSpan) SetTag(string, interface{})        {}
func (testSpan) Finish()                           {}
func (testSpan) IsRecording() bool                 { return true }

func newTestSpan(spanID uint64) testSpan {
	var traceID [16]byte
	traceID[15] = byte(spanID)
	traceID[7] = 0xa
	return testSpan{sc: tracescope.NewSpanContext(traceID, spanID, tracescope.FlagSampled)}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "root", KindRoot.String())
	assert.Equal(t, "span", KindSpan.String())
	assert.Equal(t, "noop", KindNoop.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestContextWithSpan(t *testing.T) {
	want := newTestSpan(1)
	ctx := ContextWithSpan(context.Background(), want)
	got, ok := SpanFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestSpanFromContextEmpty(t *testing.T) {
	_, ok := SpanFromContext(context.Background())
	assert.False(t, ok)

	_, ok = SpanFromContext(nil)
	assert.False(t, ok)
}

func TestSpanFromContextNested(t *testing.T) {
	inner := newTestSpan(2)
	ctx := ContextWithSpan(ContextWithSpan(context.Background(), newTestSpan(1)), inner)
	got, ok := SpanFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, inner, got)
}
