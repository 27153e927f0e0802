// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"context"
	"os"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/tracekit/tracescope"
	"github.com/tracekit/tracescope/internal/log"
)

// config holds the Tracer configuration.
type config struct {
	// base is the clean baseline context the root scope carries.
	base context.Context

	// propagator converts span contexts to and from carriers.
	propagator Propagator

	// registry resolves span contexts to live handles.
	registry SpanRegistry

	// clock times span start and duration.
	clock clockz.Clock

	// debug enables debug level logging.
	debug bool

	// logger overrides the package level logger.
	logger tracescope.Logger
}

// Option modifies the Tracer configuration.
type Option func(*config)

func defaults(c *config) {
	c.base = context.Background()
	c.clock = clockz.RealClock
	if v := os.Getenv("TRACESCOPE_DEBUG"); v == "true" || v == "1" {
		c.debug = true
	}
}

// WithBaseContext sets the baseline context established when the tracer is
// created. It is carried by the root scope and never changes afterwards.
func WithBaseContext(ctx context.Context) Option {
	return func(c *config) {
		c.base = ctx
	}
}

// WithPropagator sets a custom propagator to be used by the tracer. By
// default the W3C tracecontext propagator is used, subject to the
// TRACESCOPE_PROPAGATION_STYLE environment variables.
func WithPropagator(p Propagator) Option {
	return func(c *config) {
		c.propagator = p
	}
}

// WithRegistry replaces the in-memory span registry.
func WithRegistry(r SpanRegistry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithClock sets the clock used to time spans. Useful for deterministic
// tests.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithDebugMode enables debug mode on the tracer, resulting in more
// verbose logging.
func WithDebugMode(enabled bool) Option {
	return func(c *config) {
		c.debug = enabled
	}
}

// WithLogger sets logger as the tracer's error printer.
func WithLogger(logger tracescope.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func newConfig(opts ...Option) *config {
	c := new(config)
	defaults(c)
	for _, fn := range opts {
		fn(c)
	}
	if c.logger != nil {
		log.UseLogger(c.logger)
	}
	if c.debug {
		log.SetLevel(log.LevelDebug)
	}
	if c.propagator == nil {
		c.propagator = NewPropagator(nil)
	}
	if c.registry == nil {
		c.registry = newRegistry()
	}
	return c
}

// StartSpanConfig holds the configuration for starting a new span. It is
// usually used with StartSpanOption.
type StartSpanConfig struct {
	// Parent, when non-nil, overrides the parent linkage read from the
	// calling task's current scope.
	Parent *tracescope.SpanContext

	// StartTime represents the time that should be set as the beginning
	// of the span. The zero value means the tracer's clock decides.
	StartTime time.Time

	// Tags holds the tags the span should start with.
	Tags map[string]interface{}
}

// StartSpanOption is a configuration option for StartSpan.
type StartSpanOption func(*StartSpanConfig)

// ChildOf tells StartSpan to use the given span context as the parent,
// instead of the one installed on the calling task's current scope.
func ChildOf(ctx tracescope.SpanContext) StartSpanOption {
	return func(cfg *StartSpanConfig) {
		cfg.Parent = &ctx
	}
}

// StartTime sets a custom start time for the created span.
func StartTime(t time.Time) StartSpanOption {
	return func(cfg *StartSpanConfig) {
		cfg.StartTime = t
	}
}

// Tag sets the given key/value pair on the started span.
func Tag(k string, v interface{}) StartSpanOption {
	return func(cfg *StartSpanConfig) {
		if cfg.Tags == nil {
			cfg.Tags = map[string]interface{}{}
		}
		cfg.Tags[k] = v
	}
}
