// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/tracekit/tracescope"
	"github.com/tracekit/tracescope/internal/log"
)

// HTTPHeadersCarrier wraps an http.Header as a TextMapWriter and TextMapReader, allowing
// it to be used using the provided Propagator implementation.
type HTTPHeadersCarrier http.Header

var _ TextMapWriter = (*HTTPHeadersCarrier)(nil)
var _ TextMapReader = (*HTTPHeadersCarrier)(nil)

// Set implements TextMapWriter.
func (c HTTPHeadersCarrier) Set(key, val string) {
	http.Header(c).Set(key, val)
}

// ForeachKey implements TextMapReader.
func (c HTTPHeadersCarrier) ForeachKey(handler func(key, val string) error) error {
	for k, vals := range c {
		for _, v := range vals {
			if err := handler(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// TextMapCarrier allows the use of a regular map[string]string as both TextMapWriter
// and TextMapReader, making it compatible with the provided Propagator.
type TextMapCarrier map[string]string

var _ TextMapWriter = (*TextMapCarrier)(nil)
var _ TextMapReader = (*TextMapCarrier)(nil)

// Set implements TextMapWriter.
func (c TextMapCarrier) Set(key, val string) {
	c[key] = val
}

// ForeachKey conforms to the TextMapReader interface.
func (c TextMapCarrier) ForeachKey(handler func(key, val string) error) error {
	for k, v := range c {
		if err := handler(k, v); err != nil {
			return err
		}
	}
	return nil
}

const (
	headerPropagationStyleInject  = "TRACESCOPE_PROPAGATION_STYLE_INJECT"
	headerPropagationStyleExtract = "TRACESCOPE_PROPAGATION_STYLE_EXTRACT"
	headerPropagationStyle        = "TRACESCOPE_PROPAGATION_STYLE"
)

// PropagatorConfig defines the configuration for initializing a propagator.
type PropagatorConfig struct {
	// B3 specifies if B3 headers should be added for trace propagation.
	// See https://github.com/openzipkin/b3-propagation
	B3 bool
}

// NewPropagator returns a new propagator which uses TextMap to inject
// and extract values. It propagates trace and span IDs and the sampled
// flag. To use the defaults, nil may be provided in place of the config.
//
// The inject and extract propagators are determined using environment
// variables with the following order of precedence:
//  1. TRACESCOPE_PROPAGATION_STYLE_INJECT (resp. _EXTRACT)
//  2. TRACESCOPE_PROPAGATION_STYLE (applies to both inject and extract)
//  3. If none of the above, use default values
func NewPropagator(cfg *PropagatorConfig, propagators ...Propagator) Propagator {
	if cfg == nil {
		cfg = new(PropagatorConfig)
	}
	if len(propagators) > 0 {
		return &chainedPropagator{
			injectors:  propagators,
			extractors: propagators,
		}
	}
	injectorsPs := os.Getenv(headerPropagationStyleInject)
	extractorsPs := os.Getenv(headerPropagationStyleExtract)
	return &chainedPropagator{
		injectors:  getPropagators(cfg, injectorsPs),
		extractors: getPropagators(cfg, extractorsPs),
	}
}

// chainedPropagator implements Propagator and applies a list of injectors and extractors.
// When injecting, all injectors are called to propagate the span context.
// When extracting, it tries each extractor, selecting the first successful one.
type chainedPropagator struct {
	injectors  []Propagator
	extractors []Propagator
}

// getPropagators returns a list of propagators based on ps, which is a comma seperated
// list of propagators. If the list doesn't contain any valid values, the
// default propagator will be returned. Any invalid values in the list will log
// a warning and be ignored.
func getPropagators(cfg *PropagatorConfig, ps string) []Propagator {
	defaultPs := []Propagator{&propagatorW3c{}}
	if cfg.B3 {
		defaultPs = append(defaultPs, &propagatorB3{})
	}
	if ps == "" {
		if prop := os.Getenv(headerPropagationStyle); prop != "" {
			ps = prop // use the generic TRACESCOPE_PROPAGATION_STYLE if set
		} else {
			return defaultPs // no env set, so use default from configuration
		}
	}
	ps = strings.ToLower(ps)
	if ps == "none" {
		return nil
	}
	var list []Propagator
	if cfg.B3 {
		list = append(list, &propagatorB3{})
	}
	for _, v := range strings.Split(ps, ",") {
		switch strings.ToLower(v) {
		case "tracecontext", "w3c":
			list = append([]Propagator{&propagatorW3c{}}, list...)
		case "b3", "b3multi":
			if !cfg.B3 {
				// propagatorB3 hasn't already been added, add a new one.
				list = append(list, &propagatorB3{})
			}
		case "b3 single header":
			list = append(list, &propagatorB3SingleHeader{})
		case "none":
			log.Warn("Propagator \"none\" has no effect when combined with other propagators. " +
				"To disable the propagator, set to `none`")
		default:
			log.Warn("unrecognized propagator: %s\n", v)
		}
	}
	if len(list) == 0 {
		return defaultPs // no valid propagators, so return default
	}
	return list
}

// Inject defines the Propagator to propagate SpanContext data
// out of the current process. The implementation propagates the
// TraceID and the current active SpanID.
func (p *chainedPropagator) Inject(spanCtx tracescope.SpanContext, carrier interface{}) error {
	for _, v := range p.injectors {
		err := v.Inject(spanCtx, carrier)
		if err != nil {
			return err
		}
	}
	return nil
}

// Extract implements Propagator.
func (p *chainedPropagator) Extract(carrier interface{}) (tracescope.SpanContext, error) {
	for _, v := range p.extractors {
		ctx, err := v.Extract(carrier)
		if err == nil {
			// first successful extractor returns
			log.Debug("Extracted span context: %s/%d", ctx.TraceID(), ctx.SpanID())
			return ctx, nil
		}
		if err == ErrSpanContextNotFound {
			continue
		}
		return tracescope.SpanContext{}, err
	}
	return tracescope.SpanContext{}, ErrSpanContextNotFound
}

const (
	b3TraceIDHeader = "x-b3-traceid"
	b3SpanIDHeader  = "x-b3-spanid"
	b3SampledHeader = "x-b3-sampled"
	b3SingleHeader  = "b3"
)

// propagatorB3 implements Propagator and injects/extracts span contexts
// using B3 headers. Only TextMap carriers are supported.
type propagatorB3 struct{}

func (p *propagatorB3) Inject(spanCtx tracescope.SpanContext, carrier interface{}) error {
	switch c := carrier.(type) {
	case TextMapWriter:
		return p.injectTextMap(spanCtx, c)
	default:
		return ErrInvalidCarrier
	}
}

func (*propagatorB3) injectTextMap(spanCtx tracescope.SpanContext, writer TextMapWriter) error {
	if !spanCtx.Valid() {
		return ErrInvalidSpanContext
	}
	writer.Set(b3TraceIDHeader, spanCtx.TraceID())
	writer.Set(b3SpanIDHeader, fmt.Sprintf("%016x", spanCtx.SpanID()))
	if spanCtx.Sampled() {
		writer.Set(b3SampledHeader, "1")
	} else {
		writer.Set(b3SampledHeader, "0")
	}
	return nil
}

func (p *propagatorB3) Extract(carrier interface{}) (tracescope.SpanContext, error) {
	switch c := carrier.(type) {
	case TextMapReader:
		return p.extractTextMap(c)
	default:
		return tracescope.SpanContext{}, ErrInvalidCarrier
	}
}

func (*propagatorB3) extractTextMap(reader TextMapReader) (tracescope.SpanContext, error) {
	var (
		traceID [16]byte
		spanID  uint64
		flags   byte
	)
	err := reader.ForeachKey(func(k, v string) error {
		var err error
		key := strings.ToLower(k)
		switch key {
		case b3TraceIDHeader:
			traceID, err = parseTraceID(v)
			if err != nil {
				return ErrSpanContextCorrupted
			}
		case b3SpanIDHeader:
			spanID, err = strconv.ParseUint(v, 16, 64)
			if err != nil {
				return ErrSpanContextCorrupted
			}
		case b3SampledHeader:
			switch v {
			case "1", "d": // treat 'debug' traces as sampled
				flags |= tracescope.FlagSampled
			case "0":
			default:
				return ErrSpanContextCorrupted
			}
		default:
		}
		return nil
	})
	if err != nil {
		return tracescope.SpanContext{}, err
	}
	ctx := tracescope.NewSpanContext(traceID, spanID, flags)
	if !ctx.Valid() {
		return tracescope.SpanContext{}, ErrSpanContextNotFound
	}
	return ctx, nil
}

// propagatorB3SingleHeader implements Propagator and injects/extracts span
// contexts using the single "b3" header. Only TextMap carriers are supported.
type propagatorB3SingleHeader struct{}

func (p *propagatorB3SingleHeader) Inject(spanCtx tracescope.SpanContext, carrier interface{}) error {
	switch c := carrier.(type) {
	case TextMapWriter:
		return p.injectTextMap(spanCtx, c)
	default:
		return ErrInvalidCarrier
	}
}

func (*propagatorB3SingleHeader) injectTextMap(spanCtx tracescope.SpanContext, writer TextMapWriter) error {
	if !spanCtx.Valid() {
		return ErrInvalidSpanContext
	}
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%s-%016x", spanCtx.TraceID(), spanCtx.SpanID()))
	if spanCtx.Sampled() {
		sb.WriteString("-1")
	} else {
		sb.WriteString("-0")
	}
	writer.Set(b3SingleHeader, sb.String())
	return nil
}

func (p *propagatorB3SingleHeader) Extract(carrier interface{}) (tracescope.SpanContext, error) {
	switch c := carrier.(type) {
	case TextMapReader:
		return p.extractTextMap(c)
	default:
		return tracescope.SpanContext{}, ErrInvalidCarrier
	}
}

func (*propagatorB3SingleHeader) extractTextMap(reader TextMapReader) (tracescope.SpanContext, error) {
	var (
		traceID [16]byte
		spanID  uint64
		flags   byte
	)
	err := reader.ForeachKey(func(k, v string) error {
		var err error
		key := strings.ToLower(k)
		switch key {
		case b3SingleHeader:
			b3Parts := strings.Split(v, "-")
			if len(b3Parts) < 2 {
				return ErrSpanContextCorrupted
			}
			traceID, err = parseTraceID(b3Parts[0])
			if err != nil {
				return ErrSpanContextCorrupted
			}
			spanID, err = strconv.ParseUint(b3Parts[1], 16, 64)
			if err != nil {
				return ErrSpanContextCorrupted
			}
			if len(b3Parts) >= 3 {
				switch b3Parts[2] {
				case "":
				case "1", "d": // treat 'debug' traces as sampled
					flags |= tracescope.FlagSampled
				case "0":
				default:
					return ErrSpanContextCorrupted
				}
			}
		default:
		}
		return nil
	})
	if err != nil {
		return tracescope.SpanContext{}, err
	}
	ctx := tracescope.NewSpanContext(traceID, spanID, flags)
	if !ctx.Valid() {
		return tracescope.SpanContext{}, ErrSpanContextNotFound
	}
	return ctx, nil
}

const (
	traceparentHeader = "traceparent"
	tracestateHeader  = "tracestate"
)

// propagatorW3c implements Propagator and injects/extracts span contexts
// using W3C tracecontext/traceparent headers. Only TextMap carriers are supported.
type propagatorW3c struct{}

func (p *propagatorW3c) Inject(spanCtx tracescope.SpanContext, carrier interface{}) error {
	switch c := carrier.(type) {
	case TextMapWriter:
		return p.injectTextMap(spanCtx, c)
	default:
		return ErrInvalidCarrier
	}
}

// injectTextMap propagates span context attributes into the writer,
// in the format of the traceparentHeader.
// traceparentHeader encodes W3C Trace Propagation version, 128-bit traceID,
// spanID, and a flags field, which supports 8 unique flags.
// The current specification only supports a single flag called sampled,
// which is equal to 00000001 when no other flag is present.
func (*propagatorW3c) injectTextMap(spanCtx tracescope.SpanContext, writer TextMapWriter) error {
	if !spanCtx.Valid() {
		return ErrInvalidSpanContext
	}
	flags := "00"
	if spanCtx.Sampled() {
		flags = "01"
	}
	writer.Set(traceparentHeader, fmt.Sprintf("00-%s-%016x-%v", spanCtx.TraceID(), spanCtx.SpanID(), flags))
	return nil
}

func (p *propagatorW3c) Extract(carrier interface{}) (tracescope.SpanContext, error) {
	switch c := carrier.(type) {
	case TextMapReader:
		return p.extractTextMap(c)
	default:
		return tracescope.SpanContext{}, ErrInvalidCarrier
	}
}

func (*propagatorW3c) extractTextMap(reader TextMapReader) (tracescope.SpanContext, error) {
	var parentHeader string
	// tracestate carries vendor-specific data and is not interpreted here,
	// but a duplicated traceparent makes the whole carrier corrupted.
	if err := reader.ForeachKey(func(k, v string) error {
		key := strings.ToLower(k)
		switch key {
		case traceparentHeader:
			if parentHeader != "" {
				return ErrSpanContextCorrupted
			}
			parentHeader = v
		}
		return nil
	}); err != nil {
		return tracescope.SpanContext{}, err
	}
	return parseTraceparent(parentHeader)
}

// hexRgx matches a lower-case hex-encoded string.
var hexRgx = regexp.MustCompile("^[a-f0-9]+$")

// parseTraceparent attempts to parse traceparentHeader which describes the position
// of the incoming request in its trace graph in a portable, fixed-length format.
// The format of the traceparentHeader is `-` separated string with in the
// following format: `version-traceid-spanid-flags`,
// where:
// - version - represents the version of the W3C Tracecontext Propagation format in hex format.
// - traceid - represents the propagated traceID in the format of 32 hex-encoded digits.
// - spanid - represents the propagated spanID (parentID) in the format of 16 hex-encoded digits.
// - flags - represents the propagated flags in the format of 2 hex-encoded digits, and supports 8 unique flags.
// Example value of HTTP `traceparent` header: `00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01`.
func parseTraceparent(header string) (tracescope.SpanContext, error) {
	var none tracescope.SpanContext
	nonWordCutset := "_-\t \n"
	header = strings.ToLower(strings.Trim(header, "\t -"))
	if len(header) == 0 {
		return none, ErrSpanContextNotFound
	}
	if len(header) != 55 {
		return none, ErrSpanContextCorrupted
	}
	parts := strings.Split(header, "-")
	if len(parts) != 4 {
		return none, ErrSpanContextCorrupted
	}
	version := strings.Trim(parts[0], nonWordCutset)
	if len(version) != 2 {
		return none, ErrSpanContextCorrupted
	}
	if v, err := strconv.ParseUint(version, 16, 64); err != nil || v == 255 {
		return none, ErrSpanContextCorrupted
	}
	// parsing traceID
	fullTraceID := strings.Trim(parts[1], nonWordCutset)
	if len(fullTraceID) != 32 {
		return none, ErrSpanContextCorrupted
	}
	// checking that the entire TraceID is a valid hex string
	if !hexRgx.MatchString(fullTraceID) {
		return none, ErrSpanContextCorrupted
	}
	traceID, err := parseTraceID(fullTraceID)
	if err != nil {
		return none, ErrSpanContextCorrupted
	}
	if traceID == [16]byte{} {
		return none, ErrSpanContextNotFound
	}
	// parsing spanID
	rawSpanID := strings.Trim(parts[2], nonWordCutset)
	if len(rawSpanID) != 16 {
		return none, ErrSpanContextCorrupted
	}
	if !hexRgx.MatchString(rawSpanID) {
		return none, ErrSpanContextCorrupted
	}
	spanID, err := strconv.ParseUint(rawSpanID, 16, 64)
	if err != nil {
		return none, ErrSpanContextCorrupted
	}
	if spanID == 0 {
		return none, ErrSpanContextNotFound
	}
	// parsing flags
	f, err := strconv.ParseInt(parts[3], 16, 8)
	if err != nil {
		return none, ErrSpanContextCorrupted
	}
	return tracescope.NewSpanContext(traceID, spanID, byte(f)&tracescope.FlagSampled), nil
}
