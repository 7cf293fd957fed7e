// Package observability defines a small Tracer abstraction so otel
// specifics stay in this package; callers (ErpClient, OpDispatcher)
// depend only on Tracer/Span.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// StatusCode mirrors the subset of otel span status codes callers need.
type StatusCode int

const (
	StatusCodeUnset StatusCode = iota
	StatusCodeOK
	StatusCodeError
)

// Span is a handle to an in-flight span.
type Span interface {
	End()
	SetStatus(code StatusCode, message string)
	SetAttributes(attrs map[string]any)
	RecordError(err error)
}

// Tracer starts spans within one instrumentation scope.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// otelTracer adapts an oteltrace.Tracer to the Tracer interface.
type otelTracer struct {
	tracer oteltrace.Tracer
}

// NewTracer returns a Tracer backed by the global otel TracerProvider,
// registered by NewProvider at startup. scope names the instrumenting
// package, e.g. "erpclient" or "dispatcher".
func NewTracer(scope string) Tracer {
	return &otelTracer{tracer: otel.Tracer(scope)}
}

func (t *otelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span oteltrace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetStatus(code StatusCode, message string) {
	switch code {
	case StatusCodeOK:
		s.span.SetStatus(codes.Ok, message)
	case StatusCodeError:
		s.span.SetStatus(codes.Error, message)
	default:
		s.span.SetStatus(codes.Unset, message)
	}
}

func (s *otelSpan) SetAttributes(attrs map[string]any) {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attributeFor(k, v))
	}
	s.span.SetAttributes(kvs...)
}

func (s *otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func attributeFor(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// noopTracer discards all spans; used in tests and when tracing is disabled.
type noopTracer struct{}

// NewNoopTracer returns a Tracer that produces spans with no effect.
func NewNoopTracer() Tracer { return noopTracer{} }

func (noopTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End()                                {}
func (noopSpan) SetStatus(code StatusCode, msg string) {}
func (noopSpan) SetAttributes(attrs map[string]any)  {}
func (noopSpan) RecordError(err error)               {}

// Shutdowner is satisfied by the sdktrace.TracerProvider NewProvider
// installs, letting cmd/odoo-mcp flush spans on graceful shutdown
// without importing the sdk package directly.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

var _ Shutdowner = (*sdktrace.TracerProvider)(nil)
