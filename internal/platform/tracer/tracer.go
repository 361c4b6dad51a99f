// Package tracer wraps OpenTelemetry behind the two calls the ledger makes,
// so ledger code depends on neither a provider nor the otel packages.
package tracer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const InstrumentationName = "ecertify/ledger"

// Span attribute keys.
const (
	AttrOperation = "ledger.operation"
	AttrCaller    = "ledger.caller"
	AttrSubject   = "ledger.subject"
	AttrOutcome   = "ledger.outcome"
	AttrReadOnly  = "ledger.read_only"
)

// EventCommitted is added to a mutating operation's span once it commits.
const EventCommitted = "ledger.committed"

type Attribute = attribute.KeyValue

func String(key, value string) Attribute { return attribute.String(key, value) }
func Bool(key string, value bool) Attribute { return attribute.Bool(key, value) }
func Int64(key string, value int64) Attribute { return attribute.Int64(key, value) }

// Duration is recorded in whole milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return attribute.Int64(key, value.Milliseconds())
}

// Span must be ended exactly once. End marks it failed when err is non-nil.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// OTel starts spans on an OpenTelemetry tracer.
type OTel struct {
	t trace.Tracer
}

// NewOTel uses t, or the global provider's tracer when t is nil.
func NewOTel(t trace.Tracer) *OTel {
	if t == nil {
		t = otel.Tracer(InstrumentationName)
	}
	return &OTel{t: t}
}

// NewNoop records nothing. It is the ledger's default.
func NewNoop() *OTel {
	return NewOTel(noop.NewTracerProvider().Tracer(InstrumentationName))
}

func (o *OTel) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, s := o.t.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span{s: s}
}

type span struct {
	s trace.Span
}

func (sp span) End(err error) {
	if err != nil {
		sp.s.RecordError(err)
		sp.s.SetStatus(codes.Error, err.Error())
	}
	sp.s.End()
}

func (sp span) SetAttributes(attrs ...Attribute) { sp.s.SetAttributes(attrs...) }

func (sp span) AddEvent(name string, attrs ...Attribute) {
	sp.s.AddEvent(name, trace.WithAttributes(attrs...))
}

var _ Tracer = (*OTel)(nil)
