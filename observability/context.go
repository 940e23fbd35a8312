package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/taskflow/errors"
)

// Operation tracks one traced and measured unit: an execution or a node.
type Operation struct {
	Kind      string
	Name      string
	StartTime time.Time
	Metrics   *Metrics
	span      trace.Span
}

// StartOperation opens a span and records the start on DefaultMetrics.
// name labels the metrics (scheduler for executions, task type for nodes).
func StartOperation(ctx context.Context, spanName, kind, name string, attrs ...attribute.KeyValue) (context.Context, *Operation) {
	ctx, span := StartSpan(ctx, spanName, trace.WithAttributes(attrs...))
	op := &Operation{
		Kind:      kind,
		Name:      name,
		StartTime: time.Now(),
		Metrics:   DefaultMetrics(),
		span:      span,
	}
	op.Metrics.RecordStart(ctx, kind)
	return ctx, op
}

// Span returns the operation's span.
func (op *Operation) Span() trace.Span { return op.span }

// End finishes the span and records the outcome. A nil err is "ok".
func (op *Operation) End(ctx context.Context, err error) {
	duration := time.Since(op.StartTime)
	status := "ok"
	if err != nil {
		status = "error"
		code := string(errors.ErrCodeInternal)
		if appErr, ok := errors.AsAppError(err); ok {
			code = string(appErr.Code)
		}
		SetSpanError(trace.ContextWithSpan(ctx, op.span), err)
		op.Metrics.RecordError(ctx, code, op.Kind)
	}
	op.span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	op.span.End()
	op.Metrics.RecordEnd(ctx, op.Kind, op.Name, status, duration)
}
