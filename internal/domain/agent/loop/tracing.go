package loop

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Spans nest as session > phase; execute and reflect carry the attempt.
const (
	tracerName = "retouch.loop"

	spanSession = "loop.session"
	spanAnalyze = "loop.analyze"
	spanPlan    = "loop.plan"
	spanExecute = "loop.execute"
	spanReflect = "loop.reflect"
	spanUndo    = "loop.undo"

	attrSessionID = "retouch.session_id"
	attrAttempt   = "retouch.attempt"
	attrOperation = "retouch.operation"
	attrOutcome   = "retouch.outcome"
)

func startSessionSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanSession,
		trace.WithAttributes(attribute.String(attrSessionID, sessionID)))
}

func (r *runtime) startSpan(name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(attrSessionID, r.state.ID()))
	return otel.Tracer(tracerName).Start(r.ctx, name, trace.WithAttributes(attrs...))
}

func (r *runtime) startStepSpan(name string, attempt int, operation string) (context.Context, trace.Span) {
	return r.startSpan(name, attribute.Int(attrAttempt, attempt), attribute.String(attrOperation, operation))
}

func setSpanStatus(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func finishSpan(span trace.Span, err error) {
	setSpanStatus(span, err)
	span.End()
}
