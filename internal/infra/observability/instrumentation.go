package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/shared/logging"
)

// PhaseMetadataKey is the CompletionRequest metadata key naming the control
// loop phase that issued the request.
const PhaseMetadataKey = "phase"

// InstrumentedLLMClient wraps a decision-maker with spans, metrics and an
// LLM-category log line per request.
type InstrumentedLLMClient struct {
	inner   ports.LLMClient
	tracer  trace.Tracer
	metrics *MetricsCollector
	logger  logging.Logger
}

// NewInstrumentedLLMClient creates an instrumented client. Nil tracer and
// metrics are allowed.
func NewInstrumentedLLMClient(client ports.LLMClient, tracer *TracerProvider, metrics *MetricsCollector, logger logging.Logger) ports.LLMClient {
	instrumented := &InstrumentedLLMClient{
		inner:   client,
		metrics: metrics,
		logger:  logging.OrNop(logger),
	}
	if tracer != nil {
		instrumented.tracer = tracer.Tracer()
	}
	return instrumented
}

func (c *InstrumentedLLMClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	phase := requestPhase(req)
	var span trace.Span
	if c.tracer != nil {
		ctx, span = c.tracer.Start(ctx, SpanDecision, trace.WithAttributes(
			attribute.String(AttrModel, c.inner.Model()),
			attribute.String(AttrPhase, phase),
		))
		defer span.End()
	}

	c.logger.Debug("decision request: phase=%s messages=%d tools=%d", phase, len(req.Messages), len(req.Tools))

	start := time.Now()
	resp, err := c.inner.Complete(ctx, req)
	latency := time.Since(start)

	if err != nil {
		if span != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}
		c.logger.Error("decision request failed: phase=%s latency=%s err=%v", phase, latency, err)
		c.metrics.RecordDecision(ctx, phase, "error", latency)
		return nil, err
	}

	c.metrics.RecordDecision(ctx, phase, "success", latency)
	if span != nil {
		span.SetAttributes(DecisionAttrs(c.inner.Model(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens, len(resp.ToolCalls))...)
		span.SetAttributes(attribute.String("stop_reason", resp.StopReason))
	}
	c.logger.Info("decision request completed: phase=%s latency=%s tool_calls=%d tokens=%d",
		phase, latency, len(resp.ToolCalls), resp.Usage.TotalTokens)
	return resp, nil
}

func (c *InstrumentedLLMClient) Model() string {
	return c.inner.Model()
}

func requestPhase(req ports.CompletionRequest) string {
	if req.Metadata == nil {
		return "unknown"
	}
	if phase, ok := req.Metadata[PhaseMetadataKey]; ok {
		return fmt.Sprint(phase)
	}
	return "unknown"
}
