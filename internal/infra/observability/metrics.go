package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"retouch/internal/shared/logging"
)

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port" yaml:"prometheus_port"`
}

// MetricsCollector records retouching metrics. A zero value is a valid no-op
// collector so callers never need nil checks.
type MetricsCollector struct {
	dispatches      metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	sessions        metric.Int64Counter
	stepDuration    metric.Float64Histogram
	decisionLatency metric.Float64Histogram
	decisions       metric.Int64Counter

	provider         *sdkmetric.MeterProvider
	prometheusServer *http.Server
	logger           logging.Logger

	testHooks MetricsTestHooks
}

// MetricsTestHooks lets tests observe recordings without an OTel pipeline.
type MetricsTestHooks struct {
	Dispatch func(tool, outcome string, duration time.Duration)
	Session  func(outcome string, steps int)
	Step     func(outcome string, duration time.Duration)
	Decision func(phase, status string, latency time.Duration)
}

// SetTestHooks registers callbacks invoked whenever the matching metric is
// recorded.
func (m *MetricsCollector) SetTestHooks(hooks MetricsTestHooks) {
	if m == nil {
		return
	}
	m.testHooks = hooks
}

// NewMetricsCollector creates a collector backed by the Prometheus exporter.
func NewMetricsCollector(config MetricsConfig, logger logging.Logger) (*MetricsCollector, error) {
	logger = logging.OrNop(logger)
	if !config.Enabled {
		return &MetricsCollector{logger: logger}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	collector, err := newCollector(provider.Meter("retouch"))
	if err != nil {
		return nil, err
	}
	collector.provider = provider
	collector.logger = logger

	if config.PrometheusPort > 0 {
		collector.startPrometheusServer(config.PrometheusPort)
	}
	return collector, nil
}

func newCollector(meter metric.Meter) (*MetricsCollector, error) {
	dispatches, err := meter.Int64Counter(
		"retouch.dispatch.total",
		metric.WithDescription("Total number of dispatched operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch counter: %w", err)
	}
	dispatchLatency, err := meter.Float64Histogram(
		"retouch.dispatch.duration",
		metric.WithDescription("Time spent applying one operation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch histogram: %w", err)
	}
	sessions, err := meter.Int64Counter(
		"retouch.session.total",
		metric.WithDescription("Finished sessions by outcome"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session counter: %w", err)
	}
	stepDuration, err := meter.Float64Histogram(
		"retouch.step.duration",
		metric.WithDescription("Duration of one execute-reflect step"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create step histogram: %w", err)
	}
	decisionLatency, err := meter.Float64Histogram(
		"retouch.decision.latency",
		metric.WithDescription("Decision-maker round trip latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision histogram: %w", err)
	}
	decisions, err := meter.Int64Counter(
		"retouch.decision.total",
		metric.WithDescription("Decision-maker requests by status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision counter: %w", err)
	}

	return &MetricsCollector{
		dispatches:      dispatches,
		dispatchLatency: dispatchLatency,
		sessions:        sessions,
		stepDuration:    stepDuration,
		decisionLatency: decisionLatency,
		decisions:       decisions,
	}, nil
}

func (m *MetricsCollector) startPrometheusServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())
	m.prometheusServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		m.logger.Info("Prometheus metrics server listening on :%d", port)
		if err := m.prometheusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("Prometheus server error: %v", err)
		}
	}()
}

// Shutdown stops the scrape endpoint and flushes the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	if m.prometheusServer != nil {
		errs = append(errs, m.prometheusServer.Shutdown(ctx))
	}
	if m.provider != nil {
		errs = append(errs, m.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// RecordDispatch records one dispatched operation.
func (m *MetricsCollector) RecordDispatch(ctx context.Context, tool, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if m.testHooks.Dispatch != nil {
		m.testHooks.Dispatch(tool, outcome, duration)
	}
	if m.dispatches == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool), attribute.String("outcome", outcome))
	m.dispatches.Add(ctx, 1, attrs)
	m.dispatchLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordSession records a finished session.
func (m *MetricsCollector) RecordSession(ctx context.Context, outcome string, steps int) {
	if m == nil {
		return
	}
	if m.testHooks.Session != nil {
		m.testHooks.Session(outcome, steps)
	}
	if m.sessions == nil {
		return
	}
	m.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStep records one execute-reflect step.
func (m *MetricsCollector) RecordStep(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if m.testHooks.Step != nil {
		m.testHooks.Step(outcome, duration)
	}
	if m.stepDuration == nil {
		return
	}
	m.stepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDecision records one decision-maker request.
func (m *MetricsCollector) RecordDecision(ctx context.Context, phase, status string, latency time.Duration) {
	if m == nil {
		return
	}
	if m.testHooks.Decision != nil {
		m.testHooks.Decision(phase, status, latency)
	}
	if m.decisions == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("phase", phase), attribute.String("status", status))
	m.decisions.Add(ctx, 1, attrs)
	m.decisionLatency.Record(ctx, latency.Seconds(), attrs)
}
