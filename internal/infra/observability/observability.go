package observability

import (
	"context"
	"errors"

	"retouch/internal/shared/logging"
)

// Config groups the metrics and tracing settings.
type Config struct {
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// Observability owns the metrics collector and tracer provider for one
// process.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerProvider
	logger  logging.Logger
}

// New initialises metrics and tracing. Failures degrade to no-op components
// rather than aborting the run.
func New(config Config, logger logging.Logger) *Observability {
	logger = logging.OrNop(logger)

	metrics, err := NewMetricsCollector(config.Metrics, logger)
	if err != nil {
		logger.Error("Failed to initialize metrics: %v", err)
		metrics = &MetricsCollector{}
	}
	tracer, err := NewTracerProvider(config.Tracing)
	if err != nil {
		logger.Error("Failed to initialize tracing: %v", err)
		tracer, _ = NewTracerProvider(TracingConfig{})
	}

	logger.Info("Observability initialized: metrics=%t tracing=%t", config.Metrics.Enabled, config.Tracing.Enabled)
	return &Observability{Metrics: metrics, Tracer: tracer, logger: logger}
}

// Shutdown flushes metrics and traces.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	return errors.Join(o.Metrics.Shutdown(ctx), o.Tracer.Shutdown(ctx))
}
