package di

import (
	"context"
	"errors"
	"fmt"

	"retouch/internal/app/retouch"
	"retouch/internal/app/toolregistry"
	"retouch/internal/domain/adjust"
	"retouch/internal/domain/agent/ports"
	"retouch/internal/infra/automation"
	"retouch/internal/infra/codec"
	"retouch/internal/infra/llm"
	"retouch/internal/infra/observability"
	"retouch/internal/infra/output"
	"retouch/internal/shared/config"
	retoucherrors "retouch/internal/shared/errors"
	"retouch/internal/shared/logging"
)

type containerBuilder struct {
	config        config.Config
	logger        logging.Logger
	decisionMaker ports.LLMClient
	driver        automation.Driver
}

// BuildContainer builds the container for cfg. Configuration is expected to
// have passed validation; construction errors here are wiring failures.
func BuildContainer(cfg config.Config, opts ...Option) (*Container, error) {
	b := &containerBuilder{
		config: cfg,
		logger: logging.NewComponentLogger("DI"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b.Build()
}

func (b *containerBuilder) Build() (*Container, error) {
	b.config.Session.OutputDir = output.ResolveDir(b.config.Session.OutputDir, config.DefaultOutputDir)
	b.logger.Debug("Building container with output_dir=%s provider=%s", b.config.Session.OutputDir, b.config.LLM.Provider)

	library, err := adjust.NewLibrary(adjust.Options{
		ContrastMode: adjust.ContrastMode(b.config.Adjust.ContrastMode),
		WhitesMode:   adjust.WhitesMode(b.config.Adjust.WhitesMode),
		LUTCacheSize: b.config.Adjust.LUTCacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("adjustment library: %w", err)
	}
	registry, err := toolregistry.NewRegistry(toolregistry.Config{Library: library})
	if err != nil {
		return nil, fmt.Errorf("tool registry: %w", err)
	}

	obs := b.buildObservability()
	auto, err := b.buildAutomation()
	if err != nil {
		return nil, err
	}

	dispatcherOpts := []toolregistry.DispatcherOption{
		toolregistry.WithDispatchRecorder(obs.Metrics),
	}
	if auto != nil {
		dispatcherOpts = append(dispatcherOpts, toolregistry.WithAutomation(auto))
	}
	dispatcher := toolregistry.NewDispatcher(registry, dispatcherOpts...)
	renderer := codec.NewRenderer(b.config.Session.AttachmentMaxEdge)

	c := &Container{
		Config:        b.config,
		Library:       library,
		Registry:      registry,
		Dispatcher:    dispatcher,
		Renderer:      renderer,
		Observability: obs,
		Automation:    auto,
		llmFactory:    b.buildLLMFactory(),
		decisionMaker: b.decisionMaker,
		logger:        b.logger,
	}

	session := b.config.Session
	service, err := retouch.NewService(retouch.Dependencies{
		Registry:      registry,
		Dispatcher:    dispatcher,
		Renderer:      renderer,
		DecisionMaker: c.DecisionMaker,
		Metrics:       obs.Metrics,
	}, retouch.Settings{
		OutputDir:        session.OutputDir,
		RetryCeiling:     session.RetryCeiling,
		StepTimeout:      session.StepTimeout,
		HistoryLimit:     session.HistoryLimit,
		PreviewShortEdge: session.PreviewShortEdge,
		GlobalStyle:      session.GlobalStyle,
		Concurrency:      session.Concurrency,
		Temperature:      b.config.LLM.Temperature,
		MaxTokens:        b.config.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	c.Retouch = service
	return c, nil
}

func (b *containerBuilder) buildObservability() *observability.Observability {
	cfg := b.config.Observability
	return observability.New(observability.Config{
		Metrics: observability.MetricsConfig{
			Enabled:        cfg.Metrics.Enabled,
			PrometheusPort: cfg.Metrics.PrometheusPort,
		},
		Tracing: observability.TracingConfig{
			Enabled:        cfg.Tracing.Enabled,
			Exporter:       cfg.Tracing.Exporter,
			OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			SampleRate:     cfg.Tracing.SampleRate,
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: cfg.Tracing.ServiceVersion,
		},
	}, logging.NewComponentLogger("observability"))
}

func (b *containerBuilder) buildAutomation() (*automation.Automation, error) {
	cfg := b.config.Automation
	if !cfg.Enabled {
		return nil, nil
	}
	calibration, err := automation.LoadCalibration(cfg.CalibrationPath)
	if err != nil {
		return nil, fmt.Errorf("automation calibration: %w", err)
	}
	driver := b.driver
	if driver == nil {
		driver = automation.NewRecordingDriver()
		b.logger.Info("Automation uses the recording driver; no pointer events leave the process")
	}
	logger := logging.NewComponentLogger("automation")
	breakerCfg := retoucherrors.DefaultCircuitBreakerConfig()
	breakerCfg.IsFailure = automationFailure
	breaker := retoucherrors.NewCircuitBreaker("automation", breakerCfg, logger)
	return automation.New(calibration, driver,
		automation.WithSettleDelay(cfg.SettleDelay),
		automation.WithCircuitBreaker(breaker),
		automation.WithLogger(logger),
	)
}

// buildLLMFactory keeps one factory per container so sessions with the same
// llm section share a rate limiter and circuit breaker.
func (b *containerBuilder) buildLLMFactory() *llm.Factory {
	return llm.NewFactoryWithRetryConfig(retoucherrors.DefaultRetryConfig(), retoucherrors.DefaultCircuitBreakerConfig())
}

// automationFailure counts driver faults against the breaker. A missing
// calibration or a cancelled session is not the editor's fault.
func automationFailure(err error) bool {
	return !errors.Is(err, automation.ErrUncalibrated) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
