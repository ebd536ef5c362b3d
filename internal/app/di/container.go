// Package di wires configuration into the retouching service and its
// collaborators.
package di

import (
	"context"
	"time"

	"retouch/internal/app/retouch"
	"retouch/internal/app/toolregistry"
	"retouch/internal/domain/adjust"
	"retouch/internal/domain/agent/ports"
	"retouch/internal/infra/automation"
	"retouch/internal/infra/codec"
	"retouch/internal/infra/llm"
	"retouch/internal/infra/observability"
	"retouch/internal/shared/config"
	"retouch/internal/shared/logging"
)

// Container holds all application dependencies.
type Container struct {
	Config        config.Config
	Library       *adjust.Library
	Registry      *toolregistry.Registry
	Dispatcher    *toolregistry.Dispatcher
	Renderer      *codec.Renderer
	Observability *observability.Observability
	// Automation is nil unless automation.enabled is set.
	Automation *automation.Automation
	Retouch    *retouch.Service

	llmFactory    *llm.Factory
	decisionMaker ports.LLMClient
	logger        logging.Logger
}

// Option customises BuildContainer.
type Option func(*containerBuilder)

// WithDecisionMaker makes every session use client instead of building one
// from the llm section.
func WithDecisionMaker(client ports.LLMClient) Option {
	return func(b *containerBuilder) {
		b.decisionMaker = client
	}
}

// WithDriver replaces the recording automation driver.
func WithDriver(driver automation.Driver) Option {
	return func(b *containerBuilder) {
		b.driver = driver
	}
}

// WithLogger overrides the container logger.
func WithLogger(logger logging.Logger) Option {
	return func(b *containerBuilder) {
		b.logger = logging.OrNop(logger)
	}
}

// DecisionMaker returns the client for a new session. Scripted clients are
// rebuilt per call; network clients are shared through the factory cache.
func (c *Container) DecisionMaker() (ports.LLMClient, error) {
	if c.decisionMaker != nil {
		return c.decisionMaker, nil
	}
	cfg := c.Config.LLM
	client, err := c.llmFactory.GetClient(llm.Config{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		ScriptPath: cfg.ScriptPath,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	return observability.NewInstrumentedLLMClient(client, c.Observability.Tracer, c.Observability.Metrics,
		logging.NewLLMLogger("decision")), nil
}

const shutdownTimeout = 5 * time.Second

// Shutdown flushes metrics and traces.
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := c.Observability.Shutdown(ctx); err != nil {
		c.logger.Error("Failed to flush observability: %v", err)
		return err
	}
	c.logger.Info("Container shutdown complete")
	return nil
}
