package llm

import (
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"retouch/internal/domain/agent/ports"
	retoucherrors "retouch/internal/shared/errors"
)

// Provider names accepted in Config.Provider.
const (
	ProviderOpenAI   = "openai"
	ProviderScripted = "scripted"
)

// Config selects and tunes a decision-maker client.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	ScriptPath string

	// RateLimit is requests per second across all sessions; 0 disables it.
	RateLimit float64
	RateBurst int

	// MaxRetries counts retries after the first attempt; negative disables
	// the retry decorator.
	MaxRetries int
}

// Factory builds decision-maker clients and caches them, so sessions sharing
// a configuration share one rate limiter and circuit breaker.
type Factory struct {
	cache                *lru.Cache[string, ports.LLMClient]
	mu                   sync.Mutex
	retryConfig          retoucherrors.RetryConfig
	circuitBreakerConfig retoucherrors.CircuitBreakerConfig
}

const defaultLLMCacheSize = 16

func NewFactory() *Factory {
	return NewFactoryWithRetryConfig(retoucherrors.DefaultRetryConfig(), retoucherrors.DefaultCircuitBreakerConfig())
}

// NewFactoryWithRetryConfig creates a factory with custom retry configuration
func NewFactoryWithRetryConfig(retryConfig retoucherrors.RetryConfig, circuitBreakerConfig retoucherrors.CircuitBreakerConfig) *Factory {
	cache, err := lru.New[string, ports.LLMClient](defaultLLMCacheSize)
	if err != nil {
		cache = nil
	}
	return &Factory{
		cache:                cache,
		retryConfig:          retryConfig,
		circuitBreakerConfig: circuitBreakerConfig,
	}
}

// GetClient returns the cached client for cfg, building it on first use.
// Scripted clients keep a per-phase cursor, so each call gets a fresh one.
func (f *Factory) GetClient(cfg Config) (ports.LLMClient, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Provider), ProviderScripted) {
		return f.build(cfg)
	}
	key := cacheKey(cfg)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cache != nil {
		if client, ok := f.cache.Get(key); ok {
			return client, nil
		}
	}
	client, err := f.build(cfg)
	if err != nil {
		return nil, err
	}
	if f.cache != nil {
		f.cache.Add(key, client)
	}
	return client, nil
}

func (f *Factory) build(cfg Config) (ports.LLMClient, error) {
	var (
		client ports.LLMClient
		err    error
	)
	switch provider := strings.ToLower(strings.TrimSpace(cfg.Provider)); provider {
	case "", ProviderOpenAI:
		client, err = NewOpenAIClient(cfg)
	case ProviderScripted:
		if strings.TrimSpace(cfg.ScriptPath) == "" {
			return nil, fmt.Errorf("scripted provider needs llm.script_path")
		}
		script, loadErr := LoadScript(cfg.ScriptPath)
		if loadErr != nil {
			return nil, loadErr
		}
		if cfg.Model != "" {
			script.Model = cfg.Model
		}
		return WrapWithRateLimit(NewScriptedClient(script), rate.Limit(cfg.RateLimit), cfg.RateBurst), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxRetries >= 0 {
		retryConfig := f.retryConfig
		if cfg.MaxRetries > 0 {
			retryConfig.MaxAttempts = cfg.MaxRetries
		}
		client = WrapWithRetry(client, retryConfig, f.circuitBreakerConfig)
	}
	return WrapWithRateLimit(client, rate.Limit(cfg.RateLimit), cfg.RateBurst), nil
}

func cacheKey(cfg Config) string {
	return strings.Join([]string{
		strings.ToLower(cfg.Provider), cfg.Model, cfg.BaseURL, cfg.ScriptPath, cfg.APIKey,
		fmt.Sprintf("%g/%d/%d", cfg.RateLimit, cfg.RateBurst, cfg.MaxRetries),
	}, "|")
}
