package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"retouch/internal/domain/agent/ports"
	retoucherrors "retouch/internal/shared/errors"
	"retouch/internal/shared/logging"
)

// retryClient wraps a decision-maker with retry logic and a circuit breaker.
type retryClient struct {
	underlying     ports.LLMClient
	retryConfig    retoucherrors.RetryConfig
	circuitBreaker *retoucherrors.CircuitBreaker
	logger         logging.Logger
}

var _ ports.LLMClient = (*retryClient)(nil)

// NewRetryClient wraps client with retry and circuit breaker logic. Only
// transient failures are retried.
func NewRetryClient(client ports.LLMClient, retryConfig retoucherrors.RetryConfig, circuitBreaker *retoucherrors.CircuitBreaker) ports.LLMClient {
	logger := logging.NewLLMLogger("llm-retry")
	if retryConfig.OnRetry == nil {
		retryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Info("%s: retry %d in %v: %s", client.Model(), attempt, delay, retoucherrors.FormatForOperator(err))
		}
	}
	return &retryClient{
		underlying:     client,
		retryConfig:    retryConfig,
		circuitBreaker: circuitBreaker,
		logger:         logger,
	}
}

// WrapWithRetry builds a breaker named after the model and wraps client.
func WrapWithRetry(client ports.LLMClient, retryConfig retoucherrors.RetryConfig, circuitBreakerConfig retoucherrors.CircuitBreakerConfig) ports.LLMClient {
	circuitBreaker := retoucherrors.NewCircuitBreaker(
		fmt.Sprintf("llm-%s", client.Model()),
		circuitBreakerConfig,
		logging.NewLLMLogger("circuit-breaker"),
	)
	return NewRetryClient(client, retryConfig, circuitBreaker)
}

// Complete executes the completion with retry logic
func (c *retryClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	startTime := time.Now()

	resp, err := retoucherrors.RetryWithResult(ctx, c.retryConfig, func(ctx context.Context) (*ports.CompletionResponse, error) {
		return retoucherrors.ExecuteFunc(c.circuitBreaker, ctx, func(ctx context.Context) (*ports.CompletionResponse, error) {
			response, err := c.underlying.Complete(ctx, req)
			if err != nil {
				return nil, classifyLLMError(err)
			}
			return response, nil
		})
	}, c.logger)

	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("decision request failed after retries (took %v): %s", duration, retoucherrors.FormatForOperator(err))
		return nil, err
	}
	if duration > 5*time.Second {
		c.logger.Debug("decision request succeeded after %v", duration)
	}
	return resp, nil
}

// Model returns the underlying model name
func (c *retryClient) Model() string {
	return c.underlying.Model()
}

// classifyLLMError tags untyped failures as transient or permanent. Errors
// that already carry a classification, and context errors, are returned
// unchanged.
func classifyLLMError(err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	lowerErr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErr, "429") || strings.Contains(lowerErr, "rate limit"):
		return retoucherrors.NewTransientError(err, "Decision service rate limit reached; retrying with backoff.")
	case strings.Contains(lowerErr, "500") || strings.Contains(lowerErr, "internal server error"),
		strings.Contains(lowerErr, "502") || strings.Contains(lowerErr, "bad gateway"),
		strings.Contains(lowerErr, "503") || strings.Contains(lowerErr, "service unavailable"),
		strings.Contains(lowerErr, "504") || strings.Contains(lowerErr, "gateway timeout"):
		return retoucherrors.NewTransientError(err, "Decision service error; retrying.")
	case strings.Contains(lowerErr, "connection refused"),
		strings.Contains(lowerErr, "connection reset") || strings.Contains(lowerErr, "broken pipe"):
		return retoucherrors.NewTransientError(err, retoucherrors.FormatForOperator(err))
	case strings.Contains(lowerErr, "401") || strings.Contains(lowerErr, "unauthorized"):
		return retoucherrors.NewPermanentError(err, "Decision service rejected the API key. Check llm.api_key.")
	case strings.Contains(lowerErr, "404") || strings.Contains(lowerErr, "not found"):
		return retoucherrors.NewPermanentError(err, "Model or endpoint not found. Check llm.model and llm.base_url.")
	}
	return err
}

func isClassified(err error) bool {
	var transientErr *retoucherrors.TransientError
	var permanentErr *retoucherrors.PermanentError
	return errors.As(err, &transientErr) || errors.As(err, &permanentErr)
}
