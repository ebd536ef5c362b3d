package errors

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"retouch/internal/shared/logging"
)

// RetryConfig bounds how a transient failure is retried.
type RetryConfig struct {
	MaxAttempts  int // retries after the first call
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // 0.25 spreads each delay by ±25%

	// OnRetry runs before each wait. attempt counts from 1.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig is what the decision-maker client uses when the
// configuration does not say otherwise.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
	}
}

// Retry is RetryWithResult for functions without a result.
func Retry(ctx context.Context, config RetryConfig, fn func(ctx context.Context) error, logger logging.Logger) error {
	_, err := RetryWithResult(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, logger)
	return err
}

// RetryWithResult calls fn until it succeeds, returns a non-transient
// error, or the retry budget runs out. A TransientError carrying RetryAfter
// overrides the computed backoff.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error), logger logging.Logger) (T, error) {
	logger = logging.OrNop(logger)
	var zero T

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("succeeded on attempt %d", attempt+1)
			}
			return result, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		if attempt >= config.MaxAttempts {
			logger.Warn("giving up after %d attempts: %v", attempt+1, err)
			return zero, fmt.Errorf("max retries exceeded: %w", err)
		}

		delay := retryDelay(attempt, err, config)
		logger.Debug("attempt %d failed (%v); waiting %v", attempt+1, err, delay)
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

func retryDelay(attempt int, err error, config RetryConfig) time.Duration {
	var transient *TransientError
	if errors.As(err, &transient) && transient.RetryAfter > 0 {
		delay := time.Duration(transient.RetryAfter) * time.Second
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			return config.MaxDelay
		}
		return delay
	}
	return calculateBackoff(attempt, config)
}

// calculateBackoff is BaseDelay doubled per attempt, jittered, then capped.
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(2, float64(attempt))
	if config.JitterFactor > 0 {
		delay += delay * config.JitterFactor * (rand.Float64()*2 - 1)
	}
	if limit := float64(config.MaxDelay); limit > 0 && delay > limit {
		delay = limit
	}
	if delay < 0 {
		delay = float64(config.BaseDelay)
	}
	return time.Duration(delay)
}
