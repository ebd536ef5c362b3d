package errors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"retouch/internal/shared/logging"
)

// ErrCircuitOpen is wrapped by every call the breaker short-circuits.
var ErrCircuitOpen = errors.New("circuit breaker open")

type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig sets the trip and recovery thresholds.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the breaker
	SuccessThreshold int           // half-open successes that close it again
	Timeout          time.Duration // how long it stays open before probing

	// IsFailure decides which errors count against the breaker. Nil means
	// IsTransient: a rejected request says nothing about availability.
	IsFailure func(error) bool
	// OnStateChange observes every transition.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig opens after five failures and probes again
// after thirty seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker fails calls fast once a dependency (the decision service,
// the editor under automation) has failed repeatedly.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	successes int
	openedAt  time.Time
}

func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger logging.Logger) *CircuitBreaker {
	if config.IsFailure == nil {
		config.IsFailure = IsTransient
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// ExecuteFunc runs fn unless the breaker is open.
func ExecuteFunc[T any](cb *CircuitBreaker, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.admit(); err != nil {
		return zero, err
	}
	result, err := fn(ctx)
	cb.record(err)
	return result, err
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	wait := cb.config.Timeout - cb.now().Sub(cb.openedAt)
	if wait > 0 {
		return &PermanentError{
			Err:     fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name),
			Message: fmt.Sprintf("%s is unavailable after repeated failures; retry in %v", cb.name, wait.Round(time.Second)),
		}
	}
	cb.successes = 0
	cb.transition(StateHalfOpen)
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err == nil:
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.transition(StateClosed)
			}
		}
	case !cb.config.IsFailure(err):
	case cb.state == StateHalfOpen:
		cb.openedAt = cb.now()
		cb.transition(StateOpen)
	default:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.openedAt = cb.now()
			cb.transition(StateOpen)
		}
	}
}

// transition is called with mu held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateClosed {
		cb.failures, cb.successes = 0, 0
	}
	if to == StateOpen {
		cb.logger.Warn("[%s] breaker %s -> %s after %d failures", cb.name, from, to, cb.failures)
	} else {
		cb.logger.Info("[%s] breaker %s -> %s", cb.name, from, to)
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, to)
	}
}
