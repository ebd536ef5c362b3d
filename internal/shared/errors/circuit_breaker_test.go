package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterTransientFailures(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("decision", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute}, nil)
	cb.now = func() time.Time { return now }

	fail := func(context.Context) (int, error) { return 0, NewTransientError(errors.New("503"), "down") }
	for i := 0; i < 2; i++ {
		_, err := ExecuteFunc(cb, context.Background(), fail)
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, cb.State())

	_, err := ExecuteFunc(cb, context.Background(), func(context.Context) (int, error) {
		t.Fatal("call must be short-circuited")
		return 0, nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsPermanent(err))

	now = now.Add(2 * time.Minute)
	got, err := ExecuteFunc(cb, context.Background(), func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresPermanentFailures(t *testing.T) {
	cb := NewCircuitBreaker("decision", CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute}, nil)
	_, err := ExecuteFunc(cb, context.Background(), func(context.Context) (int, error) {
		return 0, NewPermanentError(errors.New("400"), "bad request")
	})
	require.Error(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerCustomFailureAndStateHook(t *testing.T) {
	var transitions []string
	cfg := CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		IsFailure:        func(err error) bool { return err != nil },
		OnStateChange: func(name string, from, to CircuitState) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	}
	cb := NewCircuitBreaker("automation", cfg, nil)

	_, err := ExecuteFunc(cb, context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("pointer driver failed")
	})
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, []string{"automation:closed->open"}, transitions)
}
