package automation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"retouch/internal/domain/agent/ports"
	retoucherrors "retouch/internal/shared/errors"
	"retouch/internal/shared/logging"
)

// Automation forwards validated values to a driver. Each value becomes a move
// followed by a click on its slider.
type Automation struct {
	calibration *Calibration
	driver      Driver
	breaker     *retoucherrors.CircuitBreaker
	settle      time.Duration
	logger      logging.Logger
}

var _ ports.Automation = (*Automation)(nil)

// Option customises an Automation.
type Option func(*Automation)

// WithSettleDelay waits after every click so the editor can redraw.
func WithSettleDelay(d time.Duration) Option {
	return func(a *Automation) { a.settle = d }
}

// WithCircuitBreaker stops driving the editor after repeated failures.
func WithCircuitBreaker(cb *retoucherrors.CircuitBreaker) Option {
	return func(a *Automation) { a.breaker = cb }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(a *Automation) { a.logger = logging.OrNop(logger) }
}

func New(calibration *Calibration, driver Driver, opts ...Option) (*Automation, error) {
	if calibration == nil {
		return nil, fmt.Errorf("automation: calibration is required")
	}
	if driver == nil {
		return nil, fmt.Errorf("automation: driver is required")
	}
	a := &Automation{
		calibration: calibration,
		driver:      driver,
		logger:      logging.NewComponentLogger("automation"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Perform drives every calibrated value of call in key order. Values without
// a calibrated control are skipped; if none is calibrated it returns
// ErrUncalibrated.
func (a *Automation) Perform(ctx context.Context, call ports.AutomationCall) error {
	if a.breaker == nil {
		return a.perform(ctx, call)
	}
	_, err := retoucherrors.ExecuteFunc(a.breaker, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.perform(ctx, call)
	})
	return err
}

func (a *Automation) perform(ctx context.Context, call ports.AutomationCall) error {
	keys := make([]string, 0, len(call.Values))
	for key := range call.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	driven := 0
	for _, key := range keys {
		control, ok := a.calibration.Binding(call.Operation, key)
		if !ok {
			a.logger.Debug("%s: no binding for %s", call.Operation, key)
			continue
		}
		point, err := a.calibration.Position(control, call.Values[key])
		if err != nil {
			a.logger.Debug("%s: %v", call.Operation, err)
			continue
		}
		if err := a.driver.Move(ctx, point); err != nil {
			return fmt.Errorf("move to %s: %w", control, err)
		}
		if err := a.driver.Click(ctx, point); err != nil {
			return fmt.Errorf("click %s: %w", control, err)
		}
		a.logger.Info("%s: %s=%v -> %s at (%d,%d)", call.Operation, key, call.Values[key], control, point.X, point.Y)
		driven++
		if err := a.wait(ctx); err != nil {
			return err
		}
	}
	if driven == 0 {
		return fmt.Errorf("%w for %s", ErrUncalibrated, call.Operation)
	}
	return nil
}

func (a *Automation) wait(ctx context.Context) error {
	if a.settle <= 0 {
		return nil
	}
	timer := time.NewTimer(a.settle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
