// Package retry re-invokes fallible operations with a fixed delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/people-email-enricher/internal/metrics"
)

// ErrNoAttempts is wrapped by ExhaustedError when the policy allowed zero attempts.
var ErrNoAttempts = errors.New("retry: no attempts were made")

// Policy bounds the number of attempts and the pause between them.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Default returns the 3 attempts / 5 seconds policy used for all remote calls.
func Default() Policy {
	return Policy{MaxAttempts: 3, Delay: 5 * time.Second}
}

// ExhaustedError reports that every attempt of Op failed. Err is the last failure.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do calls fn until it succeeds or the policy is exhausted.
func Do[T any](
	ctx context.Context,
	policy Policy,
	logger *zap.Logger,
	op string,
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	attempts := 0
	for attempts < policy.MaxAttempts {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}
		result, err := fn(ctx)
		attempts++
		if err == nil {
			metrics.ObserveRetryAttempt(op, "success")
			return result, nil
		}
		lastErr = err
		metrics.ObserveRetryAttempt(op, "failure")
		logger.Error("operation failed",
			zap.String("operation", op),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Error(err),
		)
		if attempts >= policy.MaxAttempts {
			break
		}
		logger.Info("retrying operation",
			zap.String("operation", op),
			zap.Duration("delay", policy.Delay),
		)
		if err := sleepWithContext(ctx, policy.Delay); err != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = ErrNoAttempts
	}
	metrics.ObserveRetryAttempt(op, "exhausted")
	logger.Warn("reached maximum retry count",
		zap.String("operation", op),
		zap.Int("attempts", attempts),
		zap.Int("max_attempts", policy.MaxAttempts),
	)
	return zero, &ExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, policy Policy, logger *zap.Logger, op string, fn func(context.Context) error) error {
	_, err := Do(ctx, policy, logger, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
