// Package retry provides backoff retry logic with optional jitter.
//
// This package implements configurable retry strategies:
//   - Exponential or constant backoff with optional jitter
//   - Bounded or unbounded retry attempts
//   - Context-aware cancellation
//   - Immediate stop on errors wrapped with Stop
//
// # Usage
//
//	cfg := retry.BackoffConfig{
//		InitialInterval: time.Second,
//		MaxInterval:     time.Second,
//		Multiplier:      1.0,
//		MaxRetries:      retry.Unbounded,
//	}
//
//	err := retry.WithRetry(ctx, func() error {
//		if err := os.Symlink(target, name()); err != nil {
//			if errors.Is(err, fs.ErrExist) {
//				return err
//			}
//			return retry.Stop(err)
//		}
//		return nil
//	}, cfg)
//
// # Jitter
//
// Jitter adds randomness so that concurrent processes colliding on the
// same resource do not retry in lockstep. With jitter enabled, the
// actual delay is: baseDelay * (0.5 + random(0, 0.5))
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/migadu/vquota/logger"
)

// Unbounded as MaxRetries retries until the operation succeeds, returns a
// StopError or the context is done.
const Unbounded = -1

type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          bool
	MaxRetries      int
}

// ConstantBackoffConfig retries every interval, forever.
func ConstantBackoffConfig(interval time.Duration) BackoffConfig {
	return BackoffConfig{
		InitialInterval: interval,
		MaxInterval:     interval,
		Multiplier:      1.0,
		Jitter:          false,
		MaxRetries:      Unbounded,
	}
}

func ExponentialBackoff(config BackoffConfig) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt <= 0 {
			return config.InitialInterval
		}

		interval := float64(config.InitialInterval) * math.Pow(config.Multiplier, float64(attempt-1))

		if interval > float64(config.MaxInterval) {
			interval = float64(config.MaxInterval)
		}

		duration := time.Duration(interval)

		if config.Jitter && duration/2 > 0 {
			jitter := time.Duration(rand.Int63n(int64(duration / 2)))
			duration = duration/2 + jitter
		}

		return duration
	}
}

type RetryableFunc func() error

// StopError wraps an error to indicate that retries should stop immediately
type StopError struct {
	Err error
}

func (s StopError) Error() string {
	return s.Err.Error()
}

func (s StopError) Unwrap() error {
	return s.Err
}

// Stop wraps an error to indicate that retries should stop immediately
func Stop(err error) error {
	return StopError{Err: err}
}

// IsStopError checks if an error is a StopError
func IsStopError(err error) bool {
	var stopErr StopError
	return errors.As(err, &stopErr)
}

// WithRetry calls fn until it succeeds, the attempts are used up, the
// context is done or fn returns a StopError. A StopError is unwrapped
// before it is returned.
func WithRetry(ctx context.Context, fn RetryableFunc, config BackoffConfig) error {
	backoff := ExponentialBackoff(config)

	var lastErr error
	for attempt := 0; config.MaxRetries < 0 || attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry cancelled by context after %d attempts: %w (last error: %v)", attempt, ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		var stopErr StopError
		if errors.As(err, &stopErr) {
			logger.Debug("Retry stopped", "attempt", attempt+1, "error", stopErr.Err)
			return stopErr.Err
		}
		logger.Debug("Retrying after error", "attempt", attempt+1, "error", err)
		lastErr = err
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}
