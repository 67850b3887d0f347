// File: internal/injector/readiness.go
package injector

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrNotReady is returned by Gate.Wait when every attempt found the
// environment not ready.
var ErrNotReady = errors.New("environment not ready after all readiness attempts")

// Default readiness bounds.
const (
	DefaultMaxAttempts  = 5
	DefaultInterval     = 3 * time.Second
	DefaultInitialDelay = 100 * time.Millisecond
)

// ProbeFunc reports whether the first injection pass may start. An error is
// treated as not ready.
type ProbeFunc func(ctx context.Context) (bool, error)

// Gate polls a readiness probe a bounded number of times with linear backoff.
type Gate struct {
	MaxAttempts  int
	Interval     time.Duration
	InitialDelay time.Duration
	Logger       *zap.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate returns a Gate with the default bounds.
func NewGate(logger *zap.Logger) *Gate {
	return &Gate{
		MaxAttempts:  DefaultMaxAttempts,
		Interval:     DefaultInterval,
		InitialDelay: DefaultInitialDelay,
		Logger:       logger,
	}
}

// Wait sleeps InitialDelay, then probes up to MaxAttempts times, waiting
// Interval*attempt after each failed attempt. It returns nil once the probe
// reports ready, ErrNotReady when the attempts run out, or the context error.
func (g *Gate) Wait(ctx context.Context, probe ProbeFunc) error {
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("readiness")

	sleep := g.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	maxAttempts := g.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	if err := sleep(ctx, g.InitialDelay); err != nil {
		return err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ready, err := probe(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Debug("Readiness probe failed.", zap.Int("attempt", attempt), zap.Error(err))
		}
		if ready {
			logger.Info("Environment ready.", zap.Int("attempt", attempt))
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		backoff := g.Interval * time.Duration(attempt)
		logger.Info("Environment not ready yet, retrying.",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", backoff),
		)
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
	}

	logger.Warn("Environment never became ready; giving up.", zap.Int("attempts", maxAttempts))
	return ErrNotReady
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
