// Package retry provides exponential backoff with jitter for provider calls.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alphamachine/engine/internal/errs"
)

// Config configures retry behavior for provider operations
type Config struct {
	MaxAttempts    int           // Total attempts including the first call
	InitialBackoff time.Duration // Base delay before the first retry
	MaxBackoff     time.Duration // Backoff cap
	BackoffFactor  float64       // Multiplier for exponential backoff
	Jitter         float64       // Fraction of the delay randomized, 0..1
}

// DefaultConfig returns the default retry policy: 3 attempts, 0.5-1.0s
// initial delay, 8s cap.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         1.0,
	}
}

// Operation is a single retryable provider call
type Operation func() error

// Do executes an operation, retrying transient failures with exponential
// backoff. Non-transient failures abort immediately so the caller can move
// on to the next provider in the chain.
func Do(ctx context.Context, config Config, op string, operation Operation) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	backoff := config.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return errs.E(errs.KindTransient, op, fmt.Errorf("cancelled: %w", ctx.Err()))
		default:
		}

		err := operation()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("op", op).
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !errs.IsTransient(err) {
			log.Debug().
				Err(err).
				Str("op", op).
				Msg("Error is not retryable, aborting")
			return err
		}

		if attempt == config.MaxAttempts {
			break
		}

		delay := withJitter(backoff, config.Jitter)
		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", config.MaxAttempts).
			Dur("backoff", delay).
			Msg("Operation failed, retrying with backoff")

		select {
		case <-ctx.Done():
			return errs.E(errs.KindTransient, op, fmt.Errorf("cancelled during backoff: %w", ctx.Err()))
		case <-time.After(delay):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffFactor)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// withJitter randomizes the delay into [d, d*(1+jitter)]
func withJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*jitter*float64(d))
}
