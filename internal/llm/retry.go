package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ksadov/backcast/internal/config"
)

// RetryClient wraps a Client with bounded exponential backoff on transient
// backend faults. Malformed output and context cancellation pass through
// immediately.
type RetryClient struct {
	inner Client
	cfg   config.RetryConfig
}

// NewRetryClient wraps inner with the given retry policy.
func NewRetryClient(inner Client, cfg config.RetryConfig) *RetryClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}
	return &RetryClient{inner: inner, cfg: cfg}
}

// Decide implements Client.
func (c *RetryClient) Decide(ctx context.Context, req Request) (Decision, error) {
	delay := time.Duration(c.cfg.InitialDelayMs) * time.Millisecond
	maxDelay := time.Duration(c.cfg.MaxDelayMs) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		decision, err := c.inner.Decide(ctx, req)
		if err == nil {
			return decision, nil
		}
		lastErr = err

		if !Transient(err) {
			return Decision{}, err
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		slog.Debug("retrying completion call",
			"attempt", attempt,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * c.cfg.Multiplier)
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
	}

	return Decision{}, fmt.Errorf("completion call failed after %d attempt(s): %w", c.cfg.MaxAttempts, lastErr)
}
