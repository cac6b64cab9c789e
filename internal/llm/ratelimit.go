package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client with a limiter shared across all harness
// workers, keeping aggregate request rate to the backend bounded.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimitedClient creates a rate-limited client. rps <= 0 disables
// limiting.
func NewRateLimitedClient(inner Client, rps float64) *RateLimitedClient {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

// Decide implements Client, waiting for a rate token before delegating.
func (c *RateLimitedClient) Decide(ctx context.Context, req Request) (Decision, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Decision{}, err
		}
	}
	return c.inner.Decide(ctx, req)
}
