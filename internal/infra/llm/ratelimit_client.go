package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"retouch/internal/domain/agent/ports"
)

// rateLimitedClient spaces decision requests with a token bucket shared by
// every session using the client.
type rateLimitedClient struct {
	underlying ports.LLMClient
	limiter    *rate.Limiter
}

var _ ports.LLMClient = (*rateLimitedClient)(nil)

// WrapWithRateLimit returns client unchanged when limit is not positive.
func WrapWithRateLimit(client ports.LLMClient, limit rate.Limit, burst int) ports.LLMClient {
	if limit <= 0 {
		return client
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedClient{underlying: client, limiter: rate.NewLimiter(limit, burst)}
}

func (c *rateLimitedClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return c.underlying.Complete(ctx, req)
}

func (c *rateLimitedClient) Model() string {
	return c.underlying.Model()
}
