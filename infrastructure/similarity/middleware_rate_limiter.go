package similarity

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedEmbedder paces requests with a token bucket. One token is
// spent per request, regardless of how many texts it carries.
type rateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// RateLimitMiddleware limits requests to limit per second with the given
// burst. The limiter is shared by every embedder the middleware wraps.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next Embedder) Embedder {
		return &rateLimitedEmbedder{next: next, limiter: limiter}
	}
}

// Embed waits for a token before forwarding the request.
func (r *rateLimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Embed(ctx, texts)
}

// Model returns the model name from the wrapped embedder.
func (r *rateLimitedEmbedder) Model() string { return r.next.Model() }
