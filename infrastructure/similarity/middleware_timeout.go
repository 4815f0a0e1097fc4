package similarity

import (
	"context"
	"time"
)

// timeoutEmbedder bounds each request with a deadline.
type timeoutEmbedder struct {
	next    Embedder
	timeout time.Duration
}

// TimeoutMiddleware bounds each request to timeout. A non-positive
// timeout leaves the caller's context unchanged.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Embedder) Embedder {
		return &timeoutEmbedder{next: next, timeout: timeout}
	}
}

// Embed forwards the request under a derived deadline.
func (t *timeoutEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if t.timeout <= 0 {
		return t.next.Embed(ctx, texts)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Embed(ctx, texts)
}

// Model returns the model name from the wrapped embedder.
func (t *timeoutEmbedder) Model() string { return t.next.Model() }
