package similarity

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// retryEmbedder retries transient failures with jittered exponential
// backoff.
type retryEmbedder struct {
	next       Embedder
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries requests that fail with a retryable
// ProviderError up to maxRetries times. Non-retryable errors, an open
// circuit, and a done context end the loop immediately.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next Embedder) Embedder {
		return &retryEmbedder{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// Embed forwards the request, retrying transient failures.
func (r *retryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		vectors, err := r.next.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil || attempt == r.maxRetries {
			break
		}

		timer := time.NewTimer(r.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("embedding failed after %d attempt(s): %w", r.attempts(lastErr), lastErr)
}

func (r *retryEmbedder) attempts(err error) int {
	if retryable(err) {
		return r.maxRetries + 1
	}
	return 1
}

// Model returns the model name from the wrapped embedder.
func (r *retryEmbedder) Model() string { return r.next.Model() }

func (r *retryEmbedder) delay(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	// #nosec G115 - attempt is bounded between 0 and 30
	d := r.baseDelay * time.Duration(1<<uint(attempt))

	// ±25% jitter.
	// #nosec G404 - weak RNG is fine for jitter
	d = d - d/4 + time.Duration(rand.Float64()*float64(d)*0.5)

	if r.maxDelay > 0 && d > r.maxDelay {
		d = r.maxDelay
	}
	return d
}

func retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return false
}
