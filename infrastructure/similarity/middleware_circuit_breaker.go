package similarity

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a request.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of a circuit breaker.
type CircuitBreakerState int

// Circuit breaker states.
const (
	// StateClosed lets every request through.
	StateClosed CircuitBreakerState = iota

	// StateOpen rejects requests until the cooldown expires.
	StateOpen

	// StateHalfOpen lets a single probe through after the cooldown.
	StateHalfOpen
)

// String returns a lowercase state name suitable for metric labels.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures and probes
// recovery once cooldown has elapsed.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitBreakerState
	failureCount     int
	maxFailures      int
	cooldownDuration time.Duration
	lastFailure      time.Time
	now              func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		maxFailures:      max(maxFailures, 1),
		cooldownDuration: cooldown,
		now:              time.Now,
	}
}

// Call runs fn unless the circuit is open. Caller cancellation does not
// count as a failure.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) < cb.cooldownDuration {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
	}

	err := fn()
	switch {
	case err == nil:
		cb.failureCount = 0
		cb.state = StateClosed
	case errors.Is(err, context.Canceled):
		if cb.state == StateHalfOpen {
			cb.state = StateOpen
		}
	default:
		cb.failureCount++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
	}
	return err
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerEmbedder struct {
	next Embedder
	cb   *CircuitBreaker
}

// CircuitBreakerMiddleware fails fast with ErrCircuitOpen after
// maxFailures consecutive failures, for cooldown.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)
	return func(next Embedder) Embedder {
		return &circuitBreakerEmbedder{next: next, cb: cb}
	}
}

// Embed forwards the request through the breaker.
func (c *circuitBreakerEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := c.cb.Call(func() error {
		var err error
		vectors, err = c.next.Embed(ctx, texts)
		return err
	})
	return vectors, err
}

// Model returns the model name from the wrapped embedder.
func (c *circuitBreakerEmbedder) Model() string { return c.next.Model() }
